package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/stage"
)

// ExportSchemaVersion is written to every export header. Import refuses
// other versions.
const ExportSchemaVersion = "1"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path  string // optional, default: <Dir>/<stage|all>-<timestamp>.jsonl
	Dir   string // directory for the default path
	Stage string // optional filter
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	ExportID   string `json:"export_id"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader represents the header line in a JSONL export file.
type ExportHeader struct {
	QwExport      bool   `json:"_qw_export"`
	SchemaVersion string `json:"schema_version"`
	ExportID      string `json:"export_id"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportRecord is one record line in a JSONL export file.
type ExportRecord struct {
	UID       string        `json:"uid"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
	Record    *stage.Record `json:"record"`
}

// Export writes records to a JSONL file: a header line, then one line per
// record in stage and internal_id order.
func Export(ctx context.Context, database *sql.DB, input ExportInput) (*ExportOutput, error) {
	now := time.Now()
	exportedAt := now.Unix()

	var filter db.ListFilter
	name := "all"
	if strings.TrimSpace(input.Stage) != "" {
		c, err := stage.ParseCategory(input.Stage)
		if err != nil {
			return nil, err
		}
		filter.Stage = &c
		name = string(c)
	}

	// Determine export path
	exportPath := input.Path
	if exportPath == "" {
		if input.Dir == "" {
			return nil, errors.NewInvalidRequest("path is required")
		}
		exportPath = filepath.Join(input.Dir, fmt.Sprintf("%s-%s.jsonl", name, now.Format("2006-01-02T150405")))
	}
	if err := ValidatePath(exportPath, PathCheckWrite); err != nil {
		return nil, err
	}

	exportID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	rows, err := db.List(ctx, database, filter)
	if err != nil {
		return nil, err
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(exportPath), 0o700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Write to temp file first, then atomic rename to preserve existing file on failure
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ExportHeader{
		QwExport:      true,
		SchemaVersion: ExportSchemaVersion,
		ExportID:      exportID,
		ExportedAt:    exportedAt,
	}); err != nil {
		return nil, errors.NewInternal(err)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("export cancelled: %w", err))
		}
		if err := enc.Encode(ExportRecord{
			UID:       row.UID,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
			Record:    row.Record,
		}); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	// Ensure file is written
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// Check if destination is a symlink (os.Rename would follow it)
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}

	// On Windows os.Rename fails if the destination exists; the existing
	// file is kept rather than risking a non-atomic replace.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		ExportID:   exportID,
		Count:      len(rows),
		ExportedAt: exportedAt,
	}, nil
}
