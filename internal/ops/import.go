package ops

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/logging"
	"github.com/qwtool/qw/internal/stage"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on collision (atomic)
	ImportModeReplace ImportMode = "replace" // overwrite on collision
)

// maxImportLine bounds a single JSONL line; descriptions can be long.
const maxImportLine = 16 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line"`
	UID     string `json:"uid,omitempty"`
	Record  string `json:"record,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importLine struct {
	line int
	row  *db.Row
}

// Import loads records from a JSONL export file.
//
// In error mode the import is atomic: any unreadable line or collision with
// a stored record aborts it and nothing is written. In replace mode records
// overwrite the stored record with the same stage and internal_id, and bad
// lines are skipped and reported.
func Import(ctx context.Context, database *sql.DB, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}
	if err := ValidatePath(input.Path, PathCheckRead); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	lines, parseErrors, err := parseExport(file)
	if err != nil {
		return nil, err
	}

	var out *ImportOutput
	switch input.Mode {
	case ImportModeError:
		if len(parseErrors) > 0 {
			return &ImportOutput{Errors: parseErrors}, nil
		}
		out, err = importModeError(ctx, database, lines)
	case ImportModeReplace:
		out, err = importModeReplace(ctx, database, lines, parseErrors)
	}
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("import finished",
		slog.String("path", input.Path),
		slog.String("mode", string(input.Mode)),
		slog.Int("imported", out.Imported),
		slog.Int("skipped", out.Skipped),
	)
	return out, nil
}

// parseExport reads an export file. Bad lines become ImportErrors; a wrong
// header aborts the import.
func parseExport(r io.Reader) ([]importLine, []ImportError, error) {
	var (
		lines       []importLine
		parseErrors = []ImportError{}
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	lineNum := 0
	sawHeader := false

	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if !sawHeader {
			var header ExportHeader
			if err := json.Unmarshal(line, &header); err != nil || !header.QwExport {
				return nil, nil, errors.NewInvalidRequest("not a qw export: the first line must be the export header")
			}
			if header.SchemaVersion != ExportSchemaVersion {
				return nil, nil, errors.NewInvalidRequest(fmt.Sprintf(
					"unsupported export schema version %q (want %q)", header.SchemaVersion, ExportSchemaVersion))
			}
			sawHeader = true
			continue
		}

		var raw struct {
			UID       string          `json:"uid"`
			CreatedAt int64           `json:"created_at"`
			UpdatedAt int64           `json:"updated_at"`
			Record    json.RawMessage `json:"record"`
		}
		if err := json.Unmarshal(line, &raw); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if raw.UID == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing uid field",
			})
			continue
		}

		rec, err := stage.FromJSON(raw.Record)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			code, msg := describe(err)
			parseErrors = append(parseErrors, ImportError{Line: lineNum, UID: raw.UID, Code: code, Message: msg})
			continue
		}

		lines = append(lines, importLine{
			line: lineNum,
			row:  &db.Row{UID: raw.UID, Record: rec, CreatedAt: raw.CreatedAt, UpdatedAt: raw.UpdatedAt},
		})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum + 1,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	if !sawHeader {
		return nil, nil, errors.NewInvalidRequest("not a qw export: the file is empty")
	}

	return lines, parseErrors, nil
}

// importModeError imports all records atomically, rolling back on any collision.
func importModeError(ctx context.Context, database *sql.DB, lines []importLine) (*ImportOutput, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, l := range lines {
		if err := db.Insert(ctx, tx, l.row); err != nil {
			if err != db.ErrUniqueConstraint {
				return nil, err
			}
			// Abort on first collision
			return &ImportOutput{
				Errors: []ImportError{{
					Line:    l.line,
					UID:     l.row.UID,
					Record:  l.row.Record.Label(),
					Code:    "COLLISION",
					Message: fmt.Sprintf("%s or uid %s already exists", l.row.Record.Label(), l.row.UID),
				}},
			}, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ImportOutput{Imported: len(lines), Errors: []ImportError{}}, nil
}

// importModeReplace imports records, overwriting the record with the same
// stage and internal_id.
func importModeReplace(ctx context.Context, database *sql.DB, lines []importLine, parseErrors []ImportError) (*ImportOutput, error) {
	out := &ImportOutput{Skipped: len(parseErrors), Errors: parseErrors}

	for _, l := range lines {
		if err := db.Upsert(ctx, database, l.row); err != nil {
			if err != db.ErrUniqueConstraint {
				return nil, err
			}
			// The uid or remote_id belongs to a different record.
			out.Errors = append(out.Errors, ImportError{
				Line:    l.line,
				UID:     l.row.UID,
				Record:  l.row.Record.Label(),
				Code:    "COLLISION",
				Message: "uid or remote_id is used by a different record",
			})
			out.Skipped++
			continue
		}
		out.Imported++
	}
	return out, nil
}
