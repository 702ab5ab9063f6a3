package ops

import (
	"context"
	"database/sql"
	"path/filepath"

	"github.com/qwtool/qw/internal/config"
	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/logging"
	"github.com/qwtool/qw/internal/remote"
)

// Workspace is an initialised repository: its configuration, record store
// and issue service.
type Workspace struct {
	BaseDir string
	QwDir   string
	Config  *config.Config
	DB      *sql.DB
	Service remote.GitService
}

// Open loads the workspace of the git repository containing dir.
// The caller must Close it.
func Open(ctx context.Context, dir string) (*Workspace, error) {
	base, err := config.FindGitBaseDir(dir)
	if err != nil {
		return nil, err
	}
	qwDir := filepath.Join(base, config.DirName)
	cfg, err := config.Load(qwDir)
	if err != nil {
		return nil, err
	}
	svc, err := remote.NewService(cfg, logging.FromContext(ctx))
	if err != nil {
		return nil, err
	}
	database, err := db.Init(qwDir)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &Workspace{BaseDir: base, QwDir: qwDir, Config: cfg, DB: database, Service: svc}, nil
}

// ExportsDir is where exports go when no path is given.
func (w *Workspace) ExportsDir() string {
	return filepath.Join(w.QwDir, "exports")
}

// Close releases the record store.
func (w *Workspace) Close() error {
	return w.DB.Close()
}
