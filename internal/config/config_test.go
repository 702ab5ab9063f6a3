package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qwtool/qw/internal/errors"
)

func TestLoad_NotInitializedWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := Load(tmpDir)
	if !errors.Is(err, errors.ErrNotInitialized) {
		t.Fatalf("Load() error = %v, want NOT_INITIALIZED", err)
	}
}

func TestLoad_CorruptWithoutService(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, FileName)

	if err := os.WriteFile(configPath, []byte(`{"repo_url": "git@github.com:me/proj.git"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := Load(tmpDir)
	if !errors.Is(err, errors.ErrNotInitialized) {
		t.Fatalf("Load() error = %v, want NOT_INITIALIZED", err)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, FileName)

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{
		RepoURL:  "git@github.com:me/proj.git",
		RepoName: "proj",
		Service:  "github",
		UserName: "me",
	}

	if err := Write(tmpDir, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.RepoName != "proj" || loaded.Service != "github" || loaded.UserName != "me" {
		t.Errorf("Load() = %+v", loaded)
	}
	if loaded.TokenEnv != DefaultTokenEnv {
		t.Errorf("TokenEnv = %q, want default %q", loaded.TokenEnv, DefaultTokenEnv)
	}
}

func TestToken_FromEnv(t *testing.T) {
	t.Setenv("QW_TEST_TOKEN", "secret")
	cfg := &Config{TokenEnv: "QW_TEST_TOKEN"}
	if cfg.Token() != "secret" {
		t.Errorf("Token() = %q, want %q", cfg.Token(), "secret")
	}
	if got := cfg.String(); got == "" || strings.Contains(got, "secret") {
		t.Errorf("String() = %q must not leak the token", got)
	}
}

func TestFindGitBaseDir(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0700); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0700); err != nil {
		t.Fatal(err)
	}

	got, err := FindGitBaseDir(nested)
	if err != nil {
		t.Fatalf("FindGitBaseDir() error = %v", err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Errorf("FindGitBaseDir() = %q, want %q", got, want)
	}
}

func TestFindGitBaseDir_NotFound(t *testing.T) {
	_, err := FindGitBaseDir(t.TempDir())
	if !errors.Is(err, errors.ErrNotInitialized) {
		t.Fatalf("FindGitBaseDir() error = %v, want NOT_INITIALIZED", err)
	}
}

func TestGetOrCreateQwDir(t *testing.T) {
	base := t.TempDir()

	dir, err := GetOrCreateQwDir(base, false)
	if err != nil {
		t.Fatalf("GetOrCreateQwDir() error = %v", err)
	}
	if dir != filepath.Join(base, DirName) {
		t.Errorf("dir = %q", dir)
	}

	if _, err := GetOrCreateQwDir(base, false); !errors.Is(err, errors.ErrAlreadyExists) {
		t.Fatalf("second call error = %v, want ALREADY_EXISTS", err)
	}

	if _, err := GetOrCreateQwDir(base, true); err != nil {
		t.Fatalf("forced call error = %v", err)
	}
}

func TestMerge(t *testing.T) {
	base := &Config{Service: "github", TokenEnv: "A", DisabledTools: []string{"stage_delete"}}
	overlay := &Config{Service: "  ", TokenEnv: "B", DisabledTools: []string{" stage_delete ", "stage_update"}}

	got := Merge(base, overlay)
	if got.Service != "github" {
		t.Errorf("Service = %q, want base value for blank overlay", got.Service)
	}
	if got.TokenEnv != "B" {
		t.Errorf("TokenEnv = %q, want overlay value", got.TokenEnv)
	}
	if len(got.DisabledTools) != 2 || got.DisabledTools[0] != "stage_delete" || got.DisabledTools[1] != "stage_update" {
		t.Errorf("DisabledTools = %v", got.DisabledTools)
	}
}
