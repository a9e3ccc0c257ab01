package updater

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	backupFilename     = "vbinode.backup"
	backupInfoFilename = "backup.json"
)

type backupInfo struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ExecPath  string    `json:"exec_path"`
}

// backups keeps one copy of the previous binary.
type backups struct {
	mu     sync.RWMutex
	dir    string
	info   *backupInfo
	logger *slog.Logger
}

func newBackups(dir string, logger *slog.Logger) (*backups, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	b := &backups{dir: dir, logger: logger}
	b.load()
	return b, nil
}

func (b *backups) load() {
	data, err := os.ReadFile(filepath.Join(b.dir, backupInfoFilename))
	if err != nil {
		return
	}
	var info backupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		b.logger.Warn("Failed to parse backup info", "error", err)
		return
	}
	if _, err := os.Stat(filepath.Join(b.dir, backupFilename)); err != nil {
		b.logger.Warn("Backup file missing", "dir", b.dir)
		return
	}
	b.mu.Lock()
	b.info = &info
	b.mu.Unlock()
	b.logger.Debug("Loaded backup info", "version", info.Version)
}

// create copies execPath, tagged with the running version.
func (b *backups) create(execPath, version string) error {
	if err := copyFile(execPath, filepath.Join(b.dir, backupFilename)); err != nil {
		return err
	}
	info := backupInfo{Version: version, CreatedAt: time.Now(), ExecPath: execPath}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal backup info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(b.dir, backupInfoFilename), data, 0o644); err != nil {
		return fmt.Errorf("failed to write backup info: %w", err)
	}

	b.mu.Lock()
	b.info = &info
	b.mu.Unlock()
	b.logger.Info("Backup created", "version", version, "dir", b.dir)
	return nil
}

func (b *backups) restore() error {
	b.mu.RLock()
	info := b.info
	b.mu.RUnlock()
	if info == nil {
		return fmt.Errorf("no backup available")
	}
	if err := copyFile(filepath.Join(b.dir, backupFilename), info.ExecPath); err != nil {
		return err
	}
	b.logger.Info("Backup restored", "version", info.Version)
	return nil
}

func (b *backups) version() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.info == nil {
		return "", false
	}
	return b.info.Version, true
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", from, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", to, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy %s: %w", from, err)
	}
	return dst.Close()
}
