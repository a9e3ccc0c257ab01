package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/creativeprojects/go-selfupdate"
)

// Options configures an Updater.
type Options struct {
	Source         Source
	CurrentVersion string
	ExecPath       string // defaults to the running executable
	BackupDir      string // defaults to ~/.cache/vbinode/backup

	// ReleaseHardware runs before the restart so the card lock is free for
	// the new process.
	ReleaseHardware func()
	// Restart ends the process; the service manager starts the new binary.
	// Defaults to sending SIGTERM to ourselves.
	Restart      func()
	RestartDelay time.Duration

	Logger *slog.Logger
}

// Updater checks for, applies and rolls back releases.
type Updater struct {
	opts    Options
	backups *backups
	logger  *slog.Logger

	mu             sync.RWMutex
	state          State
	latest         *Release
	lastChecked    *time.Time
	lastError      error
	enabled        bool
	disabledReason string
	restarting     sync.WaitGroup
}

// New creates an updater. It comes up disabled, with a reason, when the
// executable directory is not writable.
func New(opts Options) *Updater {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RestartDelay == 0 {
		opts.RestartDelay = 500 * time.Millisecond
	}
	if opts.Restart == nil {
		opts.Restart = signalRestart
	}
	u := &Updater{opts: opts, logger: opts.Logger, state: StateIdle}

	if opts.Source == nil {
		u.disabledReason = "no release source configured"
		return u
	}
	if u.opts.ExecPath == "" {
		exe, err := selfupdate.ExecutablePath()
		if err != nil {
			u.disabledReason = fmt.Sprintf("failed to get executable path: %v", err)
			return u
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		u.opts.ExecPath = exe
	}
	if reason, ok := checkWritable(filepath.Dir(u.opts.ExecPath)); !ok {
		u.disabledReason = reason
		u.logger.Warn("Update service disabled", "reason", reason)
		return u
	}

	dir := opts.BackupDir
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".cache", "vbinode", "backup")
		}
	}
	if dir != "" {
		b, err := newBackups(dir, u.logger)
		if err != nil {
			u.logger.Warn("Failed to create backup manager", "error", err)
		}
		u.backups = b
	}
	u.enabled = true
	return u
}

func checkWritable(dir string) (string, bool) {
	tmp := filepath.Join(dir, ".vbinode.update.test")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Sprintf("no write permission to %s: %v", dir, err), false
	}
	f.Close()
	os.Remove(tmp)
	return "", true
}

// Check asks the source for the latest release.
func (u *Updater) Check(ctx context.Context) (Info, error) {
	if !u.enabled {
		return Info{}, opError("check", CodeDisabled, u.disabledReason, nil)
	}
	if !u.transition(StateChecking, StateIdle, StateAvailable, StateError, StateRolledBack) {
		return Info{}, opError("check", CodeInvalidState, "not possible in state "+string(u.State()), nil)
	}

	rel, found, err := u.opts.Source.Latest(ctx)
	now := time.Now()
	u.mu.Lock()
	u.lastChecked = &now
	u.mu.Unlock()
	if err != nil {
		u.fail(err)
		return Info{}, opError("check", CodeCheckFailed, "", err)
	}
	if !found {
		u.fail(fmt.Errorf("repository not found or has no releases"))
		return Info{}, opError("check", CodeNotFound, "repository not found or has no releases", nil)
	}

	info := Info{CurrentVersion: u.opts.CurrentVersion, LatestVersion: rel.Version}
	if !rel.Newer {
		u.transition(StateIdle)
		return info, nil
	}
	u.mu.Lock()
	u.latest = &rel
	u.mu.Unlock()
	u.transition(StateAvailable)

	info.ReleaseNotes = rel.Notes
	info.ReleaseURL = rel.URL
	info.PublishedAt = rel.PublishedAt
	info.AssetSize = rel.AssetSize
	info.UpdateAvailable = true
	return info, nil
}

// Apply installs the latest release and schedules a restart. Without a
// prior Check it checks first.
func (u *Updater) Apply(ctx context.Context) error {
	if !u.enabled {
		return opError("apply", CodeDisabled, u.disabledReason, nil)
	}
	if st := u.State(); st != StateAvailable {
		info, err := u.Check(ctx)
		if err != nil {
			return err
		}
		if !info.UpdateAvailable {
			return opError("apply", CodeNoUpdate, "no update available", nil)
		}
	}
	if !u.transition(StateDownloading, StateAvailable) {
		return opError("apply", CodeInvalidState, "not possible in state "+string(u.State()), nil)
	}

	if u.backups != nil {
		if err := u.backups.create(u.opts.ExecPath, u.opts.CurrentVersion); err != nil {
			u.fail(err)
			return opError("apply", CodeBackupFailed, "backup of the running binary", err)
		}
	}

	u.transition(StateApplying)
	u.mu.RLock()
	rel := *u.latest
	u.mu.RUnlock()
	if err := u.opts.Source.Install(ctx, rel, u.opts.ExecPath); err != nil {
		u.fail(err)
		u.rollbackAfterFailure()
		return opError("apply", CodeApplyFailed, "install "+rel.Version, err)
	}

	u.transition(StateRestarting)
	u.logger.Info("Update applied, restarting", "version", rel.Version)
	u.scheduleRestart()
	return nil
}

// Rollback restores the backed up binary and schedules a restart.
func (u *Updater) Rollback(_ context.Context) error {
	if !u.enabled {
		return opError("rollback", CodeDisabled, u.disabledReason, nil)
	}
	if u.backups == nil {
		return opError("rollback", CodeNoBackup, "no backup available for rollback", nil)
	}
	if _, ok := u.backups.version(); !ok {
		return opError("rollback", CodeNoBackup, "no backup available for rollback", nil)
	}
	if err := u.backups.restore(); err != nil {
		return opError("rollback", CodeRollbackFailed, "restore backup", err)
	}
	u.transition(StateRolledBack)
	u.logger.Info("Rollback completed, restarting")
	u.scheduleRestart()
	return nil
}

// State returns the current state.
func (u *Updater) State() State {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

// Status returns the state with version and backup details.
func (u *Updater) Status() Status {
	u.mu.RLock()
	defer u.mu.RUnlock()
	st := Status{
		State:          u.state,
		Enabled:        u.enabled,
		DisabledReason: u.disabledReason,
		CurrentVersion: u.opts.CurrentVersion,
		LastChecked:    u.lastChecked,
	}
	if u.latest != nil {
		st.TargetVersion = u.latest.Version
	}
	if u.lastError != nil {
		st.Error = u.lastError.Error()
	}
	if u.backups != nil {
		st.BackupVersion, st.BackupAvailable = u.backups.version()
	}
	return st
}

// Wait blocks until a scheduled restart has run.
func (u *Updater) Wait() {
	u.restarting.Wait()
}

func (u *Updater) transition(to State, from ...State) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(from) > 0 && !slices.Contains(from, u.state) {
		return false
	}
	u.logger.Debug("State transition", "from", u.state, "to", to)
	u.state = to
	u.lastError = nil
	return true
}

func (u *Updater) fail(err error) {
	u.mu.Lock()
	u.lastError = err
	u.state = StateError
	u.mu.Unlock()
}

func (u *Updater) rollbackAfterFailure() {
	if u.backups == nil {
		u.logger.Error("No backup available for automatic rollback")
		return
	}
	if _, ok := u.backups.version(); !ok {
		u.logger.Error("No backup available for automatic rollback")
		return
	}
	if err := u.backups.restore(); err != nil {
		u.logger.Error("Failed to restore backup", "error", err)
		return
	}
	u.logger.Info("Automatic rollback completed")
}

// scheduleRestart lets the HTTP response go out first.
func (u *Updater) scheduleRestart() {
	u.restarting.Add(1)
	go func() {
		defer u.restarting.Done()
		time.Sleep(u.opts.RestartDelay)
		if u.opts.ReleaseHardware != nil {
			u.opts.ReleaseHardware()
		}
		u.opts.Restart()
	}()
}

func signalRestart() {
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		return
	}
	_ = proc.Signal(syscall.SIGTERM)
}
