// Package updater replaces the vbinode binary with a newer GitHub release.
// After the binary is swapped the capture card is released and the service
// restarts, so the new version acquires the card fresh.
package updater

import (
	"context"
	"time"
)

// State is the current state of the update process.
type State string

// Update states.
const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateAvailable   State = "available"
	StateDownloading State = "downloading"
	StateApplying    State = "applying"
	StateRestarting  State = "restarting"
	StateError       State = "error"
	StateRolledBack  State = "rolled_back"
)

// Info describes the latest release.
type Info struct {
	CurrentVersion  string    `json:"current_version" example:"1.0.0" doc:"Running version"`
	LatestVersion   string    `json:"latest_version" example:"1.1.0" doc:"Newest published version"`
	ReleaseNotes    string    `json:"release_notes,omitempty" required:"false" doc:"Markdown release notes"`
	ReleaseURL      string    `json:"release_url,omitempty" required:"false" doc:"Release page"`
	PublishedAt     time.Time `json:"published_at,omitzero" required:"false" doc:"Publication time"`
	AssetSize       int       `json:"asset_size,omitempty" required:"false" doc:"Download size in bytes"`
	UpdateAvailable bool      `json:"update_available" doc:"Whether the latest version is newer than the running one"`
}

// Status is the updater state as reported by the API.
type Status struct {
	State           State      `json:"state" enum:"idle,checking,available,downloading,applying,restarting,error,rolled_back" doc:"Update state"`
	Enabled         bool       `json:"enabled" doc:"Whether updates can be applied"`
	DisabledReason  string     `json:"disabled_reason,omitempty" required:"false" doc:"Why updates are disabled"`
	CurrentVersion  string     `json:"current_version" example:"1.0.0" doc:"Running version"`
	TargetVersion   string     `json:"target_version,omitempty" required:"false" doc:"Version being installed"`
	Error           string     `json:"error,omitempty" required:"false" doc:"Last failure in the error state"`
	LastChecked     *time.Time `json:"last_checked,omitempty" required:"false" doc:"Time of the last check"`
	BackupAvailable bool       `json:"backup_available" doc:"Whether a rollback is possible"`
	BackupVersion   string     `json:"backup_version,omitempty" required:"false" doc:"Version of the backed up binary"`
}

// Release is one published version.
type Release struct {
	Version     string
	Notes       string
	URL         string
	PublishedAt time.Time
	AssetSize   int
	// Newer is true when the release is newer than the running binary.
	Newer bool
}

// Source finds releases and installs them over the executable.
type Source interface {
	Latest(ctx context.Context) (Release, bool, error)
	Install(ctx context.Context, rel Release, execPath string) error
}
