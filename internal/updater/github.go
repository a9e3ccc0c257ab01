package updater

import (
	"context"
	"errors"
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
)

// githubSource reads releases of a GitHub repository.
type githubSource struct {
	updater *selfupdate.Updater
	repo    selfupdate.Repository
	current string

	latest *selfupdate.Release
}

// NewGitHubSource creates a source for the repository slug owner/name.
// current is the running version; "dev" is older than every release.
func NewGitHubSource(slug, current string, prerelease bool) (Source, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}
	return &githubSource{updater: updater, repo: selfupdate.ParseSlug(slug), current: current}, nil
}

func (g *githubSource) Latest(ctx context.Context) (Release, bool, error) {
	rel, found, err := g.updater.DetectLatest(ctx, g.repo)
	if err != nil || !found {
		return Release{}, found, err
	}
	g.latest = rel
	return Release{
		Version:     rel.Version(),
		Notes:       rel.ReleaseNotes,
		URL:         rel.URL,
		PublishedAt: rel.PublishedAt,
		AssetSize:   rel.AssetByteSize,
		Newer:       g.current == "dev" || rel.GreaterThan(g.current),
	}, true, nil
}

func (g *githubSource) Install(ctx context.Context, rel Release, execPath string) error {
	if g.latest == nil || g.latest.Version() != rel.Version {
		return errors.New("release was not detected by this source")
	}
	return g.updater.UpdateTo(ctx, g.latest, execPath)
}
