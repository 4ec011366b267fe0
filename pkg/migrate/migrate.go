package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Report is one migration touched or inspected by a command.
type Report struct {
	Version  int64
	Path     string
	State    string
	Duration time.Duration
}

func (r Report) String() string {
	if r.Duration > 0 {
		return fmt.Sprintf("%d %s %s (%s)", r.Version, r.State, r.Path, r.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("%d %s %s", r.Version, r.State, r.Path)
}

func newProvider(db *sql.DB, dir string) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("open migrations %s: %w", dir, err)
	}
	return provider, nil
}

// Run executes up, down or status against the postgres schema in dir.
func Run(ctx context.Context, db *sql.DB, dir string, command string) ([]Report, error) {
	provider, err := newProvider(db, dir)
	if err != nil {
		return nil, err
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			return resultReports(results), fmt.Errorf("goose up: %w", err)
		}
		return resultReports(results), nil
	case "down":
		result, err := provider.Down(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("goose down: %w", err)
		}
		return resultReports([]*goose.MigrationResult{result}), nil
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose status: %w", err)
		}
		reports := make([]Report, 0, len(statuses))
		for _, st := range statuses {
			if st == nil || st.Source == nil {
				continue
			}
			reports = append(reports, Report{Version: st.Source.Version, Path: st.Source.Path, State: string(st.State)})
		}
		return reports, nil
	default:
		return nil, fmt.Errorf("unsupported goose command %q", command)
	}
}

// MigrateToVersion moves the schema up or down until it sits at targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) ([]Report, error) {
	target, err := parseVersion(targetVersion)
	if err != nil {
		return nil, err
	}
	provider, err := newProvider(db, dir)
	if err != nil {
		return nil, err
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err = provider.UpTo(ctx, target)
	default:
		results, err = provider.DownTo(ctx, target)
	}
	if err != nil {
		return resultReports(results), fmt.Errorf("goose %d -> %d: %w", current, target, err)
	}
	return resultReports(results), nil
}

func parseVersion(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("target version is required")
	}
	if len(raw) != len(versionLayout) {
		return 0, fmt.Errorf("invalid version %q (expected %s)", raw, versionLayout)
	}
	if _, err := time.Parse(versionLayout, raw); err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return strconv.ParseInt(raw, 10, 64)
}

func resultReports(results []*goose.MigrationResult) []Report {
	reports := make([]Report, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		reports = append(reports, Report{
			Version:  res.Source.Version,
			Path:     res.Source.Path,
			State:    res.Direction,
			Duration: res.Duration,
		})
	}
	return reports
}
