package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	legacymodels "heirloom/internal/legacy/models"
	membershipmodels "heirloom/internal/membership/models"
	successionmodels "heirloom/internal/succession/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/requestcontext"
)

const (
	ScanReleasesJob    = "scan-releases"
	TreeCountHealthJob = "tree-count-health"
	EmptyLegacyJob     = "empty-legacy"
)

type ReleaseScanner interface {
	ScanDueReleases(ctx context.Context) ([]successionmodels.ReleaseResult, error)
}

type TreeCountKeeper interface {
	ListGroveIDs(ctx context.Context) ([]id.GroveID, error)
	InspectTreeCount(ctx context.Context, groveID id.GroveID) (membershipmodels.TreeCountCheck, error)
	SyncTreeCount(ctx context.Context, groveID id.GroveID) (int, error)
}

type EmptyLegacyReporter interface {
	ReportEmptyLegacy(ctx context.Context, daysOld int) ([]*legacymodels.Branch, error)
}

// ScanReleases releases every successor whose date has passed. Per-heir
// failures are logged; only a failure to list the due heirs fails the run.
func ScanReleases(scanner ReleaseScanner, interval time.Duration, logger *slog.Logger) Job {
	return Job{
		Name:     ScanReleasesJob,
		Interval: interval,
		Run: func(ctx context.Context) error {
			results, err := scanner.ScanDueReleases(stamp(ctx))
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if !r.Success {
					failed++
					logger.WarnContext(ctx, "release failed", "heir_id", r.HeirID.String(), "error", r.Error)
				}
			}
			logger.InfoContext(ctx, "release scan complete", "due", len(results), "failed", failed)
			return nil
		},
	}
}

// SyncReport summarizes one tree-count health run.
type SyncReport struct {
	Checked  int
	Repaired []membershipmodels.TreeCountCheck
}

// CheckTreeCounts compares every grove's cached tree count with its
// memberships and syncs the ones that drifted.
func CheckTreeCounts(ctx context.Context, keeper TreeCountKeeper) (SyncReport, error) {
	ctx = stamp(ctx)
	groveIDs, err := keeper.ListGroveIDs(ctx)
	if err != nil {
		return SyncReport{}, err
	}
	var (
		report SyncReport
		errs   []error
	)
	for _, groveID := range groveIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		check, err := keeper.InspectTreeCount(ctx, groveID)
		if err != nil {
			errs = append(errs, fmt.Errorf("inspect grove %s: %w", groveID, err))
			continue
		}
		report.Checked++
		if check.Valid() {
			continue
		}
		if _, err := keeper.SyncTreeCount(ctx, groveID); err != nil {
			errs = append(errs, fmt.Errorf("sync grove %s: %w", groveID, err))
			continue
		}
		report.Repaired = append(report.Repaired, check)
	}
	return report, errors.Join(errs...)
}

func TreeCountHealth(keeper TreeCountKeeper, interval time.Duration, logger *slog.Logger) Job {
	return Job{
		Name:     TreeCountHealthJob,
		Interval: interval,
		Run: func(ctx context.Context) error {
			report, err := CheckTreeCounts(ctx, keeper)
			for _, c := range report.Repaired {
				logger.WarnContext(ctx, "tree count drift repaired",
					"grove_id", c.GroveID.String(), "cached", c.Cached, "actual", c.Actual)
			}
			logger.InfoContext(ctx, "tree count health complete", "checked", report.Checked, "repaired", len(report.Repaired))
			return err
		},
	}
}

func EmptyLegacy(reporter EmptyLegacyReporter, daysOld int, interval time.Duration, logger *slog.Logger) Job {
	return Job{
		Name:     EmptyLegacyJob,
		Interval: interval,
		Run: func(ctx context.Context) error {
			branches, err := reporter.ReportEmptyLegacy(stamp(ctx), daysOld)
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "empty legacy report complete", "branches", len(branches), "days_old", daysOld)
			return nil
		},
	}
}

// stamp fixes the clock for one run so every item sees the same now.
func stamp(ctx context.Context) context.Context {
	return requestcontext.WithTime(ctx, requestcontext.Now(ctx))
}
