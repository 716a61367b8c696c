package license

import (
	"context"
	"fmt"
	"time"

	"github.com/notelens/notelens/internal/core"
	"github.com/notelens/notelens/internal/core/store"
	nlerrors "github.com/notelens/notelens/internal/errors"
)

// DefaultFreeDailyFetches is the free-tier allowance of upstream fetches
// per calendar day (UTC).
const DefaultFreeDailyFetches = 20

// Gate decides whether a fetch may hit the upstream API. Licensed users
// pass unconditionally; free-tier users burn a bounded daily allowance.
type Gate struct {
	Store            *store.Store
	FreeDailyFetches int

	// Clock is swappable for tests.
	Clock func() time.Time
}

// NewGate wires a gate over the persisted license and usage counters.
func NewGate(s *store.Store, freeDailyFetches int) *Gate {
	if freeDailyFetches <= 0 {
		freeDailyFetches = DefaultFreeDailyFetches
	}
	return &Gate{
		Store:            s,
		FreeDailyFetches: freeDailyFetches,
		Clock:            time.Now,
	}
}

// Licensed reports whether an active license is on file.
func (g *Gate) Licensed(ctx context.Context) (bool, error) {
	license, err := g.Store.License(ctx)
	if err != nil {
		return false, nlerrors.WrapStorage(ctx, err, "failed to read license")
	}
	return license != nil && license.Status == core.LicenseActive, nil
}

// AllowFetch checks the free-tier allowance without consuming it.
func (g *Gate) AllowFetch(ctx context.Context) error {
	licensed, err := g.Licensed(ctx)
	if err != nil {
		return err
	}
	if licensed {
		return nil
	}

	count, err := g.Store.UsageCount(ctx, g.today())
	if err != nil {
		return nlerrors.WrapStorage(ctx, err, "failed to read usage counter")
	}
	if count >= g.FreeDailyFetches {
		return nlerrors.NewPermissionDeniedError(fmt.Sprintf(
			"free tier limit of %d fetches per day reached", g.FreeDailyFetches))
	}
	return nil
}

// RecordFetch charges one upstream fetch to today's counter and returns
// the new total. Licensed users are counted too so usage stats stay
// meaningful, but they are never denied.
func (g *Gate) RecordFetch(ctx context.Context) (int, error) {
	count, err := g.Store.IncrementUsage(ctx, g.today())
	if err != nil {
		return 0, nlerrors.WrapStorage(ctx, err, "failed to record usage")
	}
	return count, nil
}

// Remaining returns how many free-tier fetches are left today. Licensed
// users get -1, meaning unlimited.
func (g *Gate) Remaining(ctx context.Context) (int, error) {
	licensed, err := g.Licensed(ctx)
	if err != nil {
		return 0, err
	}
	if licensed {
		return -1, nil
	}

	count, err := g.Store.UsageCount(ctx, g.today())
	if err != nil {
		return 0, nlerrors.WrapStorage(ctx, err, "failed to read usage counter")
	}
	remaining := g.FreeDailyFetches - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (g *Gate) today() string {
	return store.DayKey(g.now())
}

func (g *Gate) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}
