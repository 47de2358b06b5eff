package datasource

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/kyotei-predictor/internal/logger"
	"github.com/yourusername/kyotei-predictor/internal/metrics"
	"github.com/yourusername/kyotei-predictor/internal/models"
	"github.com/yourusername/kyotei-predictor/internal/venue"
)

const (
	// DefaultCacheTTL is how long a fetched program is served without a new request.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultDayFetchTimeout bounds a shared day download, which outlives
	// the cancellation of any single waiter.
	DefaultDayFetchTimeout = 30 * time.Second
)

// Fetcher retrieves race programs and results, consulting the program cache first.
// A nil cache disables caching entirely.
type Fetcher struct {
	source RaceSource
	cache  ProgramCache
	ttl    time.Duration
	now    func() time.Time
	logger *logger.FetchLogger

	dayTimeout time.Duration

	// concurrent requests for the same day document share one upstream call
	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	stale  atomic.Uint64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithCache enables program caching with the given freshness TTL.
func WithCache(c ProgramCache, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithDayFetchTimeout bounds the shared upstream call behind FetchDay.
func WithDayFetchTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.dayTimeout = d
		}
	}
}

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher creates a fetcher over source.
func NewFetcher(source RaceSource, log logrus.FieldLogger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		source: source,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		logger: logger.NewFetchLogger(log),

		dayTimeout: DefaultDayFetchTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CacheEnabled reports whether the fetcher caches programs.
func (f *Fetcher) CacheEnabled() bool {
	return f.cache != nil
}

// UpstreamState reports the source's circuit breaker state ("closed",
// "half-open", "open"), or "unknown" when the source has none.
func (f *Fetcher) UpstreamState() string {
	if b, ok := f.source.(breakerStater); ok {
		if state := b.BreakerState(); state != "" {
			return state
		}
	}
	return "unknown"
}

// Now returns the fetcher's current time.
func (f *Fetcher) Now() time.Time {
	return f.now()
}

// FetchProgram returns the six entries of one race. A fresh cached copy is
// returned without contacting upstream; otherwise the day document is fetched
// and every race in it is cached.
func (f *Fetcher) FetchProgram(ctx context.Context, venueID, raceNumber int, date string) ([]models.Entry, error) {
	key, err := f.raceKey(venueID, raceNumber, date)
	if err != nil {
		return nil, err
	}
	start := f.now()

	if cached, ok := f.lookup(ctx, key); ok && cached.Age(f.now()) < f.ttl {
		f.hits.Add(1)
		metrics.RecordCacheHit()
		f.logger.LogProgramFetch(key.String(), true, msSince(start, f.now()))
		return cloneEntries(cached.Entries), nil
	}
	f.misses.Add(1)
	metrics.RecordCacheMiss()

	programs, err := f.fetchDay(ctx, key.Date)
	if err != nil {
		f.logger.LogFetchError(key.String(), reasonOf(err), err)
		return nil, err
	}

	for _, p := range programs {
		if p.VenueID == venueID && p.RaceNumber == raceNumber {
			if len(p.Entries) == 0 {
				return nil, NewFetchError(f.source.Name(), ReasonMalformed, key.String(), errors.New("race has no entries"))
			}
			f.logger.LogProgramFetch(key.String(), false, msSince(start, f.now()))
			return p.Entries, nil
		}
	}

	err = NewFetchError(f.source.Name(), ReasonNotFound, key.String(), ErrRaceNotFound)
	f.logger.LogFetchError(key.String(), ReasonNotFound, err)
	return nil, err
}

// FetchProgramStale behaves like FetchProgram but, when upstream fails, falls
// back to a cached entry of any age. stale reports whether the fallback was used.
func (f *Fetcher) FetchProgramStale(ctx context.Context, venueID, raceNumber int, date string) (entries []models.Entry, stale bool, err error) {
	entries, err = f.FetchProgram(ctx, venueID, raceNumber, date)
	if err == nil {
		return entries, false, nil
	}

	var fe *FetchError
	if !errors.As(err, &fe) || fe.Reason == ReasonInvalid {
		return nil, false, err
	}

	key, kerr := f.raceKey(venueID, raceNumber, date)
	if kerr != nil {
		return nil, false, err
	}
	cached, ok := f.lookup(ctx, key)
	if !ok {
		return nil, false, err
	}

	f.stale.Add(1)
	metrics.RecordStaleServed()
	f.logger.LogStaleServed(key.String(), cached.Age(f.now()).Seconds())
	return cloneEntries(cached.Entries), true, nil
}

// FetchDay returns every race program of a day. Programs are written to the
// cache so later FetchProgram calls for the same day are served locally.
func (f *Fetcher) FetchDay(ctx context.Context, date string) ([]RaceProgram, error) {
	day, err := ResolveDate(date, f.now())
	if err != nil {
		return nil, NewFetchError(f.source.Name(), ReasonInvalid, date, err)
	}
	return f.fetchDay(ctx, day.Format(models.DateLayout))
}

// FetchResults returns the finished races of a day as results keyed by race.
// Results are never cached since they change through the day.
func (f *Fetcher) FetchResults(ctx context.Context, date string) ([]models.Result, error) {
	day, err := ResolveDate(date, f.now())
	if err != nil {
		return nil, NewFetchError(f.source.Name(), ReasonInvalid, date, err)
	}

	raw, err := f.source.FetchDayResults(ctx, day)
	if err != nil {
		f.logger.LogFetchError(day.Format(models.DateLayout), reasonOf(err), err)
		return nil, err
	}

	results := make([]models.Result, 0, len(raw))
	for _, r := range raw {
		key := models.NewRaceKey(r.VenueID, r.RaceNumber, day)
		if key.Validate() != nil || models.ValidateOrder(r.Order) != nil {
			f.logger.WithField("race_key", key.String()).Debug("Skipping invalid result row")
			continue
		}
		results = append(results, models.Result{Key: key, Order: append([]int(nil), r.Order...)})
	}
	return results, nil
}

// CacheStats reports cache counters and the current entry count
func (f *Fetcher) CacheStats(ctx context.Context) CacheStats {
	stats := CacheStats{
		Hits:       f.hits.Load(),
		Misses:     f.misses.Load(),
		StaleHits:  f.stale.Load(),
		TTLSeconds: f.ttl.Seconds(),
	}
	if f.cache != nil {
		stats.Entries = f.cache.Len(ctx)
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// ClearCache drops every cached program
func (f *Fetcher) ClearCache(ctx context.Context) error {
	if f.cache == nil {
		return nil
	}
	if err := f.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear program cache: %w", err)
	}
	metrics.UpdateCachedPrograms(0)
	f.logger.Info("Program cache cleared")
	return nil
}

// fetchDay downloads the day document once per concurrent burst and caches its races.
// The download runs detached from any one caller so a cancelled waiter does
// not fail the others; each waiter still returns as soon as its own ctx ends.
func (f *Fetcher) fetchDay(ctx context.Context, date string) ([]RaceProgram, error) {
	ch := f.group.DoChan(date, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.dayTimeout)
		defer cancel()

		day, err := time.ParseInLocation(models.DateLayout, date, JST)
		if err != nil {
			return nil, NewFetchError(f.source.Name(), ReasonInvalid, date, err)
		}
		programs, err := f.source.FetchDayPrograms(shared, day)
		if err != nil {
			return nil, err
		}
		f.store(shared, day, programs)
		return programs, nil
	})

	select {
	case <-ctx.Done():
		return nil, NewFetchError(f.source.Name(), classifyError(ctx, ctx.Err()), date, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clonePrograms(res.Val.([]RaceProgram)), nil
	}
}

func (f *Fetcher) store(ctx context.Context, day time.Time, programs []RaceProgram) {
	if f.cache == nil {
		return
	}
	fetchedAt := f.now()
	for _, p := range programs {
		key := models.NewRaceKey(p.VenueID, p.RaceNumber, day)
		if key.Validate() != nil || len(p.Entries) == 0 {
			continue
		}
		if err := f.cache.Set(ctx, key.String(), &CachedProgram{Entries: cloneEntries(p.Entries), FetchedAt: fetchedAt}); err != nil {
			f.logger.WithError(err).WithField("race_key", key.String()).Warn("Failed to cache program")
		}
	}
	metrics.UpdateCachedPrograms(f.cache.Len(ctx))
}

func (f *Fetcher) lookup(ctx context.Context, key models.RaceKey) (*CachedProgram, bool) {
	if f.cache == nil {
		return nil, false
	}
	cached, ok, err := f.cache.Get(ctx, key.String())
	if err != nil {
		f.logger.WithError(err).WithField("race_key", key.String()).Warn("Program cache read failed")
		return nil, false
	}
	return cached, ok
}

func (f *Fetcher) raceKey(venueID, raceNumber int, date string) (models.RaceKey, error) {
	if !venue.IsValid(venueID) {
		return models.RaceKey{}, NewFetchError(f.source.Name(), ReasonInvalid, date,
			fmt.Errorf("%w: unknown venue %d", models.ErrInvalidKey, venueID))
	}
	if !venue.IsValidRaceNumber(raceNumber) {
		return models.RaceKey{}, NewFetchError(f.source.Name(), ReasonInvalid, date,
			fmt.Errorf("%w: race number %d out of range", models.ErrInvalidKey, raceNumber))
	}
	day, err := ResolveDate(date, f.now())
	if err != nil {
		return models.RaceKey{}, NewFetchError(f.source.Name(), ReasonInvalid, date, fmt.Errorf("%w: %v", models.ErrInvalidKey, err))
	}
	return models.NewRaceKey(venueID, raceNumber, day), nil
}

func reasonOf(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ReasonNetwork
}

// cloneEntries deep-copies entries so callers never share stat pointers or
// auxiliary maps with the cache.
func cloneEntries(in []models.Entry) []models.Entry {
	if in == nil {
		return nil
	}
	out := make([]models.Entry, len(in))
	for i, e := range in {
		e.NationalWinRate = cloneFloat(e.NationalWinRate)
		e.LocalWinRate = cloneFloat(e.LocalWinRate)
		e.MotorIndex = cloneFloat(e.MotorIndex)
		e.BoatIndex = cloneFloat(e.BoatIndex)
		e.AverageStartTiming = cloneFloat(e.AverageStartTiming)
		e.Auxiliary = maps.Clone(e.Auxiliary)
		out[i] = e
	}
	return out
}

func clonePrograms(in []RaceProgram) []RaceProgram {
	out := make([]RaceProgram, len(in))
	for i, p := range in {
		p.Entries = cloneEntries(p.Entries)
		out[i] = p
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func msSince(start, now time.Time) float64 {
	return float64(now.Sub(start).Microseconds()) / 1000
}
