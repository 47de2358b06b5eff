package accuracy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/kyotei-predictor/internal/database"
	"github.com/yourusername/kyotei-predictor/internal/models"
	"github.com/yourusername/kyotei-predictor/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()
	repos, err := repository.NewRepositories(database.SetupTestSQLite(t))
	require.NoError(t, err)
	clock := &testClock{now: time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)}
	return NewStore(repos, nil, WithClock(clock.Now)), clock
}

func newPrediction(venueID, race int, lanes ...int) *models.Prediction {
	if len(lanes) == 0 {
		lanes = []int{1, 2, 3, 4, 5, 6}
	}
	return &models.Prediction{
		Key:         models.RaceKey{VenueID: venueID, RaceNumber: race, Date: "2024-05-01"},
		RankedLanes: lanes,
		Confidence:  0.6,
	}
}

func TestRecordPredictionSetsIDAndTimestamp(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	p := newPrediction(4, 7, 1, 3, 2, 4, 6, 5)
	id, err := store.RecordPrediction(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.True(t, p.CreatedAt.Equal(clock.Now()))

	stored, err := store.GetPrediction(ctx, p.Key)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2, 4, 6, 5}, stored.RankedLanes)
}

func TestRecordPredictionDuplicateKeepsFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.RecordPrediction(ctx, newPrediction(1, 1, 1, 2, 3, 4, 5, 6))
	require.NoError(t, err)

	_, err = store.RecordPrediction(ctx, newPrediction(1, 1, 6, 5, 4, 3, 2, 1))
	require.ErrorIs(t, err, models.ErrDuplicateKey)

	stored, err := store.GetPrediction(ctx, newPrediction(1, 1).Key)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, stored.RankedLanes)
}

func TestRecordPredictionRejectsInvalidKey(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.RecordPrediction(context.Background(), newPrediction(25, 1))
	assert.ErrorIs(t, err, models.ErrInvalidKey)

	_, err = store.RecordPrediction(context.Background(), newPrediction(1, 13))
	assert.ErrorIs(t, err, models.ErrInvalidKey)
}

func TestRecordPredictionRejectsInvalidRanking(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		build func() *models.Prediction
	}{
		{"repeated lane", func() *models.Prediction { return newPrediction(2, 1, 1, 1, 1, 1, 1, 1) }},
		{"lane out of range", func() *models.Prediction { return newPrediction(2, 1, 1, 2, 3, 4, 5, 7) }},
		{"five lanes", func() *models.Prediction { return newPrediction(2, 1, 1, 2, 3, 4, 5) }},
		{"confidence above one", func() *models.Prediction {
			p := newPrediction(2, 1)
			p.Confidence = 7.5
			return p
		}},
		{"negative confidence", func() *models.Prediction {
			p := newPrediction(2, 1)
			p.Confidence = -0.1
			return p
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.RecordPrediction(ctx, tt.build())
			assert.ErrorIs(t, err, models.ErrInvalidPrediction)
		})
	}

	_, err := store.GetPrediction(ctx, newPrediction(2, 1).Key)
	assert.ErrorIs(t, err, models.ErrNotFound, "rejected predictions must not be stored")
}

func TestConcurrentPredictionsForSameKey(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.RecordPrediction(ctx, newPrediction(3, 5))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, models.ErrDuplicateKey):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(9), dup.Load())
	assert.Zero(t, store.locks.size(), "locks are released")

	n, _, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordResultWithoutPrediction(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.RecordResult(context.Background(), 2, 3, "2024-05-01", []int{1, 2, 3})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRecordResultComputesHits(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.RecordPrediction(ctx, newPrediction(12, 11, 3, 1, 2, 4, 5, 6))
	require.NoError(t, err)

	rec, err := store.RecordResult(ctx, 12, 11, "2024-05-01", []int{1, 3, 2, 4, 5, 6})
	require.NoError(t, err)
	assert.Positive(t, rec.ID)
	assert.False(t, rec.WinHit)
	assert.True(t, rec.PlaceHit, "top pick finished second")
	assert.False(t, rec.TrifectaHit)
	assert.Equal(t, []int{3, 1, 2, 4, 5, 6}, rec.PredictedLanes)

	_, err = store.RecordResult(ctx, 12, 11, "2024-05-01", []int{3, 1, 2})
	assert.ErrorIs(t, err, models.ErrDuplicateKey)

	stored, err := store.GetRecord(ctx, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2, 4, 5, 6}, stored.ActualLanes)
}

func TestRecordResultRejectsBadOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.RecordPrediction(ctx, newPrediction(1, 2))
	require.NoError(t, err)

	for _, order := range [][]int{{1, 2}, {1, 1, 2}, {1, 2, 7}, {1, 2, 3, 4, 5, 6, 1}} {
		_, err := store.RecordResult(ctx, 1, 2, "2024-05-01", order)
		assert.ErrorIs(t, err, models.ErrInvalidOrder, "order %v", order)
	}
}

func TestSummaryHitRate(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	start := clock.Now()

	for race := 1; race <= 10; race++ {
		_, err := store.RecordPrediction(ctx, newPrediction(6, race))
		require.NoError(t, err)

		order := []int{2, 1, 3}
		if race <= 3 {
			order = []int{1, 2, 3}
		}
		clock.Advance(time.Minute)
		_, err = store.RecordResult(ctx, 6, race, "2024-05-01", order)
		require.NoError(t, err)
	}

	summary, err := store.GetSummary(ctx, start, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 10, summary.N)
	assert.Equal(t, 3, summary.WinHits)
	assert.InDelta(t, 0.3, summary.WinRate, 1e-9)
	assert.InDelta(t, 1.0, summary.PlaceRate, 1e-9)
	assert.InDelta(t, 0.3, summary.TrifectaRate, 1e-9)

	// the window is closed at both ends
	first, err := store.GetSummary(ctx, start.Add(time.Minute), start.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, first.N)
}

func TestSummaryEmptyWindow(t *testing.T) {
	store, clock := newTestStore(t)

	summary, err := store.GetSummary(context.Background(), clock.Now().Add(-time.Hour), clock.Now())
	require.NoError(t, err)
	assert.Zero(t, summary.N)
	assert.Zero(t, summary.WinRate)
	assert.Zero(t, summary.PlaceRate)
	assert.Zero(t, summary.TrifectaRate)
}

func TestSummaryRejectsInvertedWindow(t *testing.T) {
	store, clock := newTestStore(t)

	_, err := store.GetSummary(context.Background(), clock.Now(), clock.Now().Add(-time.Hour))
	assert.Error(t, err)
}

func TestPendingShrinksAsResultsArrive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for race := 1; race <= 3; race++ {
		_, err := store.RecordPrediction(ctx, newPrediction(9, race))
		require.NoError(t, err)
	}
	_, err := store.RecordResult(ctx, 9, 2, "2024-05-01", []int{1, 2, 3})
	require.NoError(t, err)

	pending, err := store.Pending(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestByDatePairsPredictionsWithRecords(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.RecordPrediction(ctx, newPrediction(5, 2, 2, 1, 3, 4, 5, 6))
	require.NoError(t, err)
	_, err = store.RecordPrediction(ctx, newPrediction(5, 1))
	require.NoError(t, err)
	_, err = store.RecordPrediction(ctx, newPrediction(7, 1))
	require.NoError(t, err)

	_, err = store.RecordResult(ctx, 5, 1, "2024-05-01", []int{1, 2, 3})
	require.NoError(t, err)
	_, err = store.RecordResult(ctx, 5, 2, "2024-05-01", []int{1, 2, 3})
	require.NoError(t, err)

	outcomes, err := store.ByDate(ctx, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, 1, outcomes[0].Prediction.Key.RaceNumber)
	assert.Equal(t, "hit", outcomes[0].Status())
	assert.Equal(t, "miss", outcomes[1].Status())
	assert.Equal(t, 7, outcomes[2].Prediction.Key.VenueID)
	assert.Equal(t, "pending", outcomes[2].Status())

	none, err := store.ByDate(ctx, "2024-05-02")
	require.NoError(t, err)
	assert.Empty(t, none)
}
