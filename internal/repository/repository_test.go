package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/kyotei-predictor/internal/database"
	"github.com/yourusername/kyotei-predictor/internal/models"
)

var baseTime = time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)

func key(venueID, race int, date string) models.RaceKey {
	return models.RaceKey{VenueID: venueID, RaceNumber: race, Date: date}
}

func prediction(k models.RaceKey, lanes []int, conf float64, at time.Time) *models.Prediction {
	return &models.Prediction{Key: k, RankedLanes: lanes, Confidence: conf, CreatedAt: at}
}

func record(k models.RaceKey, actual []int, win bool, at time.Time) *models.AccuracyRecord {
	return &models.AccuracyRecord{Key: k, ActualLanes: actual, WinHit: win, RecordedAt: at}
}

// backends returns every repository set available in this environment.
func backends(t *testing.T) map[string]func(t *testing.T) *Repositories {
	return map[string]func(t *testing.T) *Repositories{
		"sqlite": func(t *testing.T) *Repositories {
			repos, err := NewRepositories(database.SetupTestSQLite(t))
			require.NoError(t, err)
			return repos
		},
		"postgres": func(t *testing.T) *Repositories {
			repos, err := NewRepositories(database.SetupTestPostgres(t))
			require.NoError(t, err)
			return repos
		},
	}
}

func TestPredictionInsertAndGet(t *testing.T) {
	for name, setup := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := setup(t)
			ctx := context.Background()
			k := key(4, 7, "2024-05-01")

			id, err := repos.Prediction.Insert(ctx, prediction(k, []int{1, 3, 2, 4, 6, 5}, 0.72, baseTime))
			require.NoError(t, err)
			assert.Positive(t, id)

			got, err := repos.Prediction.GetByKey(ctx, k)
			require.NoError(t, err)
			assert.Equal(t, id, got.ID)
			assert.Equal(t, k, got.Key)
			assert.Equal(t, []int{1, 3, 2, 4, 6, 5}, got.RankedLanes)
			assert.InDelta(t, 0.72, got.Confidence, 1e-9)
			assert.True(t, got.CreatedAt.Equal(baseTime))
		})
	}
}

func TestPredictionDuplicateKeepsFirst(t *testing.T) {
	for name, setup := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := setup(t)
			ctx := context.Background()
			k := key(1, 1, "2024-05-01")

			_, err := repos.Prediction.Insert(ctx, prediction(k, []int{1, 2, 3, 4, 5, 6}, 0.6, baseTime))
			require.NoError(t, err)

			_, err = repos.Prediction.Insert(ctx, prediction(k, []int{6, 5, 4, 3, 2, 1}, 0.9, baseTime.Add(time.Hour)))
			require.ErrorIs(t, err, models.ErrDuplicateKey)

			got, err := repos.Prediction.GetByKey(ctx, k)
			require.NoError(t, err)
			assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, got.RankedLanes)

			n, err := repos.Prediction.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	for name, setup := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := setup(t)
			ctx := context.Background()

			_, err := repos.Prediction.GetByKey(ctx, key(2, 2, "2024-05-01"))
			assert.ErrorIs(t, err, models.ErrNotFound)

			_, err = repos.Result.GetByKey(ctx, key(2, 2, "2024-05-01"))
			assert.ErrorIs(t, err, models.ErrNotFound)
		})
	}
}

func TestResultInsertJoinsPrediction(t *testing.T) {
	for name, setup := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := setup(t)
			ctx := context.Background()
			k := key(12, 11, "2024-05-01")

			pid, err := repos.Prediction.Insert(ctx, prediction(k, []int{3, 1, 2, 4, 5, 6}, 0.55, baseTime))
			require.NoError(t, err)

			rec := record(k, []int{3, 2, 1}, true, baseTime.Add(6*time.Hour))
			rec.PlaceHit = true
			rid, err := repos.Result.Insert(ctx, rec)
			require.NoError(t, err)

			got, err := repos.Result.GetByKey(ctx, k)
			require.NoError(t, err)
			assert.Equal(t, rid, got.ID)
			assert.Equal(t, pid, got.PredictionID)
			assert.Equal(t, []int{3, 1, 2, 4, 5, 6}, got.PredictedLanes)
			assert.Equal(t, []int{3, 2, 1}, got.ActualLanes)
			assert.True(t, got.WinHit)
			assert.True(t, got.PlaceHit)
			assert.False(t, got.TrifectaHit)
			assert.InDelta(t, 0.55, got.Confidence, 1e-9)

			_, err = repos.Result.Insert(ctx, record(k, []int{1, 2, 3}, false, baseTime.Add(7*time.Hour)))
			assert.ErrorIs(t, err, models.ErrDuplicateKey)
		})
	}
}

func TestPendingExcludesReconciled(t *testing.T) {
	for name, setup := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := setup(t)
			ctx := context.Background()

			for race := 1; race <= 3; race++ {
				_, err := repos.Prediction.Insert(ctx, prediction(key(5, race, "2024-05-01"), []int{1, 2, 3, 4, 5, 6}, 0.5, baseTime))
				require.NoError(t, err)
			}
			_, err := repos.Prediction.Insert(ctx, prediction(key(5, 1, "2024-05-02"), []int{1, 2, 3, 4, 5, 6}, 0.5, baseTime))
			require.NoError(t, err)
			_, err = repos.Result.Insert(ctx, record(key(5, 2, "2024-05-01"), []int{1, 2, 3}, true, baseTime))
			require.NoError(t, err)

			pending, err := repos.Prediction.GetPending(ctx, "2024-05-01")
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, 1, pending[0].Key.RaceNumber)
			assert.Equal(t, 3, pending[1].Key.RaceNumber)

			all, err := repos.Prediction.GetPending(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			day, err := repos.Prediction.GetByDate(ctx, "2024-05-01")
			require.NoError(t, err)
			assert.Len(t, day, 3)
		})
	}
}

func TestGetByTimeRangeIsClosedInterval(t *testing.T) {
	for name, setup := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := setup(t)
			ctx := context.Background()

			times := []time.Time{baseTime, baseTime.Add(time.Hour), baseTime.Add(2 * time.Hour)}
			for i, at := range times {
				k := key(6, i+1, "2024-05-01")
				_, err := repos.Prediction.Insert(ctx, prediction(k, []int{1, 2, 3, 4, 5, 6}, 0.5, baseTime))
				require.NoError(t, err)
				_, err = repos.Result.Insert(ctx, record(k, []int{1, 2, 3}, i == 0, at))
				require.NoError(t, err)
			}

			got, err := repos.Result.GetByTimeRange(ctx, times[0], times[1])
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, 1, got[0].Key.RaceNumber)
			assert.Equal(t, 2, got[1].Key.RaceNumber)

			none, err := repos.Result.GetByTimeRange(ctx, times[2].Add(time.Millisecond), times[2].Add(time.Hour))
			require.NoError(t, err)
			assert.Empty(t, none)

			n, err := repos.Result.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	}
}

func TestNewRepositoriesRequiresDatabase(t *testing.T) {
	_, err := NewRepositories(nil)
	assert.Error(t, err)
}

func TestLanesEncoding(t *testing.T) {
	s, err := encodeLanes([]int{1, 3, 2, 4, 6, 5})
	require.NoError(t, err)
	assert.Equal(t, "[1,3,2,4,6,5]", s)

	empty, err := encodeLanes(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	_, err = decodeLanes([]byte("not json"))
	assert.Error(t, err)
}
