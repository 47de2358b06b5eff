package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/kyotei-predictor/internal/accuracy"
	"github.com/yourusername/kyotei-predictor/internal/database"
	"github.com/yourusername/kyotei-predictor/internal/datasource"
	"github.com/yourusername/kyotei-predictor/internal/models"
	"github.com/yourusername/kyotei-predictor/internal/repository"
	"github.com/yourusername/kyotei-predictor/internal/scoring"
)

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, datasource.JST)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchProgram(ctx context.Context, venueID, raceNumber int, date string) ([]models.Entry, error) {
	args := m.Called(ctx, venueID, raceNumber, date)
	if e := args.Get(0); e != nil {
		return e.([]models.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFetcher) FetchDay(ctx context.Context, date string) ([]datasource.RaceProgram, error) {
	args := m.Called(ctx, date)
	if p := args.Get(0); p != nil {
		return p.([]datasource.RaceProgram), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFetcher) FetchResults(ctx context.Context, date string) ([]models.Result, error) {
	args := m.Called(ctx, date)
	if r := args.Get(0); r != nil {
		return r.([]models.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFetcher) Now() time.Time {
	return testNow
}

func entry(lane int, national, motor, st float64) models.Entry {
	return models.Entry{
		Lane:               lane,
		RacerName:          "racer",
		NationalWinRate:    models.Float(national),
		LocalWinRate:       models.Float(national / 2),
		MotorIndex:         models.Float(motor),
		BoatIndex:          models.Float(motor),
		AverageStartTiming: models.Float(st),
	}
}

// roster favors favorite; every other lane is weaker.
func roster(favorite int) []models.Entry {
	entries := make([]models.Entry, 6)
	for i := range entries {
		lane := i + 1
		if lane == favorite {
			entries[i] = entry(lane, 60, 70, 0.11)
		} else {
			entries[i] = entry(lane, 20-float64(lane), 30, 0.15+float64(lane)/100)
		}
	}
	return entries
}

func newTestService(t *testing.T, fetcher ProgramFetcher, opts ...Option) (*PredictionService, *accuracy.Store) {
	t.Helper()
	repos, err := repository.NewRepositories(database.SetupTestSQLite(t))
	require.NoError(t, err)
	store := accuracy.NewStore(repos, nil)
	return NewPredictionService(fetcher, scoring.NewEngine(), store, nil, opts...), store
}

func TestPredictRaceRecordsPrediction(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("FetchProgram", mock.Anything, 4, 7, "2024-05-01").Return(roster(1), nil)
	svc, store := newTestService(t, fetcher)

	p, err := svc.PredictRace(context.Background(), 4, 7, "today")
	require.NoError(t, err)
	assert.Equal(t, 1, p.RecommendedWin())
	assert.Equal(t, "20240501_04_07", p.Key.String())
	assert.Positive(t, p.ID)

	stored, err := store.GetPrediction(context.Background(), p.Key)
	require.NoError(t, err)
	assert.Equal(t, p.RankedLanes, stored.RankedLanes)
	fetcher.AssertExpectations(t)
}

func TestPredictRaceReturnsStoredPredictionOnRepeat(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("FetchProgram", mock.Anything, 4, 7, "2024-05-01").Return(roster(1), nil).Once()
	fetcher.On("FetchProgram", mock.Anything, 4, 7, "2024-05-01").Return(roster(3), nil).Once()
	svc, _ := newTestService(t, fetcher)

	first, err := svc.PredictRace(context.Background(), 4, 7, "2024-05-01")
	require.NoError(t, err)
	second, err := svc.PredictRace(context.Background(), 4, 7, "2024-05-01")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.RecommendedWin(), "first prediction is kept")
}

func TestPredictRaceFetchFailure(t *testing.T) {
	fetchErr := datasource.NewFetchError("test", datasource.ReasonTimeout, "20240501_04_07", context.DeadlineExceeded)
	fetcher := new(MockFetcher)
	fetcher.On("FetchProgram", mock.Anything, 4, 7, "2024-05-01").Return(nil, fetchErr)
	svc, store := newTestService(t, fetcher)

	p, err := svc.PredictRace(context.Background(), 4, 7, "2024-05-01")
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrNoPrediction)
	assert.True(t, datasource.IsReason(err, datasource.ReasonTimeout))

	n, _, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPredictRaceScoringFailureRecordsNothing(t *testing.T) {
	broken := roster(1)
	broken[2].MotorIndex = nil
	fetcher := new(MockFetcher)
	fetcher.On("FetchProgram", mock.Anything, 4, 7, "2024-05-01").Return(broken, nil)
	svc, store := newTestService(t, fetcher)

	_, err := svc.PredictRace(context.Background(), 4, 7, "2024-05-01")
	assert.ErrorIs(t, err, ErrNoPrediction)
	var se *scoring.ScoringError
	assert.True(t, errors.As(err, &se))

	n, _, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPredictRaceRejectsInvalidKey(t *testing.T) {
	svc, _ := newTestService(t, new(MockFetcher))

	_, err := svc.PredictRace(context.Background(), 30, 1, "today")
	assert.ErrorIs(t, err, models.ErrInvalidKey)

	_, err = svc.PredictRace(context.Background(), 1, 13, "today")
	assert.ErrorIs(t, err, models.ErrInvalidKey)

	_, err = svc.PredictRace(context.Background(), 1, 1, "someday")
	assert.ErrorIs(t, err, models.ErrInvalidKey)
}

func dayPrograms() []datasource.RaceProgram {
	var programs []datasource.RaceProgram
	for _, venueID := range []int{1, 12} {
		for race := 1; race <= 4; race++ {
			programs = append(programs, datasource.RaceProgram{
				VenueID:    venueID,
				RaceNumber: race,
				Entries:    roster(race),
			})
		}
	}
	// an incomplete roster fails scoring
	programs = append(programs, datasource.RaceProgram{VenueID: 24, RaceNumber: 1, Entries: roster(1)[:5]})
	return programs
}

func TestPredictDateWithWorkerPool(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("FetchDay", mock.Anything, "2024-05-01").Return(dayPrograms(), nil)
	svc, store := newTestService(t, fetcher, WithWorkers(4))

	summary, err := svc.PredictDate(context.Background(), "today")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", summary.Date)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 9, summary.Attempted)
	assert.Equal(t, 8, summary.Recorded)
	assert.Equal(t, 1, summary.Failed)

	pending, err := store.Pending(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.Len(t, pending, 8)

	// a second run finds every race already predicted
	again, err := svc.PredictDate(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, 8, again.Existing)
	assert.Zero(t, again.Recorded)
}

func TestPredictDateMinConfidence(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("FetchDay", mock.Anything, "2024-05-01").Return(dayPrograms(), nil)
	svc, _ := newTestService(t, fetcher, WithMinConfidence(1.01))

	summary, err := svc.PredictDate(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Skipped)
	assert.Zero(t, summary.Recorded)
}

func TestPredictDateFetchFailure(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("FetchDay", mock.Anything, "2024-05-01").Return(nil, errors.New("upstream down"))
	svc, _ := newTestService(t, fetcher)

	_, err := svc.PredictDate(context.Background(), "2024-05-01")
	assert.Error(t, err)
}

func TestReconcileDate(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("FetchDay", mock.Anything, "2024-05-01").Return(dayPrograms(), nil)
	day := "2024-05-01"
	fetcher.On("FetchResults", mock.Anything, day).Return([]models.Result{
		// roster(1) favors lane 1, which wins
		{Key: models.RaceKey{VenueID: 1, RaceNumber: 1, Date: day}, Order: []int{1, 2, 3, 4, 5, 6}},
		// roster(2) favors lane 2, which finishes third
		{Key: models.RaceKey{VenueID: 1, RaceNumber: 2, Date: day}, Order: []int{4, 5, 2}},
		// no prediction for this race
		{Key: models.RaceKey{VenueID: 5, RaceNumber: 9, Date: day}, Order: []int{1, 2, 3}},
	}, nil)
	svc, store := newTestService(t, fetcher)
	ctx := context.Background()

	_, err := svc.PredictDate(ctx, day)
	require.NoError(t, err)

	summary, err := svc.ReconcileDate(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Recorded)
	assert.Equal(t, 1, summary.WinHits)
	assert.Equal(t, 1, summary.Unmatched)

	pending, err := store.Pending(ctx, day)
	require.NoError(t, err)
	assert.Len(t, pending, 6)

	// reconciled races are no longer pending, so a rerun records nothing
	again, err := svc.ReconcileDate(ctx, day)
	require.NoError(t, err)
	assert.Zero(t, again.Recorded)
}

func TestReconcileDateWithoutPendingSkipsFetch(t *testing.T) {
	fetcher := new(MockFetcher)
	svc, _ := newTestService(t, fetcher)

	summary, err := svc.ReconcileDate(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.Zero(t, summary.Attempted)
	fetcher.AssertNotCalled(t, "FetchResults", mock.Anything, mock.Anything)
}
