package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/yourusername/kyotei-predictor/internal/logger"
	"github.com/yourusername/kyotei-predictor/internal/metrics"
	"github.com/yourusername/kyotei-predictor/internal/models"
)

const (
	openAPISourceName = "boatrace_openapi"

	// DefaultBaseURL is the public BoatraceOpenAPI host.
	DefaultBaseURL = "https://boatraceopenapi.github.io"

	feedPrograms = "programs"
	feedResults  = "results"
)

var racerClasses = map[int]string{1: "A1", 2: "A2", 3: "B1", 4: "B2"}

// httpGetter is the subset of RateLimitedHTTPClient used by the feed client.
type httpGetter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

type breakerStater interface {
	BreakerState() string
}

// OpenAPIClient implements RaceSource for the BoatraceOpenAPI day feeds
type OpenAPIClient struct {
	httpClient httpGetter
	baseURL    string
	now        func() time.Time
	logger     *logger.FetchLogger
}

// openAPIProgramFeed is the programs/v2 day document
type openAPIProgramFeed struct {
	Programs []openAPIProgram `json:"programs"`
}

type openAPIProgram struct {
	RaceDate      string        `json:"race_date"`
	StadiumNumber int           `json:"race_stadium_number"`
	RaceNumber    int           `json:"race_number"`
	ClosedAt      string        `json:"race_closed_at"`
	Title         string        `json:"race_title"`
	Boats         []openAPIBoat `json:"boats"`
}

type openAPIBoat struct {
	BoatNumber       *int     `json:"racer_boat_number"`
	RacerNumber      int      `json:"racer_number"`
	RacerName        string   `json:"racer_name"`
	ClassNumber      *int     `json:"racer_class_number"`
	NationalTop1     *float64 `json:"racer_national_top_1_percent"`
	NationalTop2     *float64 `json:"racer_national_top_2_percent"`
	LocalTop1        *float64 `json:"racer_local_top_1_percent"`
	LocalTop2        *float64 `json:"racer_local_top_2_percent"`
	MotorTop2        *float64 `json:"racer_assigned_motor_top_2_percent"`
	BoatTop2         *float64 `json:"racer_assigned_boat_top_2_percent"`
	AverageStartTime *float64 `json:"racer_average_start_timing"`
	FlyingCount      *float64 `json:"racer_flying_count"`
	RacerWeight      *float64 `json:"racer_weight"`
}

// openAPIResultFeed is the results/v2 day document
type openAPIResultFeed struct {
	Results []openAPIResult `json:"results"`
}

type openAPIResult struct {
	StadiumNumber int                 `json:"race_stadium_number"`
	RaceNumber    int                 `json:"race_number"`
	Boats         []openAPIResultBoat `json:"boats"`
}

type openAPIResultBoat struct {
	BoatNumber  *int `json:"racer_boat_number"`
	PlaceNumber *int `json:"racer_place_number"`
}

// NewOpenAPIClient creates a new BoatraceOpenAPI feed client
func NewOpenAPIClient(httpClient httpGetter, baseURL string, log logrus.FieldLogger) *OpenAPIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenAPIClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
		logger:     logger.NewFetchLogger(log),
	}
}

// Name returns the data source name
func (c *OpenAPIClient) Name() string {
	return openAPISourceName
}

// BreakerState reports the upstream circuit breaker state, or "" when the
// HTTP client has no breaker.
func (c *OpenAPIClient) BreakerState() string {
	if b, ok := c.httpClient.(breakerStater); ok {
		return b.BreakerState()
	}
	return ""
}

// FeedURL returns the day document URL for a feed. Today's document is published as today.json.
func (c *OpenAPIClient) FeedURL(feed string, day time.Time) string {
	if SameDay(day, c.now()) {
		return fmt.Sprintf("%s/%s/v2/today.json", c.baseURL, feed)
	}
	d := Midnight(day)
	return fmt.Sprintf("%s/%s/v2/%s/%s.json", c.baseURL, feed, d.Format("2006"), d.Format(compactDateLayout))
}

// FetchDayPrograms retrieves every race program published for the given day
func (c *OpenAPIClient) FetchDayPrograms(ctx context.Context, day time.Time) ([]RaceProgram, error) {
	var feed openAPIProgramFeed
	if err := c.getFeed(ctx, feedPrograms, day, &feed); err != nil {
		return nil, err
	}
	if len(feed.Programs) == 0 {
		return nil, NewFetchError(c.Name(), ReasonMalformed, day.Format(models.DateLayout), errors.New("feed contains no programs"))
	}

	programs := make([]RaceProgram, 0, len(feed.Programs))
	for _, p := range feed.Programs {
		programs = append(programs, convertProgram(p))
	}
	return programs, nil
}

// FetchDayResults retrieves every finished race result published for the given day.
// Races without at least three placed boats (cancelled or voided) are skipped.
func (c *OpenAPIClient) FetchDayResults(ctx context.Context, day time.Time) ([]RaceResult, error) {
	var feed openAPIResultFeed
	if err := c.getFeed(ctx, feedResults, day, &feed); err != nil {
		return nil, err
	}

	results := make([]RaceResult, 0, len(feed.Results))
	for _, r := range feed.Results {
		order := finishingOrder(r.Boats)
		if len(order) < 3 {
			c.logger.WithFields(logrus.Fields{
				"venue_id":    r.StadiumNumber,
				"race_number": r.RaceNumber,
			}).Debug("Skipping result without three placed boats")
			continue
		}
		results = append(results, RaceResult{
			VenueID:    r.StadiumNumber,
			RaceNumber: r.RaceNumber,
			Order:      order,
		})
	}
	return results, nil
}

// getFeed downloads and decodes one day document, classifying failures
func (c *OpenAPIClient) getFeed(ctx context.Context, feed string, day time.Time, out interface{}) error {
	url := c.FeedURL(feed, day)
	key := day.Format(models.DateLayout)
	start := time.Now()

	resp, err := c.httpClient.Get(ctx, url)
	elapsed := time.Since(start)
	if err != nil {
		reason := classifyError(ctx, err)
		metrics.RecordUpstreamRequest(feed, reason, elapsed.Seconds())
		return NewFetchError(c.Name(), reason, key, err)
	}
	defer resp.Body.Close()

	c.logger.LogUpstreamRequest(url, resp.StatusCode, float64(elapsed.Milliseconds()))

	if resp.StatusCode == http.StatusNotFound {
		metrics.RecordUpstreamRequest(feed, ReasonNotFound, elapsed.Seconds())
		return NewFetchError(c.Name(), ReasonNotFound, key, &StatusError{Code: resp.StatusCode, URL: url})
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordUpstreamRequest(feed, ReasonStatus, elapsed.Seconds())
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return NewFetchError(c.Name(), ReasonStatus, key, &StatusError{Code: resp.StatusCode, URL: url})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.RecordUpstreamRequest(feed, ReasonMalformed, elapsed.Seconds())
		if isTimeout(ctx, err) {
			return NewFetchError(c.Name(), ReasonTimeout, key, err)
		}
		return NewFetchError(c.Name(), ReasonMalformed, key, fmt.Errorf("failed to parse response: %w", err))
	}

	metrics.RecordUpstreamRequest(feed, "ok", elapsed.Seconds())
	return nil
}

// classifyError maps a transport-level failure to a FetchError reason
func classifyError(ctx context.Context, err error) string {
	var se *StatusError
	switch {
	case isTimeout(ctx, err):
		return ReasonTimeout
	case errors.As(err, &se):
		return ReasonStatus
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ReasonCircuitOpen
	default:
		return ReasonNetwork
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// convertProgram converts a feed program to the normalized form.
// Missing stats stay nil so the scoring engine can reject them.
func convertProgram(p openAPIProgram) RaceProgram {
	race := RaceProgram{
		VenueID:    p.StadiumNumber,
		RaceNumber: p.RaceNumber,
		ClosedAt:   p.ClosedAt,
		Title:      p.Title,
		Entries:    make([]models.Entry, 0, len(p.Boats)),
	}

	for _, b := range p.Boats {
		entry := models.Entry{
			RacerID:            b.RacerNumber,
			RacerName:          strings.TrimSpace(b.RacerName),
			NationalWinRate:    b.NationalTop1,
			LocalWinRate:       b.LocalTop1,
			MotorIndex:         b.MotorTop2,
			BoatIndex:          b.BoatTop2,
			AverageStartTiming: b.AverageStartTime,
		}
		if b.BoatNumber != nil {
			entry.Lane = *b.BoatNumber
		}
		if b.ClassNumber != nil {
			entry.RacerClass = racerClasses[*b.ClassNumber]
		}
		entry.Auxiliary = auxiliary(b)
		race.Entries = append(race.Entries, entry)
	}

	sort.SliceStable(race.Entries, func(i, j int) bool {
		return race.Entries[i].Lane < race.Entries[j].Lane
	})
	return race
}

func auxiliary(b openAPIBoat) map[string]float64 {
	aux := map[string]float64{}
	add := func(name string, v *float64) {
		if v != nil {
			aux[name] = *v
		}
	}
	add(models.AuxNationalTop2, b.NationalTop2)
	add(models.AuxLocalTop2, b.LocalTop2)
	add(models.AuxFlyingCount, b.FlyingCount)
	add(models.AuxWeight, b.RacerWeight)
	if len(aux) == 0 {
		return nil
	}
	return aux
}

// finishingOrder returns boat numbers ordered by place, ignoring unplaced boats
func finishingOrder(boats []openAPIResultBoat) []int {
	type placed struct{ lane, place int }
	ps := make([]placed, 0, len(boats))
	for _, b := range boats {
		if b.BoatNumber == nil || b.PlaceNumber == nil || *b.PlaceNumber <= 0 {
			continue
		}
		ps = append(ps, placed{lane: *b.BoatNumber, place: *b.PlaceNumber})
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].place < ps[j].place })

	order := make([]int, 0, len(ps))
	for _, p := range ps {
		order = append(order, p.lane)
	}
	return order
}
