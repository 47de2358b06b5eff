package datasource

import (
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/kyotei-predictor/internal/models"
)

// JST is the race calendar's time zone. A fixed offset avoids depending on tzdata.
var JST = time.FixedZone("JST", 9*60*60)

const compactDateLayout = "20060102"

// ResolveDate turns "today", "tomorrow", "YYYY-MM-DD" or "YYYYMMDD" into a
// midnight JST date. now anchors the relative forms.
func ResolveDate(s string, now time.Time) (time.Time, error) {
	today := Midnight(now)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	for _, layout := range []string{models.DateLayout, compactDateLayout} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), JST); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q: want today, tomorrow, YYYY-MM-DD or YYYYMMDD", s)
}

// Midnight returns the start of t's calendar day in JST.
func Midnight(t time.Time) time.Time {
	y, m, d := t.In(JST).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, JST)
}

// SameDay reports whether a and b fall on the same JST calendar day.
func SameDay(a, b time.Time) bool {
	return Midnight(a).Equal(Midnight(b))
}
