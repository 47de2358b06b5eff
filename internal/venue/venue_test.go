package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllVenues(t *testing.T) {
	all := All()
	require.Len(t, all, VenueCount)
	for i, v := range all {
		assert.Equal(t, i+1, v.ID)
		assert.NotEmpty(t, v.Name)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input  string
		wantID int
		ok     bool
	}{
		{"4", 4, true},
		{"04", 4, true},
		{"平和島", 4, true},
		{"suminoe", 12, true},
		{"25", 0, false},
		{"nowhere", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, v.ID)
		})
	}
}

func TestCodeAndName(t *testing.T) {
	v, ok := Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "01", v.Code())
	assert.Equal(t, "桐生", Name(1))
	assert.Equal(t, "不明", Name(99))
}

func TestRaceNumberAndLaneBounds(t *testing.T) {
	assert.True(t, IsValidRaceNumber(1))
	assert.True(t, IsValidRaceNumber(12))
	assert.False(t, IsValidRaceNumber(0))
	assert.False(t, IsValidRaceNumber(13))
	assert.True(t, IsValidLane(6))
	assert.False(t, IsValidLane(7))
}
