package accuracy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	predicted := []int{1, 3, 2, 4, 5, 6}

	tests := []struct {
		name   string
		actual []int
		want   Hits
	}{
		{"exact top three", []int{1, 3, 2}, Hits{Win: true, Place: true, Trifecta: true}},
		{"win only", []int{1, 2, 3, 4, 5, 6}, Hits{Win: true, Place: true}},
		{"pick finished second", []int{4, 1, 3}, Hits{Place: true}},
		{"pick finished third", []int{4, 3, 1}, Hits{}},
		{"same set wrong order", []int{3, 1, 2}, Hits{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(predicted, tt.actual))
		})
	}
}

func TestEvaluateEmpty(t *testing.T) {
	assert.Equal(t, Hits{}, Evaluate(nil, []int{1, 2, 3}))
	assert.Equal(t, Hits{}, Evaluate([]int{1, 2, 3, 4, 5, 6}, nil))
}
