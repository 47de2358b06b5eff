package repository

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/yourusername/kyotei-predictor/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Prediction PredictionRepository
	Result     ResultRepository
}

// NewRepositories creates the repository implementations matching the database driver
func NewRepositories(db database.DB) (*Repositories, error) {
	switch d := db.(type) {
	case nil:
		return nil, fmt.Errorf("database connection is required")
	case *database.SQLiteDB:
		return &Repositories{
			Prediction: NewSQLitePredictionRepository(d),
			Result:     NewSQLiteResultRepository(d),
		}, nil
	case *database.PostgresDB:
		return &Repositories{
			Prediction: NewPostgresPredictionRepository(d),
			Result:     NewPostgresResultRepository(d),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %T", db)
	}
}

// encodeLanes serializes lanes as a JSON array, e.g. [1,3,2,4,6,5]
func encodeLanes(lanes []int) (string, error) {
	if lanes == nil {
		lanes = []int{}
	}
	b, err := json.Marshal(lanes)
	if err != nil {
		return "", fmt.Errorf("failed to encode lanes: %w", err)
	}
	return string(b), nil
}

func decodeLanes(raw []byte) ([]int, error) {
	var lanes []int
	if err := json.Unmarshal(raw, &lanes); err != nil {
		return nil, fmt.Errorf("failed to decode lanes %q: %w", raw, err)
	}
	return lanes, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
