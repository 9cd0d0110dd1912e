package submissions

import "context"

// DefaultListLimit applies when a caller passes a non-positive limit.
const DefaultListLimit = 50

// MaxListLimit caps List.
const MaxListLimit = 500

// Repo persists submission history.
type Repo interface {
	Create(ctx context.Context, rec Record) error
	List(ctx context.Context, email string, limit int) ([]Record, error)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
