package entities

import "fmt"

// Direction is the way an attribute moves in the display order
type Direction int

const (
	// Up moves the attribute one rank towards the start
	Up Direction = iota
	// Down moves the attribute one rank towards the end
	Down
)

// String returns "up" or "down"
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Target returns the rank an attribute at rank lands on when moved in d.
// It returns ErrAtBoundary when the target would fall below rank 1.
func (d Direction) Target(rank int) (int, error) {
	switch d {
	case Up:
		if rank <= 1 {
			return 0, ErrAtBoundary
		}
		return rank - 1, nil
	case Down:
		return rank + 1, nil
	default:
		return 0, fmt.Errorf("%w: unknown direction %d", ErrInvalidArgument, int(d))
	}
}
