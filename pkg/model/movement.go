package model

// Movement classifies a final performance value against a sector band.
type Movement int

const (
	Stay Movement = iota
	MoveUp
	MoveDown
)

func (m Movement) String() string {
	switch m {
	case Stay:
		return "stay"
	case MoveUp:
		return "moveUp"
	case MoveDown:
		return "moveDown"
	}
	return "unknown"
}
