package markov

import "fmt"

// Direction is the hidden state of the chain: the sign of the next move.
type Direction uint8

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Valid reports whether d is Up or Down.
func (d Direction) Valid() bool { return d == Up || d == Down }

// Sign returns +1 for Up and -1 for Down.
func (d Direction) Sign() int {
	if d == Down {
		return -1
	}
	return 1
}

// ParseDirection accepts "up"/"down" (and the single-letter and sign forms used in CSV exports).
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up", "Up", "UP", "u", "+", "1":
		return Up, nil
	case "down", "Down", "DOWN", "d", "-", "-1":
		return Down, nil
	default:
		return Up, fmt.Errorf("unknown direction %q", s)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
