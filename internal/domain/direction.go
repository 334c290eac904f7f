package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Direction is one of the six hex neighbours, numbered clockwise.
type Direction int

const (
	TopLeft Direction = iota
	TopRight
	Right
	BottomRight
	BottomLeft
	Left
)

const directionCount = 6

var directionNames = [directionCount]string{"TOP_LEFT", "TOP_RIGHT", "RIGHT", "BOTTOM_RIGHT", "BOTTOM_LEFT", "LEFT"}

func (d Direction) String() string {
	if d < 0 || d >= directionCount {
		return "UNKNOWN"
	}
	return directionNames[d]
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Rotate turns d by steps sixths of a turn, clockwise for positive steps.
func (d Direction) Rotate(steps int) Direction {
	return Direction(((int(d)+steps)%directionCount + directionCount) % directionCount)
}

// Next applies the fixed displacement of d to p. Odd rows are shifted
// half a cell to the left of even rows.
func (d Direction) Next(p Position) Position {
	odd := p.Row%2 == 1
	switch d {
	case Right:
		return Position{p.Row, p.Col + 1}
	case Left:
		return Position{p.Row, p.Col - 1}
	case TopLeft:
		if odd {
			return Position{p.Row - 1, p.Col - 1}
		}
		return Position{p.Row - 1, p.Col}
	case TopRight:
		if odd {
			return Position{p.Row - 1, p.Col}
		}
		return Position{p.Row - 1, p.Col + 1}
	case BottomRight:
		if odd {
			return Position{p.Row + 1, p.Col}
		}
		return Position{p.Row + 1, p.Col + 1}
	case BottomLeft:
		if odd {
			return Position{p.Row + 1, p.Col - 1}
		}
		return Position{p.Row + 1, p.Col}
	}
	return p
}

// Move is the logical input a player sends each tick.
type Move int

const (
	KeepGoing Move = iota
	TurnLeft
	TurnRight
)

const MoveCount = 3

var moveNames = [MoveCount]string{"KEEP_GOING", "TURN_LEFT", "TURN_RIGHT"}

func (m Move) String() string {
	if m < 0 || m >= MoveCount {
		return "UNKNOWN"
	}
	return moveNames[m]
}

func (m Move) Valid() bool {
	return m >= 0 && m < MoveCount
}

func ParseMove(s string) (Move, error) {
	for i, name := range moveNames {
		if strings.EqualFold(s, name) {
			return Move(i), nil
		}
	}
	return KeepGoing, fmt.Errorf("unknown move %q: %w", s, ErrInvalidInput)
}

// Steering keeps a player's heading and the lookup table turning a
// logical move into an absolute direction. The table is rebuilt every
// time the heading changes so inputs stay relative to the bike.
type Steering struct {
	Coming  Direction
	Mapping [MoveCount]Direction
}

func NewSteering(facing Direction) Steering {
	s := Steering{}
	s.face(facing)
	return s
}

func (s *Steering) face(d Direction) {
	s.Coming = d
	s.Mapping = [MoveCount]Direction{
		KeepGoing: d,
		TurnLeft:  d.Rotate(-1),
		TurnRight: d.Rotate(1),
	}
}

// Peek returns the direction m would lead to without turning.
func (s Steering) Peek(m Move) Direction {
	if !m.Valid() {
		m = KeepGoing
	}
	return s.Mapping[m]
}

// Apply turns according to m and returns the new heading.
func (s *Steering) Apply(m Move) Direction {
	d := s.Peek(m)
	s.face(d)
	return d
}
