package domain

import (
	"fmt"
	"strconv"
)

type TileStatus int

const (
	Wall TileStatus = iota
	Vacant
	Taken
)

func (s TileStatus) String() string {
	switch s {
	case Wall:
		return "WALL"
	case Vacant:
		return "VACANT"
	case Taken:
		return "TAKEN"
	}
	return "UNKNOWN"
}

type Position struct {
	Row int `json:"row"`
	Col int `json:"column"`
}

// String is the canonical encoding used to key positions.
func (p Position) String() string {
	return strconv.Itoa(p.Row) + ":" + strconv.Itoa(p.Col)
}

// Board is a staggered hex grid surrounded by a ring of walls. Odd rows
// have one more playable cell than even rows, giving the brick layout.
type Board struct {
	rows   int
	cols   int
	tiles  [][]TileStatus
	owners map[Position]string
}

func NewBoard(rows, cols int) *Board {
	b := &Board{rows: rows, cols: cols}
	b.Initialize()
	return b
}

// Initialize (re)builds every tile: walls on the ring, vacant inside.
func (b *Board) Initialize() {
	b.tiles = make([][]TileStatus, b.rows+2)
	for i := range b.tiles {
		line := make([]TileStatus, b.cols+2)
		for j := range line {
			if b.isWall(i, j) {
				line[j] = Wall
			} else {
				line[j] = Vacant
			}
		}
		b.tiles[i] = line
	}
	b.owners = make(map[Position]string)
}

func (b *Board) isWall(row, col int) bool {
	if row == 0 || row == b.rows+1 || col == 0 {
		return true
	}
	// the right wall steps in by one on even rows
	if row%2 == 1 {
		return col >= b.cols+1
	}
	return col >= b.cols
}

func (b *Board) Rows() int { return b.rows }
func (b *Board) Cols() int { return b.cols }

// LastColumn returns the right-most playable column of a row.
func (b *Board) LastColumn(row int) int {
	if row%2 == 1 {
		return b.cols
	}
	return b.cols - 1
}

func (b *Board) inRange(p Position) bool {
	return p.Row >= 0 && p.Row < len(b.tiles) && p.Col >= 0 && p.Col < len(b.tiles[p.Row])
}

// Tile returns the status at p, WALL for anything outside the grid.
func (b *Board) Tile(p Position) TileStatus {
	if !b.inRange(p) {
		return Wall
	}
	return b.tiles[p.Row][p.Col]
}

func (b *Board) Owner(p Position) string {
	return b.owners[p]
}

func (b *Board) CheckPositionValidity(p Position) bool {
	if p.Row <= 0 || p.Row >= b.rows+1 || p.Col <= 0 || p.Col >= b.cols+1 {
		return false
	}
	return b.Tile(p) == Vacant
}

func (b *Board) Claim(p Position, playerID string) error {
	if !b.CheckPositionValidity(p) {
		return fmt.Errorf("claim %s for %s: %w", p, playerID, ErrInvalidPosition)
	}
	b.tiles[p.Row][p.Col] = Taken
	b.owners[p] = playerID
	return nil
}
