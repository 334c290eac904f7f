package domain

// Spawn is where a player starts a round and which way it faces.
type Spawn struct {
	Position Position
	Facing   Direction
}

// MaxPlayers is how many players fit on a board of the given height.
func MaxPlayers(rows int) int {
	return 2 * ((rows + 1) / 2)
}

// StartPositions spreads n players over the odd rows, alternating the
// left edge (facing right) and the right edge (facing left).
func StartPositions(b *Board, n int) []Spawn {
	var oddRows []int
	for r := 1; r <= b.Rows(); r += 2 {
		oddRows = append(oddRows, r)
	}

	leftCount := (n + 1) / 2
	rightCount := n / 2

	spawns := make([]Spawn, 0, n)
	for i := 0; i < n; i++ {
		slot := i / 2
		if i%2 == 0 {
			row := oddRows[(2*slot+1)*len(oddRows)/(2*leftCount)]
			spawns = append(spawns, Spawn{Position{row, 1}, Right})
		} else {
			row := oddRows[(2*slot+1)*len(oddRows)/(2*rightCount)]
			spawns = append(spawns, Spawn{Position{row, b.LastColumn(row)}, Left})
		}
	}
	return spawns
}
