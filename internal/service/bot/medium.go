package bot

import (
	"math"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

// Medium keeps going straight when it can and steers away from the
// tiles an opponent could reach on the same tick.
type Medium struct{}

func (Medium) Choose(state domain.PlayerState) domain.Move {
	best := domain.KeepGoing
	bestScore := math.MinInt

	for _, m := range openMoves(state) {
		score := scoreMove(state, m)
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	return best
}

func scoreMove(state domain.PlayerState, m domain.Move) int {
	next := nextPosition(state, m)
	score := 0
	for _, opponent := range state.Opponents {
		// an opponent one step away may move into the same tile
		if isNeighbour(next, opponent) {
			score -= 2
		}
	}
	return score
}
