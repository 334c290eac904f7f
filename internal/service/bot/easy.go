package bot

import (
	"math/rand"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

// Easy picks any move that does not crash right away.
type Easy struct{}

func (Easy) Choose(state domain.PlayerState) domain.Move {
	moves := openMoves(state)
	if len(moves) == 0 {
		return domain.KeepGoing
	}
	return moves[rand.Intn(len(moves))]
}
