package bot

import (
	"github.com/iamasit07/hextron/backend/internal/domain"
)

// New selects the strategy for a difficulty, medium when unknown
func New(difficulty string) domain.Strategy {
	switch difficulty {
	case "easy":
		return Easy{}
	case "medium":
		return Medium{}
	default:
		return Medium{}
	}
}

// preference order when several moves score the same
var preference = [domain.MoveCount]domain.Move{domain.KeepGoing, domain.TurnLeft, domain.TurnRight}

// nextPosition is where the move would take the bike
func nextPosition(state domain.PlayerState, m domain.Move) domain.Position {
	steering := domain.NewSteering(state.Direction)
	return steering.Peek(m).Next(state.Position)
}

func isNeighbour(a, b domain.Position) bool {
	for d := domain.TopLeft; d <= domain.Left; d++ {
		if d.Next(a) == b {
			return true
		}
	}
	return false
}

func openMoves(state domain.PlayerState) []domain.Move {
	moves := []domain.Move{}
	for _, m := range preference {
		if state.Open[m] {
			moves = append(moves, m)
		}
	}
	return moves
}
