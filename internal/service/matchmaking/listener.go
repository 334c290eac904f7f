package matchmaking

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/iamasit07/hextron/backend/internal/domain"
	"github.com/iamasit07/hextron/backend/internal/service/game"
)

// emitter relays everything an engine reports to the match room.
func (r *Registry) emitter(s *Session) game.EmitFunc {
	return func(status domain.Status, data any) {
		r.broadcast(s, domain.EventRefreshStatus, domain.RefreshStatus{Status: status, Data: data})
		if status == domain.StatusRoundEnd {
			r.publish(s.Match)
		}
	}
}

// engineDone is called from the engine goroutine once Run returns.
func (r *Registry) engineDone(s *Session, err error) {
	switch {
	case err == nil:
		r.retire(s, game.ReasonCompleted)
	case errors.Is(err, context.Canceled):
		// stopped by retire or shutdown
		r.retire(s, game.ReasonAbandoned)
	default:
		log.Errorf("[MATCHMAKING] Match %s failed: %v", s.Match.ID, err)
		r.broadcast(s, domain.EventError, domain.ErrorPayload{
			Type:    domain.ErrTypeGameError,
			Message: err.Error(),
		})
		r.retire(s, game.ReasonError)
	}
}
