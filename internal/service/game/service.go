package game

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

const (
	ReasonCompleted    = "completed"
	ReasonAbandoned    = "abandoned"
	ReasonError        = "error"
	ReasonQueueTimeout = "queue_timeout"

	saveTimeout = 10 * time.Second
)

type MatchRecorder interface {
	SaveMatch(ctx context.Context, record domain.MatchRecord) error
}

// NewRecord snapshots a match for the history store.
func NewRecord(match *domain.Match, roster []domain.PlayerInfo, reason string) domain.MatchRecord {
	finished := match.FinishedAt()
	if finished.IsZero() {
		finished = time.Now()
	}
	return domain.MatchRecord{
		ID:         match.ID,
		Type:       match.Type,
		Players:    roster,
		Results:    match.Results(),
		Reason:     reason,
		CreatedAt:  match.CreatedAt,
		StartedAt:  match.StartedAt(),
		FinishedAt: finished,
	}
}

// SaveAsync stores the record in the background so retiring a match never
// waits on the database.
func SaveAsync(recorder MatchRecorder, record domain.MatchRecord) {
	if recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if err := recorder.SaveMatch(ctx, record); err != nil {
			log.Errorf("[GAME] Error saving match %s: %v", record.ID, err)
			return
		}
		log.Infof("[GAME] Match %s saved (%s)", record.ID, record.Reason)
	}()
}
