package cleanup

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Expirer retires pending matches older than maxAge and reports how many.
type Expirer interface {
	ExpirePending(maxAge time.Duration) int
}

type Worker struct {
	Registry Expirer
	Interval time.Duration
	MaxAge   time.Duration
}

func NewWorker(registry Expirer, interval, maxAge time.Duration) *Worker {
	return &Worker{Registry: registry, Interval: interval, MaxAge: maxAge}
}

// Start runs the sweep on a ticker until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.runCleanup()
			case <-ctx.Done():
				log.Info("[CLEANUP] Background worker stopped")
				return
			}
		}
	}()
	log.Infof("[CLEANUP] Background worker started (every %s, max queue age %s)", w.Interval, w.MaxAge)
}

func (w *Worker) runCleanup() {
	if expired := w.Registry.ExpirePending(w.MaxAge); expired > 0 {
		log.Infof("[CLEANUP] Expired %d pending matches", expired)
	}
}
