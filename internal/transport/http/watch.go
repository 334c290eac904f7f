package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

type MatchLister interface {
	ActiveMatches() []domain.MatchSummary
}

// ClusterLister reads matches published by every instance.
type ClusterLister interface {
	List(ctx context.Context) ([]domain.MatchSummary, error)
}

type WatchHandler struct {
	Local   MatchLister
	Cluster ClusterLister // optional
}

func NewWatchHandler(local MatchLister, cluster ClusterLister) *WatchHandler {
	return &WatchHandler{Local: local, Cluster: cluster}
}

// GetLiveMatches lists running matches of this instance, or of every
// instance with ?scope=cluster when the live index is available.
func (h *WatchHandler) GetLiveMatches(c *gin.Context) {
	if c.Query("scope") == "cluster" {
		if h.Cluster == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live index disabled"})
			return
		}
		matches, err := h.Cluster.List(c.Request.Context())
		if err != nil {
			log.Errorf("[WATCH] Live index lookup failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "live index unavailable"})
			return
		}
		c.JSON(http.StatusOK, matches)
		return
	}

	c.JSON(http.StatusOK, h.Local.ActiveMatches())
}
