package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type HistoryStore interface {
	GetMatchByID(ctx context.Context, matchID string) (*domain.MatchRecord, error)
	GetPlayerHistory(ctx context.Context, playerID string, limit int) ([]domain.MatchRecord, error)
}

type HistoryHandler struct {
	Store HistoryStore
}

func NewHistoryHandler(store HistoryStore) *HistoryHandler {
	return &HistoryHandler{Store: store}
}

type historyItem struct {
	ID         string               `json:"id"`
	Type       domain.GameType      `json:"type"`
	Reason     string               `json:"endReason"`
	Players    []domain.PlayerInfo  `json:"players"`
	Rounds     []domain.RoundResult `json:"rounds"`
	Wins       map[string]int       `json:"wins"`
	DurationMs int64                `json:"durationMs"`
	CreatedAt  string               `json:"createdAt"`
}

func toHistoryItem(r domain.MatchRecord) historyItem {
	return historyItem{
		ID:         r.ID,
		Type:       r.Type,
		Reason:     r.Reason,
		Players:    r.Players,
		Rounds:     r.Results,
		Wins:       r.Wins(),
		DurationMs: r.Duration().Milliseconds(),
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GetPlayerHistory handles GET /api/players/:id/history?limit=N
func (h *HistoryHandler) GetPlayerHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.Store.GetPlayerHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		log.Errorf("[HISTORY] Failed to fetch history for %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}

	items := make([]historyItem, 0, len(records))
	for _, r := range records {
		items = append(items, toHistoryItem(r))
	}
	c.JSON(http.StatusOK, items)
}

// GetMatchDetails handles GET /api/history/:id
func (h *HistoryHandler) GetMatchDetails(c *gin.Context) {
	record, err := h.Store.GetMatchByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Errorf("[HISTORY] Failed to fetch match %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch match"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return
	}
	c.JSON(http.StatusOK, toHistoryItem(*record))
}
