package domain

import "time"

// websocket event names
const (
	EventJoinGame      = "joinGame"
	EventNextMove      = "nextMove"
	EventPlayerReady   = "playerReady"
	EventDisconnecting = "disconnecting"

	EventRefreshStatus = "refreshStatus"
	EventError         = "error"
	EventUserLeft      = "userLeft"
	EventQueueTimeout  = "queueTimeout"
)

// wire error types
const (
	ErrTypeInvalidInput       = "INVALID_INPUT"
	ErrTypeGameNotFound       = "GAME_NOT_FOUND"
	ErrTypePlayerNotFound     = "PLAYER_NOT_FOUND"
	ErrTypeAlreadyInGame      = "ALREADY_IN_GAME"
	ErrTypeGameCreationFailed = "GAME_CREATION_FAILED"
	ErrTypeGameError          = "GAME_ERROR"
	ErrTypeInvalidPosition    = "INVALID_POSITION"
)

type Envelope[T any] struct {
	Event string `json:"event"`
	Data  T      `json:"data"`
}

type JoinPlayer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type JoinRequest struct {
	Players          []JoinPlayer `json:"players"`
	GameType         GameType     `json:"gameType"`
	ExpectedPlayerID string       `json:"expectedPlayerId,omitempty"`
}

type MoveRequest struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	Move     string `json:"move"`
}

type ReadyRequest struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

type RefreshStatus struct {
	Status Status `json:"status"`
	Data   any    `json:"data"`
}

type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type CreatedPayload struct {
	ID      string       `json:"id"`
	Type    GameType     `json:"type"`
	Players []PlayerInfo `json:"players"`
}

// MatchSummary is what the live index and the HTTP listing expose.
type MatchSummary struct {
	ID        string       `json:"id"`
	Type      GameType     `json:"type"`
	Players   []PlayerInfo `json:"players"`
	Round     int          `json:"round"`
	Rounds    int          `json:"rounds"`
	StartedAt time.Time    `json:"startedAt"`
}

func (m *Match) Summary() MatchSummary {
	return MatchSummary{
		ID:        m.ID,
		Type:      m.Type,
		Players:   m.Roster(),
		Round:     m.Round(),
		Rounds:    m.RoundsCount,
		StartedAt: m.StartedAt(),
	}
}
