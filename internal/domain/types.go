package domain

// display names handed to automated players, keyed by difficulty
var BotNames = map[string]string{
	"easy":   "Alice",
	"medium": "Bob",
}

func GetBotName(difficulty string) string {
	if name, ok := BotNames[difficulty]; ok {
		return name
	}
	return "BOT"
}

// palette used to colour players by roster order
var PlayerColors = []string{"#ff3b30", "#007aff", "#34c759", "#ffcc00", "#af52de", "#ff9500"}

func ColorFor(index int) string {
	return PlayerColors[index%len(PlayerColors)]
}

type GameType string

const (
	GameLocal    GameType = "LOCAL"
	GameAI       GameType = "AI"
	GameFriendly GameType = "FRIENDLY"
	GamePublic   GameType = "PUBLIC"
	GameRanked   GameType = "RANKED"
)

func (t GameType) Valid() bool {
	switch t {
	case GameLocal, GameAI, GameFriendly, GamePublic, GameRanked:
		return true
	}
	return false
}

// Queued reports whether matches of this type wait in the open queue.
func (t GameType) Queued() bool {
	return t == GamePublic || t == GameRanked
}

// to represent the match lifecycle
type MatchStatus string

const (
	StatusAwaitingPlayers MatchStatus = "AWAITING_PLAYERS"
	StatusActive          MatchStatus = "ACTIVE"
	StatusEnded           MatchStatus = "ENDED"
)

// refreshStatus values sent to clients
type Status string

const (
	StatusCreated          Status = "CREATED"
	StatusPositionsUpdated Status = "POSITIONS_UPDATED"
	StatusRoundEnd         Status = "ROUND_END"
	StatusGameEnd          Status = "GAME_END"
)

type RoundOutcome string

const (
	OutcomeEquality RoundOutcome = "equality"
	OutcomeRoundEnd RoundOutcome = "round_end"
)

// RoundResult is what a finished round reports. Winners is set for
// round_end, Equalities for equality.
type RoundResult struct {
	Round      int          `json:"round"`
	Status     RoundOutcome `json:"status"`
	Winners    []string     `json:"winners"`
	Equalities [][]string   `json:"equalities,omitempty"`
}

// basic errors that can occur
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrInvalidPosition Error = "invalid position"
	ErrInvalidInput    Error = "invalid input"
	ErrMatchNotFound   Error = "game not found"
	ErrPlayerNotFound  Error = "player not found"
	ErrAlreadyInGame   Error = "this user is already in a game"
	ErrMatchFull       Error = "match is full"
	ErrPlayerLeft      Error = "player left the match"
)
