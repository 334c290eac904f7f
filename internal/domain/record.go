package domain

import "time"

// MatchRecord is the persisted summary of a retired match.
type MatchRecord struct {
	ID         string
	Type       GameType
	Players    []PlayerInfo
	Results    []RoundResult
	Reason     string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is zero for matches that never started.
func (r MatchRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Wins counts the rounds each player survived as a sole or shared winner.
func (r MatchRecord) Wins() map[string]int {
	wins := make(map[string]int, len(r.Players))
	for _, p := range r.Players {
		wins[p.ID] = 0
	}
	for _, res := range r.Results {
		for _, id := range res.Winners {
			wins[id]++
		}
	}
	return wins
}
