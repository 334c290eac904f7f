package domain

import (
	"fmt"
	"sync"
	"time"
)

// Match holds everything about one contest that outlives a single round.
// The roster and lifecycle fields are shared with the registry and are
// guarded by mu; board and positions live in the engine.
type Match struct {
	ID            string
	Type          GameType
	Rows          int
	Cols          int
	RoundsCount   int
	TargetPlayers int
	CreatedAt     time.Time

	mu         sync.Mutex
	players    map[string]Player
	order      []string
	status     MatchStatus
	results    []RoundResult
	startedAt  time.Time
	finishedAt time.Time
}

func NewMatch(id string, gameType GameType, rows, cols, roundsCount, targetPlayers int) *Match {
	return &Match{
		ID:            id,
		Type:          gameType,
		Rows:          rows,
		Cols:          cols,
		RoundsCount:   roundsCount,
		TargetPlayers: targetPlayers,
		CreatedAt:     time.Now(),
		players:       make(map[string]Player),
		status:        StatusAwaitingPlayers,
	}
}

func (m *Match) AddPlayer(p Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.players[p.ID()]; exists {
		return fmt.Errorf("player %s already in match %s: %w", p.ID(), m.ID, ErrInvalidInput)
	}
	if len(m.players) >= m.TargetPlayers {
		return fmt.Errorf("match %s: %w", m.ID, ErrMatchFull)
	}

	m.players[p.ID()] = p
	m.order = append(m.order, p.ID())
	return nil
}

// RemovePlayer drops a player from the roster and reports whether the
// match can no longer go on.
func (m *Match) RemovePlayer(id string) (removed Player, ended bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.players[id]
	if exists {
		delete(m.players, id)
		for i, pid := range m.order {
			if pid == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	return p, m.shouldEndLocked()
}

func (m *Match) shouldEndLocked() bool {
	if len(m.players) == 0 {
		return true
	}
	switch m.Type {
	case GameAI, GameLocal:
		for _, p := range m.players {
			if p.Kind() != KindAutomated {
				return false
			}
		}
		return true
	default:
		return len(m.players) < 2
	}
}

func (m *Match) Player(id string) (Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, exists := m.players[id]
	return p, exists
}

// Players returns the roster in join order.
func (m *Match) Players() []Player {
	m.mu.Lock()
	defer m.mu.Unlock()

	players := make([]Player, 0, len(m.order))
	for _, id := range m.order {
		players = append(players, m.players[id])
	}
	return players
}

func (m *Match) Roster() []PlayerInfo {
	players := m.Players()
	roster := make([]PlayerInfo, 0, len(players))
	for _, p := range players {
		roster = append(roster, InfoOf(p))
	}
	return roster
}

func (m *Match) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}

// IsReady tells whether the match can start. AI and LOCAL matches have a
// single real participant and never wait for anybody.
func (m *Match) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players) >= m.TargetPlayers || m.Type == GameAI || m.Type == GameLocal
}

func (m *Match) Status() MatchStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Match) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusActive
	m.startedAt = time.Now()
}

func (m *Match) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusEnded {
		return
	}
	m.status = StatusEnded
	m.finishedAt = time.Now()
}

func (m *Match) StartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startedAt
}

func (m *Match) FinishedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finishedAt
}

func (m *Match) RecordRound(r RoundResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
}

// Round is the number of rounds already played.
func (m *Match) Round() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

func (m *Match) Results() []RoundResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]RoundResult, len(m.results))
	copy(results, m.results)
	return results
}
