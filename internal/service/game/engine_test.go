package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

type script struct {
	mu    sync.Mutex
	moves []domain.Move
	delay time.Duration
	seen  []domain.PlayerState
}

func (s *script) Choose(state domain.PlayerState) domain.Move {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, state)
	if len(s.moves) == 0 {
		return domain.KeepGoing
	}
	m := s.moves[0]
	s.moves = s.moves[1:]
	return m
}

type emitted struct {
	status domain.Status
	data   any
}

type sink struct {
	mu     sync.Mutex
	events []emitted
}

func (s *sink) emit(status domain.Status, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, emitted{status, data})
}

func (s *sink) count(status domain.Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.status == status {
			n++
		}
	}
	return n
}

func (s *sink) last() emitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

var fast = Settings{ChoiceTimeout: 100 * time.Millisecond, SetupTimeout: 100 * time.Millisecond}

func newMatch(t *testing.T, rows, cols, rounds int, players ...domain.Player) *domain.Match {
	t.Helper()
	m := domain.NewMatch("m1", domain.GamePublic, rows, cols, rounds, len(players))
	for _, p := range players {
		require.NoError(t, m.AddPlayer(p))
	}
	return m
}

func bot(id string, s *script) *domain.Automated {
	return domain.NewAutomated(id, id, "#fff", s)
}

func TestRunRound_HeadOnEquality(t *testing.T) {
	m := newMatch(t, 5, 5, 1, bot("a", &script{}), bot("b", &script{}))
	out := &sink{}
	e := NewEngine(m, fast, out.emit)

	result, err := e.RunRound(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeEquality, result.Status)
	assert.Equal(t, [][]string{{"a", "b"}}, result.Equalities)
	assert.Empty(t, result.Winners)
	assert.Equal(t, StateEqualityResolved, e.State())
	// two placements and one committed tick
	assert.Equal(t, 4, out.count(domain.StatusPositionsUpdated))
}

func TestRunRound_WallEliminates(t *testing.T) {
	climber := &script{moves: []domain.Move{domain.TurnLeft, domain.TurnLeft, domain.TurnLeft}}
	m := newMatch(t, 5, 5, 1, bot("a", climber), bot("b", &script{}))
	e := NewEngine(m, fast, nil)

	result, err := e.RunRound(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeRoundEnd, result.Status)
	assert.Equal(t, []string{"b"}, result.Winners)
	assert.Empty(t, result.Equalities)
}

func TestRunRound_EveryoneCrashes(t *testing.T) {
	left := &script{moves: []domain.Move{domain.TurnLeft}}
	right := &script{moves: []domain.Move{domain.TurnRight}}
	m := newMatch(t, 1, 3, 1, bot("a", left), bot("b", right))
	e := NewEngine(m, fast, nil)

	result, err := e.RunRound(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeRoundEnd, result.Status)
	assert.NotNil(t, result.Winners)
	assert.Empty(t, result.Winners)
}

func TestRunRound_SilentPlayersKeepGoing(t *testing.T) {
	m := newMatch(t, 5, 5, 1, domain.NewRemote("a", "A", "#f00"), domain.NewRemote("b", "B", "#0f0"))
	e := NewEngine(m, Settings{ChoiceTimeout: 20 * time.Millisecond, SetupTimeout: 20 * time.Millisecond}, nil)

	result, err := e.RunRound(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeEquality, result.Status)
	assert.Equal(t, [][]string{{"a", "b"}}, result.Equalities)
}

// committed returns the tick updates, leaving out spawn placements whose
// order follows setup acknowledgements.
func (s *sink) committed() []PositionUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updates []PositionUpdate
	for _, e := range s.events {
		if u, ok := e.data.(PositionUpdate); ok && u.Previous != nil {
			updates = append(updates, u)
		}
	}
	return updates
}

func TestRunRound_ArrivalOrderDoesNotMatter(t *testing.T) {
	play := func(delayA, delayB time.Duration) (domain.RoundResult, []PositionUpdate) {
		// both bikes climb, turn towards each other and crash into the trails
		a := &script{delay: delayA, moves: []domain.Move{domain.TurnLeft, domain.TurnRight}}
		b := &script{delay: delayB, moves: []domain.Move{domain.TurnRight, domain.TurnLeft}}
		m := newMatch(t, 5, 5, 1, bot("a", a), bot("b", b))
		out := &sink{}

		result, err := NewEngine(m, fast, out.emit).RunRound(context.Background())
		require.NoError(t, err)
		return result, out.committed()
	}

	first, firstMoves := play(30*time.Millisecond, 0)
	second, secondMoves := play(0, 30*time.Millisecond)

	assert.Equal(t, first, second)
	assert.Equal(t, firstMoves, secondMoves)

	assert.Equal(t, domain.OutcomeRoundEnd, first.Status)
	assert.Empty(t, first.Winners)
	require.Len(t, firstMoves, 4)
	assert.Equal(t, domain.Position{Row: 2, Col: 1}, firstMoves[0].Next)
	assert.Equal(t, domain.Position{Row: 2, Col: 4}, firstMoves[1].Next)
	assert.Equal(t, domain.Position{Row: 2, Col: 2}, firstMoves[2].Next)
	assert.Equal(t, domain.Position{Row: 2, Col: 3}, firstMoves[3].Next)
}

func TestRunRound_PlayerStateSnapshot(t *testing.T) {
	seen := &script{}
	m := newMatch(t, 5, 5, 1, bot("a", seen), bot("b", &script{}))
	e := NewEngine(m, fast, nil)

	_, err := e.RunRound(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, seen.seen)
	first := seen.seen[0]
	assert.Equal(t, domain.Position{Row: 3, Col: 1}, first.Position)
	assert.Equal(t, domain.Right, first.Direction)
	assert.Equal(t, map[string]domain.Position{"b": {Row: 3, Col: 5}}, first.Opponents)
	assert.Equal(t, [domain.MoveCount]bool{true, true, true}, first.Open)
}

func TestRun_PlaysEveryRoundThenEnds(t *testing.T) {
	m := newMatch(t, 5, 5, 2, bot("a", &script{}), bot("b", &script{}))
	out := &sink{}
	e := NewEngine(m, fast, out.emit)

	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 2, out.count(domain.StatusRoundEnd))
	assert.Equal(t, domain.StatusGameEnd, out.last().status)
	assert.Equal(t, domain.StatusEnded, m.Status())
	assert.Equal(t, StateMatchEnded, e.State())

	results := m.Results()
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Round)
	assert.Equal(t, 2, results[1].Round)
}

func TestStop_AbandonsPendingWaits(t *testing.T) {
	m := newMatch(t, 5, 5, 3, domain.NewRemote("a", "A", "#f00"), domain.NewRemote("b", "B", "#0f0"))
	e := NewEngine(m, Settings{ChoiceTimeout: time.Hour, SetupTimeout: time.Hour}, nil)

	errs := make(chan error, 1)
	e.Start(context.Background(), func(err error) { errs <- err })
	e.Stop()

	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.Empty(t, m.Results())
}

func TestRemovePlayer_EndsTwoPlayerMatch(t *testing.T) {
	a := domain.NewRemote("a", "A", "#f00")
	m := newMatch(t, 5, 5, 1, a, domain.NewRemote("b", "B", "#0f0"))
	e := NewEngine(m, fast, nil)

	assert.True(t, e.RemovePlayer("a"))
	_, err := a.AwaitMove(context.Background(), domain.PlayerState{})
	assert.ErrorIs(t, err, domain.ErrPlayerLeft)
}

func TestGroupEqualities(t *testing.T) {
	p := domain.Position{Row: 2, Col: 2}
	q := domain.Position{Row: 3, Col: 3}
	groups := groupEqualities(
		[]string{"a", "b", "c", "d", "e"},
		map[string]domain.Position{"a": p, "b": q, "c": p, "d": q},
	)
	assert.Equal(t, [][]string{{"a", "c"}, {"b", "d"}}, groups)
}
