package matchmaking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/hextron/backend/internal/domain"
	"github.com/iamasit07/hextron/backend/internal/service/game"
)

type sent struct {
	event   string
	payload any
}

type outbox struct {
	mu   sync.Mutex
	byID map[string][]sent
}

func newOutbox() *outbox {
	return &outbox{byID: make(map[string][]sent)}
}

func (o *outbox) Send(connID, event string, payload any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byID[connID] = append(o.byID[connID], sent{event, payload})
	return nil
}

func (o *outbox) refreshes(connID string, status domain.Status) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, s := range o.byID[connID] {
		if rs, ok := s.payload.(domain.RefreshStatus); ok && rs.Status == status {
			n++
		}
	}
	return n
}

func (o *outbox) events(connID, event string) []any {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []any
	for _, s := range o.byID[connID] {
		if s.event == event {
			out = append(out, s.payload)
		}
	}
	return out
}

type recorder struct {
	records chan domain.MatchRecord
}

func (r *recorder) SaveMatch(_ context.Context, rec domain.MatchRecord) error {
	r.records <- rec
	return nil
}

func settings(choice, setup time.Duration) Settings {
	return Settings{
		Rows:          5,
		Cols:          5,
		Rounds:        1,
		Players:       2,
		BotDifficulty: "medium",
		Engine:        game.Settings{ChoiceTimeout: choice, SetupTimeout: setup},
	}
}

func newRegistry(t *testing.T, s Settings, opts ...Option) (*Registry, *outbox) {
	t.Helper()
	out := newOutbox()
	r, err := NewRegistry(s, out, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Shutdown)
	return r, out
}

func join(players ...string) domain.JoinRequest {
	req := domain.JoinRequest{GameType: domain.GamePublic}
	for _, id := range players {
		req.Players = append(req.Players, domain.JoinPlayer{ID: id, Name: "name-" + id})
	}
	return req
}

func TestJoin_PublicMatchStartsWhenFull(t *testing.T) {
	rec := &recorder{records: make(chan domain.MatchRecord, 1)}
	r, out := newRegistry(t, settings(20*time.Millisecond, 20*time.Millisecond), WithRecorder(rec))

	m1, err := r.Join("c1", join("u1"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingPlayers, m1.Status())

	m2, err := r.Join("c2", join("u2"))
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	for _, c := range []string{"c1", "c2"} {
		assert.Equal(t, 1, out.refreshes(c, domain.StatusCreated))
	}

	// silent players keep going into each other and the single round ends
	require.Eventually(t, func() bool { return r.IsRetired(m1.ID) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, out.refreshes("c1", domain.StatusGameEnd))
	assert.Equal(t, 1, out.refreshes("c2", domain.StatusRoundEnd))

	_, busy := r.MatchOf("c1")
	assert.False(t, busy)

	select {
	case record := <-rec.records:
		assert.Equal(t, m1.ID, record.ID)
		assert.Equal(t, game.ReasonCompleted, record.Reason)
		assert.Len(t, record.Results, 1)
	case <-time.After(time.Second):
		t.Fatal("match was not recorded")
	}
}

func TestJoin_AlreadyInGame(t *testing.T) {
	r, _ := newRegistry(t, settings(time.Hour, time.Hour))

	_, err := r.Join("c1", join("u1"))
	require.NoError(t, err)

	_, err = r.Join("c1", join("u3"))
	assert.ErrorIs(t, err, domain.ErrAlreadyInGame)
}

func TestJoin_InvalidRequestsLeaveNoTrace(t *testing.T) {
	r, _ := newRegistry(t, settings(time.Hour, time.Hour))

	cases := []domain.JoinRequest{
		{GameType: "CHESS", Players: []domain.JoinPlayer{{ID: "u1"}}},
		{GameType: domain.GamePublic},
		{GameType: domain.GamePublic, Players: []domain.JoinPlayer{{ID: ""}}},
		{GameType: domain.GamePublic, Players: []domain.JoinPlayer{{ID: "a"}, {ID: "a"}}},
		{GameType: domain.GameFriendly, Players: []domain.JoinPlayer{{ID: "u1"}}},
		{GameType: domain.GamePublic, Players: []domain.JoinPlayer{{ID: "a"}, {ID: "b"}, {ID: "c"}}},
		// 5 rows seat at most 6 players
		{GameType: domain.GameLocal, Players: []domain.JoinPlayer{
			{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}, {ID: "f"}, {ID: "g"},
		}},
		{GameType: domain.GameAI, Players: []domain.JoinPlayer{{ID: "bot-1"}}},
	}
	for _, req := range cases {
		_, err := r.Join("c1", req)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}

	_, busy := r.MatchOf("c1")
	assert.False(t, busy)
	assert.Empty(t, r.ActiveMatches())
}

func TestJoin_QueuesByType(t *testing.T) {
	r, _ := newRegistry(t, settings(time.Hour, time.Hour))

	pub, err := r.Join("c1", join("u1"))
	require.NoError(t, err)

	ranked := join("u2")
	ranked.GameType = domain.GameRanked
	rk, err := r.Join("c2", ranked)
	require.NoError(t, err)

	assert.NotEqual(t, pub.ID, rk.ID)
	assert.Equal(t, 1, pub.PlayerCount())
	assert.Equal(t, 1, rk.PlayerCount())
}

func TestJoin_FriendlyPairsByInvitee(t *testing.T) {
	r, out := newRegistry(t, settings(time.Hour, time.Hour))

	host := domain.JoinRequest{
		GameType:         domain.GameFriendly,
		Players:          []domain.JoinPlayer{{ID: "u1", Name: "Ana"}},
		ExpectedPlayerID: "u2",
	}
	m1, err := r.Join("c1", host)
	require.NoError(t, err)

	// a stranger does not land in the invitation
	stranger := join("u9")
	m3, err := r.Join("c3", stranger)
	require.NoError(t, err)
	assert.NotEqual(t, m1.ID, m3.ID)

	guest := domain.JoinRequest{
		GameType:         domain.GameFriendly,
		Players:          []domain.JoinPlayer{{ID: "u2", Name: "Ben"}},
		ExpectedPlayerID: "u1",
	}
	m2, err := r.Join("c2", guest)
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, domain.StatusActive, m1.Status())
	assert.Equal(t, 1, out.refreshes("c2", domain.StatusCreated))
}

func TestJoin_FriendlyInviteeNeedsNoExpectedID(t *testing.T) {
	r, out := newRegistry(t, settings(time.Hour, time.Hour))

	host := domain.JoinRequest{
		GameType:         domain.GameFriendly,
		Players:          []domain.JoinPlayer{{ID: "u1"}},
		ExpectedPlayerID: "u2",
	}
	m1, err := r.Join("c1", host)
	require.NoError(t, err)

	guest := domain.JoinRequest{GameType: domain.GameFriendly, Players: []domain.JoinPlayer{{ID: "u2"}}}
	m2, err := r.Join("c2", guest)
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, domain.StatusActive, m1.Status())
	assert.Equal(t, 1, out.refreshes("c1", domain.StatusCreated))
}

func TestJoin_LocalMatchFillsTheBoard(t *testing.T) {
	r, _ := newRegistry(t, settings(time.Hour, time.Hour))

	req := join("a", "b", "c", "d", "e", "f")
	req.GameType = domain.GameLocal
	m, err := r.Join("c1", req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, m.Status())
	assert.Equal(t, 6, m.PlayerCount())
}

func TestJoin_AIMatchFillsWithBots(t *testing.T) {
	r, out := newRegistry(t, settings(time.Hour, time.Hour))

	req := join("u1")
	req.GameType = domain.GameAI
	m, err := r.Join("c1", req)
	require.NoError(t, err)

	roster := m.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, domain.KindRemote, roster[0].Kind)
	assert.Equal(t, domain.KindAutomated, roster[1].Kind)
	assert.Equal(t, "Bob", roster[1].Name)
	assert.Equal(t, domain.StatusActive, m.Status())

	created := out.events("c1", domain.EventRefreshStatus)
	require.NotEmpty(t, created)
	payload := created[0].(domain.RefreshStatus).Data.(domain.CreatedPayload)
	assert.Equal(t, m.ID, payload.ID)

	active := r.ActiveMatches()
	require.Len(t, active, 1)
	assert.Equal(t, m.ID, active[0].ID)
}

func TestJoin_LocalMatchStartsRightAway(t *testing.T) {
	r, _ := newRegistry(t, settings(time.Hour, time.Hour))

	req := join("p1", "p2")
	req.GameType = domain.GameLocal
	m, err := r.Join("c1", req)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, m.Status())
	for _, info := range m.Roster() {
		assert.Equal(t, domain.KindLocal, info.Kind)
	}
}

func TestRouteMove_Validation(t *testing.T) {
	r, _ := newRegistry(t, settings(time.Hour, time.Hour))
	m, err := r.Join("c1", join("u1"))
	require.NoError(t, err)

	err = r.RouteMove("c1", domain.MoveRequest{GameID: m.ID, PlayerID: "u1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = r.RouteMove("c1", domain.MoveRequest{GameID: "nope", PlayerID: "u1", Move: "KEEP_GOING"})
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	err = r.RouteMove("c1", domain.MoveRequest{GameID: m.ID, PlayerID: "ghost", Move: "KEEP_GOING"})
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	// a connection may only steer its own players
	err = r.RouteMove("c2", domain.MoveRequest{GameID: m.ID, PlayerID: "u1", Move: "KEEP_GOING"})
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	err = r.RouteMove("c1", domain.MoveRequest{GameID: m.ID, PlayerID: "u1", Move: "JUMP"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.NoError(t, r.RouteMove("c1", domain.MoveRequest{GameID: m.ID, PlayerID: "u1", Move: "KEEP_GOING"}))
}

func TestRouteMove_DrivesMatch(t *testing.T) {
	r, out := newRegistry(t, settings(time.Hour, time.Hour))

	m, err := r.Join("c1", join("u1"))
	require.NoError(t, err)
	_, err = r.Join("c2", join("u2"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_ = r.RouteSetup("c1", domain.ReadyRequest{GameID: m.ID, PlayerID: "u1"})
		_ = r.RouteSetup("c2", domain.ReadyRequest{GameID: m.ID, PlayerID: "u2"})
		return out.refreshes("c1", domain.StatusPositionsUpdated) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_ = r.RouteMove("c1", domain.MoveRequest{GameID: m.ID, PlayerID: "u1", Move: "KEEP_GOING"})
		_ = r.RouteMove("c2", domain.MoveRequest{GameID: m.ID, PlayerID: "u2", Move: "KEEP_GOING"})
		return out.refreshes("c1", domain.StatusGameEnd) == 1
	}, 2*time.Second, 5*time.Millisecond)

	results := m.Results()
	require.Len(t, results, 1)
	assert.Equal(t, domain.OutcomeEquality, results[0].Status)
}

func TestDisconnect_EndsTwoPlayerMatch(t *testing.T) {
	rec := &recorder{records: make(chan domain.MatchRecord, 1)}
	r, out := newRegistry(t, settings(time.Hour, time.Hour), WithRecorder(rec))

	m, err := r.Join("c1", join("u1"))
	require.NoError(t, err)
	_, err = r.Join("c2", join("u2"))
	require.NoError(t, err)

	r.Disconnect("c1")

	assert.True(t, r.IsRetired(m.ID))
	assert.Equal(t, []any{"u1"}, out.events("c2", domain.EventUserLeft))
	_, busy := r.MatchOf("c2")
	assert.False(t, busy)

	select {
	case record := <-rec.records:
		assert.Equal(t, game.ReasonAbandoned, record.Reason)
		assert.Len(t, record.Players, 2)
	case <-time.After(time.Second):
		t.Fatal("match was not recorded")
	}

	// the survivor can queue again
	_, err = r.Join("c2", join("u2"))
	assert.NoError(t, err)
}

func TestDisconnect_PendingMatch(t *testing.T) {
	r, _ := newRegistry(t, settings(time.Hour, time.Hour))

	m, err := r.Join("c1", join("u1"))
	require.NoError(t, err)

	r.Disconnect("c1")
	r.Disconnect("c1")

	assert.True(t, r.IsRetired(m.ID))
	_, found := r.Match(m.ID)
	assert.False(t, found)

	// the queue no longer offers the dead match
	m2, err := r.Join("c2", join("u2"))
	require.NoError(t, err)
	assert.NotEqual(t, m.ID, m2.ID)
}

func TestExpirePending(t *testing.T) {
	r, out := newRegistry(t, settings(time.Hour, time.Hour))

	m, err := r.Join("c1", join("u1"))
	require.NoError(t, err)

	assert.Equal(t, 0, r.ExpirePending(time.Hour))

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, r.ExpirePending(time.Millisecond))
	assert.True(t, r.IsRetired(m.ID))
	assert.Len(t, out.events("c1", domain.EventQueueTimeout), 1)
}

func TestExpirePending_SparesStartedMatches(t *testing.T) {
	r, out := newRegistry(t, settings(time.Hour, time.Hour))

	m, err := r.Join("c1", join("u1"))
	require.NoError(t, err)

	r.mu.RLock()
	s := r.sessions[m.ID]
	r.mu.RUnlock()

	// the match fills up after the sweeper picked it as stale
	_, err = r.Join("c2", join("u2"))
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, m.Status())

	assert.False(t, r.retirePending(s, game.ReasonQueueTimeout))
	assert.False(t, r.IsRetired(m.ID))
	assert.Equal(t, 0, r.ExpirePending(0))
	assert.Empty(t, out.events("c1", domain.EventQueueTimeout))
}

type liveIndex struct {
	mu        sync.Mutex
	published map[string]int
	removed   []string
}

func (l *liveIndex) Publish(_ context.Context, summary domain.MatchSummary) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.published[summary.ID]++
	return nil
}

func (l *liveIndex) Remove(_ context.Context, matchID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removed = append(l.removed, matchID)
	return nil
}

func (l *liveIndex) count(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.published[id]
}

func TestLiveIndex_RefreshedWhileRoundRuns(t *testing.T) {
	live := &liveIndex{published: make(map[string]int)}
	r, _ := newRegistry(t, settings(time.Hour, time.Hour), WithLiveIndex(live, 10*time.Millisecond))

	req := join("u1")
	req.GameType = domain.GameAI
	m, err := r.Join("c1", req)
	require.NoError(t, err)

	// the round never ends, yet the entry keeps being refreshed
	require.Eventually(t, func() bool { return live.count(m.ID) >= 3 }, 2*time.Second, 5*time.Millisecond)

	r.Disconnect("c1")
	require.Eventually(t, func() bool {
		live.mu.Lock()
		defer live.mu.Unlock()
		return len(live.removed) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRetiredIDsAreNeverReused(t *testing.T) {
	ids := []string{"m1", "m1", "m2"}
	next := func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	r, _ := newRegistry(t, settings(time.Hour, time.Hour), WithIDGenerator(next))

	first, err := r.CreateMatch(domain.GamePublic, 2)
	require.NoError(t, err)
	assert.Equal(t, "m1", first.ID)

	time.Sleep(5 * time.Millisecond)
	require.Equal(t, 1, r.ExpirePending(time.Millisecond))

	second, err := r.CreateMatch(domain.GamePublic, 2)
	require.NoError(t, err)
	assert.Equal(t, "m2", second.ID)
}

func TestCreateMatch_RejectsOversizedRoster(t *testing.T) {
	r, _ := newRegistry(t, settings(time.Hour, time.Hour))

	_, err := r.CreateMatch(domain.GamePublic, domain.MaxPlayers(5)+1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestShutdown_StopsRunningMatches(t *testing.T) {
	out := newOutbox()
	r, err := NewRegistry(settings(time.Hour, time.Hour), out)
	require.NoError(t, err)

	req := join("u1")
	req.GameType = domain.GameAI
	m, err := r.Join("c1", req)
	require.NoError(t, err)

	r.Shutdown()
	assert.True(t, r.IsRetired(m.ID))
	assert.Equal(t, domain.StatusEnded, m.Status())
}
