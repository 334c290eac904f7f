package matchmaking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamasit07/hextron/backend/internal/domain"
	"github.com/iamasit07/hextron/backend/internal/service/bot"
	"github.com/iamasit07/hextron/backend/internal/service/game"
	"github.com/iamasit07/hextron/backend/pkg/uid"
)

// Sender delivers one event to one connection.
type Sender interface {
	Send(connID, event string, payload any) error
}

// LiveIndex publishes running matches outside this process.
type LiveIndex interface {
	Publish(ctx context.Context, summary domain.MatchSummary) error
	Remove(ctx context.Context, matchID string) error
}

type Settings struct {
	Rows          int
	Cols          int
	Rounds        int
	Players       int
	BotDifficulty string
	Engine        game.Settings
}

type Option func(*Registry)

func WithRecorder(recorder game.MatchRecorder) Option {
	return func(r *Registry) { r.recorder = recorder }
}

// WithLiveIndex publishes started matches and republishes them every
// refresh while they run. A zero refresh only publishes on round ends.
func WithLiveIndex(index LiveIndex, refresh time.Duration) Option {
	return func(r *Registry) {
		r.live = index
		r.liveRefresh = refresh
	}
}

func WithIDGenerator(next func() string) Option {
	return func(r *Registry) { r.newID = next }
}

// Session is one match together with its engine and the connections that
// speak for its players. Everything but Match is guarded by the registry.
type Session struct {
	Match  *domain.Match
	Engine *game.Engine

	conns     map[string][]string // connID → player ids
	inviteKey string
	roster    []domain.PlayerInfo
}

func (s *Session) connIDs() []string {
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Registry tracks every live match: the open queue, friendly invitations
// and the started matches, plus which connection belongs to which match.
type Registry struct {
	settings    Settings
	sender      Sender
	recorder    game.MatchRecorder
	live        LiveIndex
	liveRefresh time.Duration // how often running matches are republished
	newID       func() string
	metrics     *metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	sessions  map[string]*Session // matchID → session, pending or started
	pending   []string            // queued match ids, oldest first
	friendly  map[string]string   // invitee id → matchID
	retired   map[string]struct{}
	connMatch map[string]string // connID → matchID
}

func NewRegistry(settings Settings, sender Sender, opts ...Option) (*Registry, error) {
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		settings:  settings,
		sender:    sender,
		newID:     uid.GenerateMatchID,
		metrics:   m,
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[string]*Session),
		friendly:  make(map[string]string),
		retired:   make(map[string]struct{}),
		connMatch: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Join admits the players carried by one connection into a match, creating
// or queueing one as needed, and starts it once it is full.
func (r *Registry) Join(connID string, req domain.JoinRequest) (*domain.Match, error) {
	if err := r.validateJoin(req); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, busy := r.connMatch[connID]; busy {
		r.mu.Unlock()
		return nil, domain.ErrAlreadyInGame
	}

	s, err := r.admitOrQueueLocked(connID, req)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.connMatch[connID] = s.Match.ID
	r.mu.Unlock()

	log.Infof("[MATCHMAKING] Connection %s joined %s match %s (%d/%d)",
		connID, s.Match.Type, s.Match.ID, s.Match.PlayerCount(), s.Match.TargetPlayers)

	r.startIfReady(s)
	return s.Match, nil
}

func (r *Registry) validateJoin(req domain.JoinRequest) error {
	if !req.GameType.Valid() {
		return fmt.Errorf("unknown game type %q: %w", req.GameType, domain.ErrInvalidInput)
	}
	if len(req.Players) == 0 {
		return fmt.Errorf("no players: %w", domain.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(req.Players))
	for _, p := range req.Players {
		if p.ID == "" || seen[p.ID] {
			return fmt.Errorf("missing or repeated player id: %w", domain.ErrInvalidInput)
		}
		if strings.HasPrefix(p.ID, botPrefix) {
			return fmt.Errorf("player id %q uses the reserved %q prefix: %w", p.ID, botPrefix, domain.ErrInvalidInput)
		}
		seen[p.ID] = true
	}
	if limit := r.rosterLimit(req.GameType); len(req.Players) > limit {
		return fmt.Errorf("%d players do not fit a %d player match: %w",
			len(req.Players), limit, domain.ErrInvalidInput)
	}
	return nil
}

// rosterLimit is the most players one join may bring.
func (r *Registry) rosterLimit(t domain.GameType) int {
	if t == domain.GameLocal {
		return domain.MaxPlayers(r.settings.Rows)
	}
	return r.settings.Players
}

func (r *Registry) targetFor(t domain.GameType, supplied int) int {
	if t == domain.GameLocal {
		return supplied
	}
	return r.settings.Players
}

// admitOrQueueLocked finds the match the request belongs to. Caller holds mu.
func (r *Registry) admitOrQueueLocked(connID string, req domain.JoinRequest) (*Session, error) {
	switch {
	case req.GameType.Queued():
		for _, id := range r.pending {
			s := r.sessions[id]
			if s.Match.Type == req.GameType && s.Match.TargetPlayers-s.Match.PlayerCount() >= len(req.Players) {
				return s, r.addPlayersLocked(s, connID, req)
			}
		}
		s := r.createSessionLocked(req)
		r.pending = append(r.pending, s.Match.ID)
		return s, r.addPlayersLocked(s, connID, req)

	case req.GameType == domain.GameFriendly:
		// the invitee attaches by its own id
		for _, p := range req.Players {
			if id, ok := r.friendly[p.ID]; ok {
				return r.sessions[id], r.addPlayersLocked(r.sessions[id], connID, req)
			}
		}
		if req.ExpectedPlayerID == "" {
			return nil, fmt.Errorf("friendly match without expectedPlayerId: %w", domain.ErrInvalidInput)
		}
		if _, taken := r.friendly[req.ExpectedPlayerID]; taken {
			return nil, fmt.Errorf("player %s already invited: %w", req.ExpectedPlayerID, domain.ErrAlreadyInGame)
		}
		s := r.createSessionLocked(req)
		s.inviteKey = req.ExpectedPlayerID
		r.friendly[req.ExpectedPlayerID] = s.Match.ID
		return s, r.addPlayersLocked(s, connID, req)

	default:
		s := r.createSessionLocked(req)
		if err := r.addPlayersLocked(s, connID, req); err != nil {
			delete(r.sessions, s.Match.ID)
			return nil, err
		}
		if req.GameType == domain.GameAI {
			r.fillWithBotsLocked(s)
		}
		return s, nil
	}
}

// CreateMatch registers an empty match of the given type.
func (r *Registry) CreateMatch(t domain.GameType, targetPlayers int) (*domain.Match, error) {
	if !t.Valid() || targetPlayers < 1 || targetPlayers > domain.MaxPlayers(r.settings.Rows) {
		return nil, domain.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.newSessionLocked(t, targetPlayers)
	return s.Match, nil
}

func (r *Registry) createSessionLocked(req domain.JoinRequest) *Session {
	return r.newSessionLocked(req.GameType, r.targetFor(req.GameType, len(req.Players)))
}

func (r *Registry) newSessionLocked(t domain.GameType, target int) *Session {
	id := r.newID()
	for r.idTakenLocked(id) {
		id = r.newID()
	}

	s := &Session{
		Match: domain.NewMatch(id, t, r.settings.Rows, r.settings.Cols, r.settings.Rounds, target),
		conns: make(map[string][]string),
	}
	r.sessions[id] = s
	r.metrics.created.Add(r.ctx, 1, withType(t))
	return s
}

// retired ids are never handed out again
func (r *Registry) idTakenLocked(id string) bool {
	if _, ok := r.sessions[id]; ok {
		return true
	}
	_, ok := r.retired[id]
	return ok
}

func (r *Registry) addPlayersLocked(s *Session, connID string, req domain.JoinRequest) error {
	added := []string{}
	for _, jp := range req.Players {
		color := domain.ColorFor(s.Match.PlayerCount())
		name := jp.Name
		if name == "" {
			name = jp.ID
		}

		var p domain.Player
		if req.GameType == domain.GameLocal {
			p = domain.NewLocal(jp.ID, name, color)
		} else {
			p = domain.NewRemote(jp.ID, name, color)
		}

		if err := s.Match.AddPlayer(p); err != nil {
			for _, id := range added {
				s.Match.RemovePlayer(id)
			}
			return err
		}
		added = append(added, jp.ID)
	}
	s.conns[connID] = added
	return nil
}

// player ids starting with botPrefix are kept for automated players
const botPrefix = "bot-"

func (r *Registry) fillWithBotsLocked(s *Session) {
	difficulty := r.settings.BotDifficulty
	for i := s.Match.PlayerCount(); i < s.Match.TargetPlayers; i++ {
		id := fmt.Sprintf("%s%d", botPrefix, i)
		p := domain.NewAutomated(id, domain.GetBotName(difficulty), domain.ColorFor(i), bot.New(difficulty))
		if err := s.Match.AddPlayer(p); err != nil {
			log.Warnf("[MATCHMAKING] Could not seat bot %s in %s: %v", id, s.Match.ID, err)
			return
		}
	}
}

// startIfReady starts the engine of a full match and announces it.
func (r *Registry) startIfReady(s *Session) {
	r.mu.Lock()
	if s.Engine != nil || !s.Match.IsReady() {
		r.mu.Unlock()
		return
	}
	if _, live := r.sessions[s.Match.ID]; !live {
		r.mu.Unlock()
		return
	}

	r.unqueueLocked(s)
	s.Match.Start()
	s.roster = s.Match.Roster()
	s.Engine = game.NewEngine(s.Match, r.settings.Engine, r.emitter(s))
	r.mu.Unlock()

	r.metrics.active.Add(r.ctx, 1, withType(s.Match.Type))
	log.Infof("[MATCHMAKING] Match %s started with %d players", s.Match.ID, len(s.roster))

	r.broadcast(s, domain.EventRefreshStatus, domain.RefreshStatus{
		Status: domain.StatusCreated,
		Data:   domain.CreatedPayload{ID: s.Match.ID, Type: s.Match.Type, Players: s.roster},
	})
	r.publish(s.Match)

	s.Engine.Start(r.ctx, func(err error) { r.engineDone(s, err) })
	r.keepPublished(s)
}

func (r *Registry) unqueueLocked(s *Session) {
	for i, id := range r.pending {
		if id == s.Match.ID {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			break
		}
	}
	if s.inviteKey != "" && r.friendly[s.inviteKey] == s.Match.ID {
		delete(r.friendly, s.inviteKey)
	}
}

// RouteMove hands a relayed move to the player waiting for it.
func (r *Registry) RouteMove(connID string, req domain.MoveRequest) error {
	if req.GameID == "" || req.PlayerID == "" || req.Move == "" {
		return fmt.Errorf("nextMove needs gameId, playerId and move: %w", domain.ErrInvalidInput)
	}
	move, err := domain.ParseMove(req.Move)
	if err != nil {
		return err
	}

	p, err := r.resolver(connID, req.GameID, req.PlayerID)
	if err != nil {
		return err
	}
	if !p.ResolveMove(move) {
		log.Debugf("[MATCHMAKING] Late move from %s in %s dropped", req.PlayerID, req.GameID)
	}
	return nil
}

// RouteSetup acknowledges a player's setup wait.
func (r *Registry) RouteSetup(connID string, req domain.ReadyRequest) error {
	if req.GameID == "" || req.PlayerID == "" {
		return fmt.Errorf("playerReady needs gameId and playerId: %w", domain.ErrInvalidInput)
	}
	p, err := r.resolver(connID, req.GameID, req.PlayerID)
	if err != nil {
		return err
	}
	p.ResolveSetup()
	return nil
}

func (r *Registry) resolver(connID, matchID, playerID string) (domain.Resolver, error) {
	r.mu.RLock()
	s, ok := r.sessions[matchID]
	var owned bool
	if ok {
		for _, id := range s.conns[connID] {
			owned = owned || id == playerID
		}
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, domain.ErrMatchNotFound)
	}
	p, found := s.Match.Player(playerID)
	if !found || !owned {
		return nil, fmt.Errorf("player %s in match %s: %w", playerID, matchID, domain.ErrPlayerNotFound)
	}
	res, ok := p.(domain.Resolver)
	if !ok {
		return nil, fmt.Errorf("player %s does not take relayed input: %w", playerID, domain.ErrPlayerNotFound)
	}
	return res, nil
}

// Disconnect removes the players a connection spoke for and ends their
// match when it can no longer go on.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	matchID, ok := r.connMatch[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.connMatch, connID)

	s, ok := r.sessions[matchID]
	if !ok {
		r.mu.Unlock()
		return
	}
	playerIDs := s.conns[connID]
	delete(s.conns, connID)
	noConns := len(s.conns) == 0
	started := s.Engine != nil
	r.mu.Unlock()

	ended := noConns
	for _, id := range playerIDs {
		var over bool
		if started {
			over = s.Engine.RemovePlayer(id)
		} else {
			_, over = s.Match.RemovePlayer(id)
		}
		ended = ended || (started && over)
		r.broadcast(s, domain.EventUserLeft, id)
	}
	if !started && s.Match.PlayerCount() == 0 {
		ended = true
	}

	log.Infof("[MATCHMAKING] Connection %s left match %s (players: %v)", connID, matchID, playerIDs)
	if ended {
		r.retire(s, game.ReasonAbandoned)
	}
}

// ExpirePending retires queued and invited matches older than maxAge and
// tells their connections.
func (r *Registry) ExpirePending(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.RLock()
	var stale []*Session
	for _, s := range r.sessions {
		if s.Engine == nil && s.Match.CreatedAt.Before(cutoff) {
			stale = append(stale, s)
		}
	}
	r.mu.RUnlock()

	expired := 0
	for _, s := range stale {
		// the match may have started since the scan
		if !r.retirePending(s, game.ReasonQueueTimeout) {
			continue
		}
		expired++
		r.broadcast(s, domain.EventQueueTimeout, domain.ErrorPayload{
			Type:    domain.ErrTypeGameCreationFailed,
			Message: "no opponent joined in time",
		})
	}
	return expired
}

// ActiveMatches lists started matches, oldest first.
func (r *Registry) ActiveMatches() []domain.MatchSummary {
	r.mu.RLock()
	var started []*Session
	for _, s := range r.sessions {
		if s.Engine != nil {
			started = append(started, s)
		}
	}
	r.mu.RUnlock()

	summaries := make([]domain.MatchSummary, 0, len(started))
	for _, s := range started {
		summaries = append(summaries, s.Match.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartedAt.Before(summaries[j].StartedAt)
	})
	return summaries
}

func (r *Registry) Match(id string) (*domain.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return s.Match, true
}

func (r *Registry) MatchOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.connMatch[connID]
	return id, ok
}

func (r *Registry) IsRetired(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.retired[id]
	return ok
}

// retire removes a match for good. It is safe to call more than once.
func (r *Registry) retire(s *Session, reason string) {
	r.retireIf(s, reason, false)
}

// retirePending retires s only if its engine has not started yet.
func (r *Registry) retirePending(s *Session, reason string) bool {
	return r.retireIf(s, reason, true)
}

func (r *Registry) retireIf(s *Session, reason string, pendingOnly bool) bool {
	r.mu.Lock()
	if r.sessions[s.Match.ID] != s || (pendingOnly && s.Engine != nil) {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, s.Match.ID)
	r.unqueueLocked(s)
	r.retired[s.Match.ID] = struct{}{}
	for connID := range s.conns {
		if r.connMatch[connID] == s.Match.ID {
			delete(r.connMatch, connID)
		}
	}
	started := s.Engine != nil
	r.mu.Unlock()

	if started {
		s.Engine.Stop()
		r.metrics.active.Add(r.ctx, -1, withType(s.Match.Type))
	}
	s.Match.Finish()
	r.metrics.retired.Add(r.ctx, 1, withType(s.Match.Type), withReason(reason))
	log.Infof("[MATCHMAKING] Match %s retired (%s)", s.Match.ID, reason)

	if started {
		game.SaveAsync(r.recorder, game.NewRecord(s.Match, s.roster, reason))
		r.unpublish(s.Match.ID)
	}
	return true
}

// Shutdown stops every running engine.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	r.cancel()
	for _, s := range sessions {
		if s.Engine != nil {
			<-s.Engine.Done()
		}
	}
	log.Infof("[MATCHMAKING] Registry shut down, %d matches stopped", len(sessions))
}

func (r *Registry) broadcast(s *Session, event string, payload any) {
	r.mu.RLock()
	conns := s.connIDs()
	r.mu.RUnlock()

	for _, connID := range conns {
		if err := r.sender.Send(connID, event, payload); err != nil {
			log.Warnf("[MATCHMAKING] Failed to send %s to %s: %v", event, connID, err)
		}
	}
}

const liveTimeout = 2 * time.Second

func (r *Registry) publish(m *domain.Match) {
	if r.live == nil {
		return
	}
	summary := m.Summary()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), liveTimeout)
		defer cancel()
		if err := r.live.Publish(ctx, summary); err != nil {
			log.Warnf("[MATCHMAKING] Failed to publish match %s: %v", summary.ID, err)
		}
	}()
}

// keepPublished refreshes the live entry of s until its engine stops, so
// long rounds do not outlive the entry's TTL.
func (r *Registry) keepPublished(s *Session) {
	if r.live == nil || r.liveRefresh <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(r.liveRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !r.IsRetired(s.Match.ID) {
					r.publish(s.Match)
				}
			case <-s.Engine.Done():
				return
			}
		}
	}()
}

func (r *Registry) unpublish(matchID string) {
	if r.live == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), liveTimeout)
		defer cancel()
		if err := r.live.Remove(ctx, matchID); err != nil {
			log.Warnf("[MATCHMAKING] Failed to unpublish match %s: %v", matchID, err)
		}
	}()
}
