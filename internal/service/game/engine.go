package game

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

type State int32

const (
	StateAwaitingSetup State = iota
	StateRoundActive
	StateEqualityResolved
	StateRoundEnded
	StateMatchEnded
)

var stateNames = map[State]string{
	StateAwaitingSetup:    "AWAITING_SETUP",
	StateRoundActive:      "ROUND_ACTIVE",
	StateEqualityResolved: "EQUALITY_RESOLVED",
	StateRoundEnded:       "ROUND_ENDED",
	StateMatchEnded:       "MATCH_ENDED",
}

func (s State) String() string { return stateNames[s] }

// EmitFunc receives every refreshStatus the engine produces.
type EmitFunc func(status domain.Status, data any)

type Settings struct {
	ChoiceTimeout time.Duration
	SetupTimeout  time.Duration
}

type PositionUpdate struct {
	PlayerID  string           `json:"playerId"`
	Previous  *domain.Position `json:"previous,omitempty"`
	Next      domain.Position  `json:"next"`
	Color     string           `json:"color"`
	Direction domain.Direction `json:"direction"`
}

// Engine drives one match. Board, positions and steering belong to the
// goroutine running Run and are never touched from anywhere else.
type Engine struct {
	match    *domain.Match
	settings Settings
	emit     EmitFunc
	log      *log.Entry
	rounds   metric.Int64Counter

	board     *domain.Board
	positions map[string]domain.Position
	steering  map[string]*domain.Steering
	state     atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEngine(match *domain.Match, settings Settings, emit EmitFunc) *Engine {
	if emit == nil {
		emit = func(domain.Status, any) {}
	}
	return &Engine{
		match:     match,
		settings:  settings,
		emit:      emit,
		log:       log.WithField("match", match.ID),
		rounds:    roundsCounter(),
		board:     domain.NewBoard(match.Rows, match.Cols),
		positions: make(map[string]domain.Position),
		steering:  make(map[string]*domain.Steering),
		done:      make(chan struct{}),
	}
}

func (e *Engine) Match() *domain.Match { return e.match }

func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) { e.state.Store(int32(s)) }

// Start runs the match in its own goroutine. onDone gets the result of Run.
func (e *Engine) Start(ctx context.Context, onDone func(error)) {
	e.mu.Lock()
	ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	go func() {
		defer close(e.done)
		err := e.Run(ctx)
		if onDone != nil {
			onDone(err)
		}
	}()
}

// Stop cancels the match; pending waits are abandoned.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) Done() <-chan struct{} { return e.done }

// RemovePlayer takes a player out of the match and reports whether the
// match can no longer continue.
func (e *Engine) RemovePlayer(playerID string) bool {
	p, ended := e.match.RemovePlayer(playerID)
	if leaver, ok := p.(domain.Leaver); ok {
		leaver.Leave()
	}
	return ended
}

// Run plays every configured round and ends the match.
func (e *Engine) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()

	for round := 1; round <= e.match.RoundsCount; round++ {
		result, err := e.RunRound(ctx)
		if err != nil {
			return err
		}
		result.Round = round
		e.match.RecordRound(result)
		e.rounds.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", string(e.match.Type)),
			attribute.String("outcome", string(result.Status)),
		))

		e.log.Infof("[ENGINE] Round %d/%d finished: %s winners=%v equalities=%v",
			round, e.match.RoundsCount, result.Status, result.Winners, result.Equalities)
		e.emit(domain.StatusRoundEnd, result)
	}

	e.match.Finish()
	e.setState(StateMatchEnded)
	e.emit(domain.StatusGameEnd, struct{}{})
	e.log.Info("[ENGINE] Match ended")
	return nil
}

// RunRound plays one round from setup until an equality or an elimination.
func (e *Engine) RunRound(ctx context.Context) (domain.RoundResult, error) {
	if err := e.setup(ctx); err != nil {
		return domain.RoundResult{}, err
	}
	defer e.reset()

	e.setState(StateRoundActive)
	for {
		players := e.entrants()
		moves, err := e.collectMoves(ctx, players)
		if err != nil {
			return domain.RoundResult{}, err
		}

		result, done, err := e.resolveTick(e.stillPresent(players), moves)
		if err != nil {
			return domain.RoundResult{}, err
		}
		if done {
			return result, nil
		}
	}
}

func (e *Engine) reset() {
	e.board.Initialize()
	e.positions = make(map[string]domain.Position)
	e.steering = make(map[string]*domain.Steering)
}

// setup places every player on its spawn. Each player is drawn as soon as
// its acknowledgement (or the default after setupTimeout) comes in, but the
// round only begins once all of them are placed.
func (e *Engine) setup(ctx context.Context) error {
	e.setState(StateAwaitingSetup)
	e.reset()

	players := e.match.Players()
	spawns := domain.StartPositions(e.board, len(players))
	for i, p := range players {
		steering := domain.NewSteering(spawns[i].Facing)
		e.steering[p.ID()] = &steering
		e.positions[p.ID()] = spawns[i].Position
	}

	states := make([]domain.PlayerState, len(players))
	for i, p := range players {
		states[i] = e.stateFor(p.ID())
	}

	resolved := make(chan domain.Player, len(players))
	for i, p := range players {
		go func() {
			sctx, cancel := context.WithTimeout(ctx, e.settings.SetupTimeout)
			defer cancel()
			if err := p.AwaitSetup(sctx, states[i]); err != nil && ctx.Err() == nil {
				e.log.Debugf("[ENGINE] Setup default for player %s: %v", p.ID(), err)
			}
			resolved <- p
		}()
	}

	for range players {
		select {
		case p := <-resolved:
			pos := e.positions[p.ID()]
			if err := e.board.Claim(pos, p.ID()); err != nil {
				return fmt.Errorf("place player %s: %w", p.ID(), err)
			}
			e.emit(domain.StatusPositionsUpdated, PositionUpdate{
				PlayerID:  p.ID(),
				Next:      pos,
				Color:     p.Color(),
				Direction: e.steering[p.ID()].Coming,
			})
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// entrants are the placed players still on the roster.
func (e *Engine) entrants() []domain.Player {
	players := []domain.Player{}
	for _, p := range e.match.Players() {
		if _, placed := e.positions[p.ID()]; placed {
			players = append(players, p)
		}
	}
	return players
}

// stillPresent drops players that left while moves were being collected.
func (e *Engine) stillPresent(players []domain.Player) []domain.Player {
	present := players[:0:0]
	for _, p := range players {
		if _, ok := e.match.Player(p.ID()); ok {
			present = append(present, p)
		} else {
			delete(e.positions, p.ID())
		}
	}
	return present
}

func (e *Engine) stateFor(playerID string) domain.PlayerState {
	pos := e.positions[playerID]
	steering := e.steering[playerID]

	opponents := make(map[string]domain.Position, len(e.positions))
	for id, p := range e.positions {
		if id != playerID {
			opponents[id] = p
		}
	}

	var open [domain.MoveCount]bool
	for m := domain.Move(0); m < domain.MoveCount; m++ {
		open[m] = e.board.CheckPositionValidity(steering.Peek(m).Next(pos))
	}

	return domain.PlayerState{
		Position:  pos,
		Direction: steering.Coming,
		Opponents: opponents,
		Open:      open,
	}
}

// collectMoves asks every player concurrently. A player that does not
// answer within choiceTimeout keeps its current direction.
func (e *Engine) collectMoves(ctx context.Context, players []domain.Player) (map[string]domain.Move, error) {
	states := make([]domain.PlayerState, len(players))
	for i, p := range players {
		states[i] = e.stateFor(p.ID())
	}

	answers := make([]domain.Move, len(players))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range players {
		g.Go(func() error {
			mctx, cancel := context.WithTimeout(gctx, e.settings.ChoiceTimeout)
			defer cancel()

			m, err := p.AwaitMove(mctx, states[i])
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				m = domain.KeepGoing
			}
			if !m.Valid() {
				m = domain.KeepGoing
			}
			answers[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	moves := make(map[string]domain.Move, len(players))
	for i, p := range players {
		moves[p.ID()] = answers[i]
	}
	return moves, nil
}

// resolveTick applies one set of simultaneous moves. It reports done when
// the round is over; otherwise every survivor has been moved.
func (e *Engine) resolveTick(players []domain.Player, moves map[string]domain.Move) (domain.RoundResult, bool, error) {
	byID := make(map[string]domain.Player, len(players))
	ids := make([]string, 0, len(players))
	for _, p := range players {
		byID[p.ID()] = p
		ids = append(ids, p.ID())
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		e.setState(StateRoundEnded)
		return domain.RoundResult{Status: domain.OutcomeRoundEnd, Winners: []string{}}, true, nil
	}

	candidates := make(map[string]domain.Position, len(ids))
	for _, id := range ids {
		next := e.steering[id].Apply(moves[id]).Next(e.positions[id])
		if e.board.CheckPositionValidity(next) {
			candidates[id] = next
		}
	}

	if equalities := groupEqualities(ids, candidates); len(equalities) > 0 {
		e.setState(StateEqualityResolved)
		return domain.RoundResult{Status: domain.OutcomeEquality, Winners: []string{}, Equalities: equalities}, true, nil
	}

	if len(candidates) < len(ids) {
		winners := []string{}
		for _, id := range ids {
			if _, ok := candidates[id]; ok {
				winners = append(winners, id)
			}
		}
		e.setState(StateRoundEnded)
		return domain.RoundResult{Status: domain.OutcomeRoundEnd, Winners: winners}, true, nil
	}

	for _, id := range ids {
		prev := e.positions[id]
		next := candidates[id]
		if err := e.board.Claim(next, id); err != nil {
			return domain.RoundResult{}, false, fmt.Errorf("commit move for %s: %w", id, err)
		}
		e.positions[id] = next
		e.emit(domain.StatusPositionsUpdated, PositionUpdate{
			PlayerID:  id,
			Previous:  &prev,
			Next:      next,
			Color:     byID[id].Color(),
			Direction: e.steering[id].Coming,
		})
	}
	return domain.RoundResult{}, false, nil
}

// groupEqualities collects the players whose candidates share a tile,
// keyed by the tile itself.
func groupEqualities(ids []string, candidates map[string]domain.Position) [][]string {
	groups := make(map[domain.Position][]string)
	var order []domain.Position
	for _, id := range ids {
		pos, ok := candidates[id]
		if !ok {
			continue
		}
		if _, seen := groups[pos]; !seen {
			order = append(order, pos)
		}
		groups[pos] = append(groups[pos], id)
	}

	var equalities [][]string
	for _, pos := range order {
		if len(groups[pos]) > 1 {
			equalities = append(equalities, groups[pos])
		}
	}
	return equalities
}
