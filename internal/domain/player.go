package domain

import (
	"context"
	"errors"
	"sync"
)

type PlayerKind string

const (
	KindLocal     PlayerKind = "LOCAL"
	KindRemote    PlayerKind = "REMOTE"
	KindAutomated PlayerKind = "AUTOMATED"
)

// PlayerState is the per-player snapshot handed out with every request.
// It never exposes the board itself, only what a player needs to decide.
type PlayerState struct {
	Position  Position            `json:"position"`
	Direction Direction           `json:"direction"`
	Opponents map[string]Position `json:"opponents"`
	// Open tells, for each move, whether it leads to a vacant tile
	Open [MoveCount]bool `json:"open"`
}

// Player is anything that can take part in a match.
type Player interface {
	ID() string
	Name() string
	Color() string
	Kind() PlayerKind
	AwaitSetup(ctx context.Context, state PlayerState) error
	AwaitMove(ctx context.Context, state PlayerState) (Move, error)
}

// Resolver is implemented by players whose answers come from outside the
// engine. Both methods report whether a pending request consumed the value.
type Resolver interface {
	ResolveMove(m Move) bool
	ResolveSetup() bool
}

// Leaver is implemented by players that can abandon pending waits.
type Leaver interface {
	Leave()
}

// Strategy picks a move for an automated player.
type Strategy interface {
	Choose(state PlayerState) Move
}

type PlayerInfo struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Color string     `json:"color"`
	Kind  PlayerKind `json:"kind"`
}

func InfoOf(p Player) PlayerInfo {
	return PlayerInfo{ID: p.ID(), Name: p.Name(), Color: p.Color(), Kind: p.Kind()}
}

type profile struct {
	id    string
	name  string
	color string
}

func (p profile) ID() string    { return p.id }
func (p profile) Name() string  { return p.name }
func (p profile) Color() string { return p.color }

// Local is fed by input captured on the player's own device. It holds the
// tick open until the deadline and then consumes the last captured key.
type Local struct {
	profile
	mu      sync.Mutex
	pending Move
}

func NewLocal(id, name, color string) *Local {
	return &Local{profile: profile{id, name, color}}
}

func (l *Local) Kind() PlayerKind { return KindLocal }

func (l *Local) AwaitSetup(ctx context.Context, _ PlayerState) error {
	return ctx.Err()
}

func (l *Local) AwaitMove(ctx context.Context, _ PlayerState) (Move, error) {
	<-ctx.Done()
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KeepGoing, ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.pending
	l.pending = KeepGoing
	return m, nil
}

func (l *Local) ResolveMove(m Move) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = m
	return true
}

func (l *Local) ResolveSetup() bool { return true }

// Remote waits for answers relayed from the network. Each request can be
// fulfilled once; anything arriving afterwards is dropped.
type Remote struct {
	profile
	mu        sync.Mutex
	move      chan Move
	setup     chan struct{}
	left      chan struct{}
	leaveOnce sync.Once
}

func NewRemote(id, name, color string) *Remote {
	return &Remote{
		profile: profile{id, name, color},
		left:    make(chan struct{}),
	}
}

func (r *Remote) Kind() PlayerKind { return KindRemote }

func (r *Remote) AwaitSetup(ctx context.Context, _ PlayerState) error {
	ch := make(chan struct{}, 1)
	r.mu.Lock()
	r.setup = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.setup == ch {
			r.setup = nil
		}
		r.mu.Unlock()
	}()

	select {
	case <-ch:
		return nil
	case <-r.left:
		return ErrPlayerLeft
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Remote) AwaitMove(ctx context.Context, _ PlayerState) (Move, error) {
	ch := make(chan Move, 1)
	r.mu.Lock()
	r.move = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.move == ch {
			r.move = nil
		}
		r.mu.Unlock()
	}()

	select {
	case m := <-ch:
		return m, nil
	case <-r.left:
		return KeepGoing, ErrPlayerLeft
	case <-ctx.Done():
		return KeepGoing, ctx.Err()
	}
}

func (r *Remote) ResolveMove(m Move) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.move == nil {
		return false
	}
	r.move <- m
	r.move = nil
	return true
}

func (r *Remote) ResolveSetup() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setup == nil {
		return false
	}
	r.setup <- struct{}{}
	r.setup = nil
	return true
}

func (r *Remote) Leave() {
	r.leaveOnce.Do(func() { close(r.left) })
}

// Automated computes its moves in-process with a Strategy.
type Automated struct {
	profile
	strategy Strategy
}

func NewAutomated(id, name, color string, strategy Strategy) *Automated {
	return &Automated{profile: profile{id, name, color}, strategy: strategy}
}

func (a *Automated) Kind() PlayerKind { return KindAutomated }

func (a *Automated) AwaitSetup(ctx context.Context, _ PlayerState) error {
	return ctx.Err()
}

func (a *Automated) AwaitMove(ctx context.Context, state PlayerState) (Move, error) {
	ch := make(chan Move, 1)
	go func() {
		// a failing strategy keeps the bike going
		defer func() {
			if r := recover(); r != nil {
				ch <- KeepGoing
			}
		}()
		ch <- a.strategy.Choose(state)
	}()

	select {
	case m := <-ch:
		return m, nil
	case <-ctx.Done():
		return KeepGoing, ctx.Err()
	}
}
