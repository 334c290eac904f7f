package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

type MatchRepo struct {
	DB *sql.DB
}

func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{DB: db}
}

// SaveMatch stores a retired match and its roster in one transaction.
func (r *MatchRepo) SaveMatch(ctx context.Context, record domain.MatchRecord) error {
	rounds, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal rounds: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var startedAt sql.NullTime
	if !record.StartedAt.IsZero() {
		startedAt = sql.NullTime{Time: record.StartedAt, Valid: true}
	}

	// UPSERT so a retried save stays idempotent
	query := `
	INSERT INTO matches (match_id, game_type, reason, rounds, created_at, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (match_id) DO UPDATE SET
		reason = EXCLUDED.reason,
		rounds = EXCLUDED.rounds,
		finished_at = EXCLUDED.finished_at;
	`
	_, err = tx.ExecContext(ctx, query, record.ID, string(record.Type), record.Reason, string(rounds),
		record.CreatedAt, startedAt, record.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert match record: %w", err)
	}

	wins := record.Wins()
	for seat, p := range record.Players {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO match_players (match_id, player_id, player_name, color, kind, seat, rounds_won)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (match_id, player_id) DO UPDATE SET rounds_won = EXCLUDED.rounds_won;
		`, record.ID, p.ID, p.Name, p.Color, string(p.Kind), seat, wins[p.ID])
		if err != nil {
			return fmt.Errorf("failed to insert player %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetMatchByID returns nil when the match was never recorded.
func (r *MatchRepo) GetMatchByID(ctx context.Context, matchID string) (*domain.MatchRecord, error) {
	query := `
	SELECT match_id, game_type, reason, rounds, created_at, started_at, finished_at
	FROM matches
	WHERE match_id = $1;
	`
	record, err := scanMatch(r.DB.QueryRowContext(ctx, query, matchID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match by ID: %w", err)
	}

	if record.Players, err = r.players(ctx, matchID); err != nil {
		return nil, err
	}
	return record, nil
}

// GetPlayerHistory lists the most recent matches a player took part in.
func (r *MatchRepo) GetPlayerHistory(ctx context.Context, playerID string, limit int) ([]domain.MatchRecord, error) {
	query := `
	SELECT m.match_id, m.game_type, m.reason, m.rounds, m.created_at, m.started_at, m.finished_at
	FROM matches m
	JOIN match_players p ON p.match_id = m.match_id
	WHERE p.player_id = $1
	ORDER BY m.finished_at DESC
	LIMIT $2;
	`
	rows, err := r.DB.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer rows.Close()

	history := []domain.MatchRecord{}
	for rows.Next() {
		record, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		history = append(history, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range history {
		if history[i].Players, err = r.players(ctx, history[i].ID); err != nil {
			return nil, err
		}
	}
	return history, nil
}

func (r *MatchRepo) players(ctx context.Context, matchID string) ([]domain.PlayerInfo, error) {
	rows, err := r.DB.QueryContext(ctx, `
	SELECT player_id, player_name, color, kind
	FROM match_players
	WHERE match_id = $1
	ORDER BY seat;
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players of %s: %w", matchID, err)
	}
	defer rows.Close()

	players := []domain.PlayerInfo{}
	for rows.Next() {
		var p domain.PlayerInfo
		var kind string
		if err := rows.Scan(&p.ID, &p.Name, &p.Color, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		p.Kind = domain.PlayerKind(kind)
		players = append(players, p)
	}
	return players, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (*domain.MatchRecord, error) {
	var (
		record    domain.MatchRecord
		gameType  string
		rounds    []byte
		startedAt sql.NullTime
	)
	err := row.Scan(&record.ID, &gameType, &record.Reason, &rounds,
		&record.CreatedAt, &startedAt, &record.FinishedAt)
	if err != nil {
		return nil, err
	}

	record.Type = domain.GameType(gameType)
	if startedAt.Valid {
		record.StartedAt = startedAt.Time
	}
	if err := json.Unmarshal(rounds, &record.Results); err != nil {
		return nil, fmt.Errorf("failed to decode rounds: %w", err)
	}
	return &record, nil
}
