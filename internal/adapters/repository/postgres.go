package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/spotter/internal/domain/model"
	"github.com/okian/spotter/internal/domain/types"
	"github.com/okian/spotter/pkg/metrics"
)

//go:embed schema.sql
var schema embed.FS

// PostgresStore is the durable Store backed by pgx. Rating deltas are
// applied inside the UPDATE statement, so concurrent settlements for the
// same player or image serialize at the row without lost updates.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool and runs the embedded schema migration.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping reports connectivity for health checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RecentDurations implements Store.
func (s *PostgresStore) RecentDurations(ctx context.Context, imageID string, limit int) ([]model.DurationSample, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	var (
		rows pgx.Rows
		err  error
	)
	if imageID == "" {
		rows, err = s.pool.Query(ctx, `
			SELECT used_ms, created_at
			  FROM rounds
			 WHERE outcome = 'success'
			 ORDER BY created_at DESC
			 LIMIT $1
		`, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT used_ms, created_at
			  FROM rounds
			 WHERE outcome = 'success' AND image_id = $1
			 ORDER BY created_at DESC
			 LIMIT $2
		`, imageID, limit)
	}
	if err != nil {
		metrics.RecordStoreError("recent_durations")
		return nil, fmt.Errorf("query durations: %w", err)
	}
	defer rows.Close()

	var out []model.DurationSample
	for rows.Next() {
		var sample model.DurationSample
		if err := rows.Scan(&sample.MS, &sample.CreatedAt); err != nil {
			metrics.RecordStoreError("recent_durations")
			return nil, fmt.Errorf("scan duration: %w", err)
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError("recent_durations")
		return nil, fmt.Errorf("iterate durations: %w", err)
	}
	return out, nil
}

// Rating implements Store.
func (s *PostgresStore) Rating(ctx context.Context, kind model.RatingKind, id string) (model.Rating, error) {
	r := model.Rating{Kind: kind, ID: id}
	err := s.pool.QueryRow(ctx, `
		SELECT rating, games, display_name
		  FROM ratings
		 WHERE kind = $1 AND id = $2
	`, string(kind), id).Scan(&r.Value, &r.Games, &r.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Rating{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError("rating")
		return model.Rating{}, fmt.Errorf("query rating: %w", err)
	}
	return r, nil
}

// EnsureRating implements Store.
func (s *PostgresStore) EnsureRating(ctx context.Context, kind model.RatingKind, id, displayName string) (model.Rating, error) {
	r := model.Rating{Kind: kind, ID: id}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO ratings(kind, id, rating, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, id) DO UPDATE
		  SET display_name = CASE
		        WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name
		        ELSE ratings.display_name
		      END,
		      updated_at = now()
		RETURNING rating, games, display_name
	`, string(kind), id, model.InitialRating, displayName).Scan(&r.Value, &r.Games, &r.DisplayName)
	if err != nil {
		metrics.RecordStoreError("ensure_rating")
		return model.Rating{}, fmt.Errorf("ensure rating: %w", err)
	}
	return r, nil
}

// ApplyRatingDelta implements Store.
func (s *PostgresStore) ApplyRatingDelta(ctx context.Context, kind model.RatingKind, id string, delta float64, games int) (model.Rating, error) {
	r := model.Rating{Kind: kind, ID: id}
	err := s.pool.QueryRow(ctx, `
		UPDATE ratings
		   SET rating = rating + $3,
		       games = games + $4,
		       updated_at = now()
		 WHERE kind = $1 AND id = $2
		RETURNING rating, games, display_name
	`, string(kind), id, delta, games).Scan(&r.Value, &r.Games, &r.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Rating{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError("apply_delta")
		return model.Rating{}, fmt.Errorf("apply rating delta: %w", err)
	}
	return r, nil
}

// SetDisplayName implements Store.
func (s *PostgresStore) SetDisplayName(ctx context.Context, playerID, name string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ratings
		   SET display_name = $2,
		       updated_at = now()
		 WHERE kind = 'player' AND id = $1
	`, playerID, name)
	if err != nil {
		metrics.RecordStoreError("set_display_name")
		return fmt.Errorf("set display name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasPriorSuccess implements Store.
func (s *PostgresStore) HasPriorSuccess(ctx context.Context, playerID, imageID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM rounds
			 WHERE player_id = $1 AND image_id = $2 AND outcome = 'success'
		)
	`, playerID, imageID).Scan(&exists)
	if err != nil {
		metrics.RecordStoreError("prior_success")
		return false, fmt.Errorf("query prior success: %w", err)
	}
	return exists, nil
}

// AppendRound implements Store.
func (s *PostgresStore) AppendRound(ctx context.Context, rec model.RoundRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rounds(
			image_id, player_id, raw_ms, used_ms, misses,
			outcome, rated,
			player_before, player_after, image_before, image_after,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, rec.ImageID, rec.PlayerID, rec.RawMS, rec.UsedMS, rec.Misses,
		string(rec.Outcome), rec.Rated,
		rec.PlayerBefore, rec.PlayerAfter, rec.ImageBefore, rec.ImageAfter,
		rec.CreatedAt)
	if err != nil {
		metrics.RecordStoreError("append_round")
		return fmt.Errorf("append round: %w", err)
	}
	return nil
}

// TopPlayers implements Store. Dense ranking: equal ratings share a rank
// and the next distinct rating continues consecutively.
func (s *PostgresStore) TopPlayers(ctx context.Context, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DENSE_RANK() OVER (ORDER BY rating DESC) AS rank,
		       id, rating, games, display_name
		  FROM ratings
		 WHERE kind = 'player'
		 ORDER BY rating DESC, id ASC
		 LIMIT $1
	`, n)
	if err != nil {
		metrics.RecordStoreError("top_players")
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]types.Entry, 0, n)
	for rows.Next() {
		var e types.Entry
		if err := rows.Scan(&e.Rank, &e.PlayerID, &e.Rating, &e.Games, &e.DisplayName); err != nil {
			metrics.RecordStoreError("top_players")
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError("top_players")
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return out, nil
}

// PlayerEntry implements Store.
func (s *PostgresStore) PlayerEntry(ctx context.Context, playerID string) (types.Entry, error) {
	var e types.Entry
	err := s.pool.QueryRow(ctx, `
		SELECT rank, id, rating, games, display_name
		  FROM (
			SELECT DENSE_RANK() OVER (ORDER BY rating DESC) AS rank,
			       id, rating, games, display_name
			  FROM ratings
			 WHERE kind = 'player'
		  ) ranked
		 WHERE id = $1
	`, playerID).Scan(&e.Rank, &e.PlayerID, &e.Rating, &e.Games, &e.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Entry{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError("player_entry")
		return types.Entry{}, fmt.Errorf("query player entry: %w", err)
	}
	return e, nil
}

// Counts implements Store. Errors degrade to zero counts; this only
// feeds the stats endpoint.
func (s *PostgresStore) Counts(ctx context.Context) (players, images int) {
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE kind = 'player'),
		       COUNT(*) FILTER (WHERE kind = 'image')
		  FROM ratings
	`).Scan(&players, &images)
	if err != nil {
		metrics.RecordStoreError("counts")
		return 0, 0
	}
	return players, images
}
