package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hireplane/internal/agent"
	"hireplane/internal/store"
)

// PutHire inserts or replaces a hire row. Last write wins for concurrent
// writers of the same hire.
func (s *Store) PutHire(ctx context.Context, hire *store.Hire) error {
	query := `
		INSERT INTO hires (id, card_url, cached_card, cached_at, wallet_id, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			card_url = EXCLUDED.card_url,
			cached_card = EXCLUDED.cached_card,
			cached_at = EXCLUDED.cached_at,
			wallet_id = EXCLUDED.wallet_id,
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	var cardJSON []byte
	if hire.Agent.CachedCard != nil {
		var err error
		cardJSON, err = json.Marshal(hire.Agent.CachedCard)
		if err != nil {
			return fmt.Errorf("failed to marshal cached card: %w", err)
		}
	}

	var metadataJSON []byte
	if hire.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(hire.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, query,
		hire.ID,
		hire.Agent.CardURL,
		cardJSON,
		nullTime(hire.Agent.CachedAt),
		hire.WalletID,
		hire.Status,
		metadataJSON,
		hire.CreatedAt,
		hire.UpdatedAt,
	)
	return err
}

// GetHire returns a hire by ID, or store.ErrNotFound.
func (s *Store) GetHire(ctx context.Context, id uuid.UUID) (*store.Hire, error) {
	query := `
		SELECT id, card_url, cached_card, cached_at, wallet_id, status, metadata, created_at, updated_at
		FROM hires
		WHERE id = $1
	`

	var (
		hire         store.Hire
		cardJSON     []byte
		cachedAt     sql.NullTime
		metadataJSON []byte
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&hire.ID,
		&hire.Agent.CardURL,
		&cardJSON,
		&cachedAt,
		&hire.WalletID,
		&hire.Status,
		&metadataJSON,
		&hire.CreatedAt,
		&hire.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if cachedAt.Valid {
		hire.Agent.CachedAt = cachedAt.Time
	}
	if len(cardJSON) > 0 {
		var card agent.Card
		if err := json.Unmarshal(cardJSON, &card); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached card: %w", err)
		}
		hire.Agent.CachedCard = &card
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &hire.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &hire, nil
}

// DeleteHire removes a hire row. Used only for best-effort rollback of a
// hire whose first job failed to persist.
func (s *Store) DeleteHire(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM hires WHERE id = $1", id)
	return err
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
