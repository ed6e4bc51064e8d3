package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/subremind/backend/internal/domain"
	"github.com/subremind/backend/pkg/crypto"
)

// IdentityRepository stores the chat linked to each account. Chat ids are
// encrypted at rest and only ever looked up by account.
type IdentityRepository struct {
	db  *pgxpool.Pool
	enc *crypto.Encryptor
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(db *pgxpool.Pool, enc *crypto.Encryptor) *IdentityRepository {
	return &IdentityRepository{db: db, enc: enc}
}

// UpsertLinkedIdentity links channelID to the account, replacing any previous link.
func (r *IdentityRepository) UpsertLinkedIdentity(ctx context.Context, accountID, channelID string) error {
	sealed, err := r.enc.EncryptString(channelID)
	if err != nil {
		return fmt.Errorf("failed to encrypt channel id: %w", err)
	}

	query := `
		INSERT INTO linked_identities (user_id, channel_id, linked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET channel_id = EXCLUDED.channel_id, linked_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, accountID, sealed); err != nil {
		return domain.PersistenceError("upsert linked identity", err)
	}
	return nil
}

// FindLinkedIdentity returns the account's linked chat, or nil if it has none.
func (r *IdentityRepository) FindLinkedIdentity(ctx context.Context, accountID string) (*domain.LinkedIdentity, error) {
	query := `SELECT user_id, channel_id, linked_at FROM linked_identities WHERE user_id = $1`

	var li domain.LinkedIdentity
	var sealed string
	err := r.db.QueryRow(ctx, query, accountID).Scan(&li.AccountID, &sealed, &li.LinkedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.PersistenceError("find linked identity", err)
	}

	li.ExternalChannelID, err = r.enc.DecryptString(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt channel id for %s: %w", accountID, err)
	}
	return &li, nil
}

// DeleteLinkedIdentity unlinks the account's chat.
func (r *IdentityRepository) DeleteLinkedIdentity(ctx context.Context, accountID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM linked_identities WHERE user_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to delete linked identity: %w", err)
	}
	return nil
}

