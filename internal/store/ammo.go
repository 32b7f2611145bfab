package store

import (
	"context"
	"errors"
	"fmt"

	"DrawdownSentinel/internal/model"
)

// GetAmmoState returns the user's tranche flags. A user without a row gets an
// all-false state; no row is created.
func (s *Store) GetAmmoState(ctx context.Context, userID string) (model.AmmoState, error) {
	var out model.AmmoState
	err := s.get(ctx, &out, `SELECT user_id, tranche_1_used, tranche_2_used, tranche_3_used, updated_at
		FROM ammo_state WHERE user_id = ?`, userID)
	if errors.Is(err, ErrNotFound) {
		return model.AmmoState{UserID: userID}, nil
	}
	if err != nil {
		return model.AmmoState{}, fmt.Errorf("get ammo %s: %w", userID, err)
	}
	return out, nil
}

// UpsertAmmoState writes all three flags for the user. The row is keyed by user
// so concurrent writers converge on a single row.
func (s *Store) UpsertAmmoState(ctx context.Context, a model.AmmoState) (model.AmmoState, error) {
	a.UpdatedAt = s.now()
	err := s.exec(ctx, `INSERT INTO ammo_state (user_id, tranche_1_used, tranche_2_used, tranche_3_used, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			tranche_1_used = excluded.tranche_1_used,
			tranche_2_used = excluded.tranche_2_used,
			tranche_3_used = excluded.tranche_3_used,
			updated_at = excluded.updated_at`,
		a.UserID, a.Tranche1Used, a.Tranche2Used, a.Tranche3Used, a.UpdatedAt)
	if err != nil {
		return model.AmmoState{}, fmt.Errorf("upsert ammo %s: %w", a.UserID, err)
	}
	return a, nil
}
