package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hustlex/internal/domain"
)

// ProfileRepo reads display profiles from the users table.
type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

var _ domain.ProfileRepository = (*ProfileRepo)(nil)

func (r *ProfileRepo) GetDisplayProfile(ctx context.Context, userID string) (*domain.DisplayProfile, error) {
	p := &domain.DisplayProfile{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, avatar FROM users WHERE id = ?
	`, userID).Scan(&p.ID, &p.Email, &p.Profile.FirstName, &p.Profile.LastName, &p.Profile.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}
