package repository

import (
	"context"

	"github.com/spec-kit/deal-portal/internal/domain"
)

// ProfileRepository reads portal accounts mirrored from the identity provider.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error)
}

type profileRepository struct {
	db DBTX
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	const query = `
        INSERT INTO profiles (id, email, full_name, company_name, role, is_approved)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET email=EXCLUDED.email, full_name=EXCLUDED.full_name,
            company_name=EXCLUDED.company_name, role=EXCLUDED.role, is_approved=EXCLUDED.is_approved,
            updated_at=NOW()
        RETURNING created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		profile.ID,
		profile.Email,
		profile.FullName,
		profile.CompanyName,
		profile.Role,
		profile.IsApproved,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	const query = `
        SELECT id, email, full_name, company_name, role, is_approved, created_at, updated_at
        FROM profiles WHERE id=$1`

	var profile domain.Profile
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&profile.FullName,
		&profile.CompanyName,
		&profile.Role,
		&profile.IsApproved,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	const query = `
        SELECT id, email, full_name, company_name, role, is_approved, created_at, updated_at
        FROM profiles WHERE role=$1 ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Profile
	for rows.Next() {
		var profile domain.Profile
		if err := rows.Scan(
			&profile.ID,
			&profile.Email,
			&profile.FullName,
			&profile.CompanyName,
			&profile.Role,
			&profile.IsApproved,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, profile)
	}
	return result, rows.Err()
}
