package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docroute-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrProfileNotFound indicates no profile record exists for the identity
	ErrProfileNotFound = errors.New("profile not found")
)

// ProfileRepository handles database operations for user profiles.
// Concrete struct, no interface; services depend on it directly.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository instance.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = `
	u.uid, u.email, u.display_name, u.role, u.is_root, u.status,
	u.office_id, o.name, u.created_at, u.updated_at
`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.UID, &p.Email, &p.DisplayName, &p.Role, &p.IsRoot, &p.Status,
		&p.OfficeID, &p.OfficeName, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get retrieves a profile by identity UID, joining the office name.
func (r *ProfileRepository) Get(ctx context.Context, uid string) (*domain.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM users u
		LEFT JOIN offices o ON u.office_id = o.id
		WHERE u.uid = $1
	`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}

// GetByEmail retrieves a profile by email. Emails are stored as provided but
// compared case-insensitively.
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM users u
		LEFT JOIN offices o ON u.office_id = o.id
		WHERE lower(u.email) = lower($1)
	`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("query profile by email: %w", err)
	}
	return p, nil
}

// Upsert creates the profile record on first authentication, or refreshes the
// identity attributes (email, display name) on subsequent ones. Role, root
// flag, status and office are only written on insert; later changes go
// through the dedicated update methods.
func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	query := `
		INSERT INTO users (uid, email, display_name, role, is_root, status, office_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (uid) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			updated_at = now()
		RETURNING uid, email, display_name, role, is_root, status, office_id, created_at, updated_at
	`

	var out domain.Profile
	err := r.pool.QueryRow(ctx, query,
		p.UID, p.Email, p.DisplayName, p.Role, p.IsRoot, p.Status, p.OfficeID,
	).Scan(
		&out.UID, &out.Email, &out.DisplayName, &out.Role, &out.IsRoot, &out.Status,
		&out.OfficeID, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return &out, nil
}

// UpdateRole sets the role and root flag on a profile.
func (r *ProfileRepository) UpdateRole(ctx context.Context, uid string, role domain.Role, isRoot bool) error {
	query := `
		UPDATE users
		SET role = $2, is_root = $3, updated_at = now()
		WHERE uid = $1
	`

	tag, err := r.pool.Exec(ctx, query, uid, role, isRoot)
	if err != nil {
		return fmt.Errorf("update profile role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// UpdateStatus sets the account status on a profile.
func (r *ProfileRepository) UpdateStatus(ctx context.Context, uid string, status domain.UserStatus) error {
	query := `
		UPDATE users
		SET status = $2, updated_at = now()
		WHERE uid = $1
	`

	tag, err := r.pool.Exec(ctx, query, uid, status)
	if err != nil {
		return fmt.Errorf("update profile status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// UpdateOffice reassigns the profile to an office. A nil officeID detaches it.
func (r *ProfileRepository) UpdateOffice(ctx context.Context, uid string, officeID *string) error {
	query := `
		UPDATE users
		SET office_id = $2, updated_at = now()
		WHERE uid = $1
	`

	tag, err := r.pool.Exec(ctx, query, uid, officeID)
	if err != nil {
		return fmt.Errorf("update profile office: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// List retrieves profiles ordered by creation time, newest first.
// Used by the admin user management screens.
func (r *ProfileRepository) List(ctx context.Context, limit int) ([]domain.Profile, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	query := `
		SELECT ` + profileColumns + `
		FROM users u
		LEFT JOIN offices o ON u.office_id = o.id
		ORDER BY u.created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, nil
}
