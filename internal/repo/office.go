package repo

import (
	"context"
	"errors"
	"fmt"

	"docroute-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrOfficeNotFound indicates the office does not exist
	ErrOfficeNotFound = errors.New("office not found")

	// ErrOfficeNameTaken indicates an active office already uses this name
	ErrOfficeNameTaken = errors.New("office name already in use")
)

// OfficeRepository handles database operations for routing offices.
type OfficeRepository struct {
	pool *pgxpool.Pool
}

// NewOfficeRepository creates a new OfficeRepository instance.
func NewOfficeRepository(pool *pgxpool.Pool) *OfficeRepository {
	return &OfficeRepository{pool: pool}
}

// Create inserts a new office.
func (r *OfficeRepository) Create(ctx context.Context, o *domain.Office) (*domain.Office, error) {
	query := `
		INSERT INTO offices (id, name, visibility, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, visibility, status, created_at, updated_at
	`

	var out domain.Office
	err := r.pool.QueryRow(ctx, query, o.ID, o.Name, o.Visibility, o.Status).Scan(
		&out.ID, &out.Name, &out.Visibility, &out.Status, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrOfficeNameTaken
		}
		return nil, fmt.Errorf("insert office: %w", err)
	}
	return &out, nil
}

// Get retrieves an office by ID.
func (r *OfficeRepository) Get(ctx context.Context, officeID string) (*domain.Office, error) {
	query := `
		SELECT id, name, visibility, status, created_at, updated_at
		FROM offices
		WHERE id = $1
	`

	var o domain.Office
	err := r.pool.QueryRow(ctx, query, officeID).Scan(
		&o.ID, &o.Name, &o.Visibility, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfficeNotFound
		}
		return nil, fmt.Errorf("query office: %w", err)
	}
	return &o, nil
}

// List retrieves offices sorted by name. Archived offices are excluded unless
// includeArchived is set.
func (r *OfficeRepository) List(ctx context.Context, includeArchived bool) ([]domain.Office, error) {
	query := `
		SELECT id, name, visibility, status, created_at, updated_at
		FROM offices
		WHERE $1 OR status = 'active'
		ORDER BY name ASC
	`

	rows, err := r.pool.Query(ctx, query, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("query offices: %w", err)
	}
	defer rows.Close()

	var offices []domain.Office
	for rows.Next() {
		var o domain.Office
		if err := rows.Scan(&o.ID, &o.Name, &o.Visibility, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan office: %w", err)
		}
		offices = append(offices, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offices: %w", err)
	}

	return offices, nil
}

// Archive marks an office as archived.
func (r *OfficeRepository) Archive(ctx context.Context, officeID string) error {
	query := `
		UPDATE offices
		SET status = 'archived', updated_at = now()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, officeID)
	if err != nil {
		return fmt.Errorf("archive office: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOfficeNotFound
	}
	return nil
}

// CountInFlightDocuments counts documents currently routed through the office
// that have not reached a terminal state. Archival is refused while this is
// non-zero.
func (r *OfficeRepository) CountInFlightDocuments(ctx context.Context, officeID string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM documents
		WHERE current_office_id = $1
		  AND current_status NOT IN ('completed', 'rejected')
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, officeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count in-flight documents: %w", err)
	}
	return count, nil
}
