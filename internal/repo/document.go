package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"docroute-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles database operations for routed documents.
// The history column is the source of truth; current_status, current_office_id
// and active_index are stored projections and always written together with it.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a new DocumentRepository instance.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// BeginTx starts a transaction on the pool. Decision processing runs inside
// one so the row lock in GetForUpdate holds until commit.
func (r *DocumentRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create inserts a new document with its full initial history.
func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) (*domain.Document, error) {
	historyJSON, err := json.Marshal(d.History)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}

	query := `
		INSERT INTO documents (id, title, owner_id, current_status, current_office_id, active_index, history)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	out := *d
	err = r.pool.QueryRow(ctx, query,
		d.ID, d.Title, d.OwnerID, d.CurrentStatus, d.CurrentOfficeID, d.ActiveIndex, historyJSON,
	).Scan(&out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return &out, nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var historyJSON []byte

	err := row.Scan(
		&d.ID, &d.Title, &d.OwnerID, &d.CurrentStatus, &d.CurrentOfficeID,
		&d.ActiveIndex, &historyJSON, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(historyJSON, &d.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return &d, nil
}

const documentColumns = `
	id, title, owner_id, current_status, current_office_id,
	active_index, history, created_at, updated_at
`

// Get retrieves a document by ID.
func (r *DocumentRepository) Get(ctx context.Context, docID string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	d, err := scanDocument(r.pool.QueryRow(ctx, query, docID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("query document: %w", err)
	}
	return d, nil
}

// GetForUpdate retrieves a document inside tx with a row lock, so two
// concurrent decisions on the same document serialize instead of both
// reading the same active step.
func (r *DocumentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, docID string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`

	d, err := scanDocument(tx.QueryRow(ctx, query, docID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("query document for update: %w", err)
	}
	return d, nil
}

// UpdateState persists the document's history and projection inside tx.
func (r *DocumentRepository) UpdateState(ctx context.Context, tx pgx.Tx, d *domain.Document) error {
	historyJSON, err := json.Marshal(d.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	query := `
		UPDATE documents
		SET current_status = $2, current_office_id = $3, active_index = $4,
		    history = $5, updated_at = now()
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query, d.ID, d.CurrentStatus, d.CurrentOfficeID, d.ActiveIndex, historyJSON)
	if err != nil {
		return fmt.Errorf("update document state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// List retrieves documents matching params, newest first.
func (r *DocumentRepository) List(ctx context.Context, params domain.ListDocumentsParams) ([]domain.Document, error) {
	params.Normalize()

	query := `SELECT ` + documentColumns + ` FROM documents WHERE 1=1`
	args := []interface{}{}

	if params.OwnerID != nil {
		args = append(args, *params.OwnerID)
		query += ` AND owner_id = $` + strconv.Itoa(len(args))
	}
	if params.CurrentOfficeID != nil {
		args = append(args, *params.CurrentOfficeID)
		query += ` AND current_office_id = $` + strconv.Itoa(len(args))
	}
	if params.Status != nil {
		args = append(args, *params.Status)
		query += ` AND current_status = $` + strconv.Itoa(len(args))
	}

	args = append(args, params.Limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}
