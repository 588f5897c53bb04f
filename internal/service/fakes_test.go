package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"docroute-api/internal/domain"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/repo"

	"github.com/jackc/pgx/v5"
)

func testLogger() *logger.Logger {
	log, err := logger.New("docroute-api-test", "error")
	if err != nil {
		panic(err)
	}
	return log
}

// fakeProfileStore is an in-memory ProfileStore.
type fakeProfileStore struct {
	mu            sync.Mutex
	profiles      map[string]*domain.Profile
	updateRoleErr error
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[string]*domain.Profile)}
}

func (f *fakeProfileStore) put(p domain.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.profiles[p.UID] = &cp
}

func (f *fakeProfileStore) Get(ctx context.Context, uid string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[uid]
	if !ok {
		return nil, repo.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfileStore) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repo.ErrProfileNotFound
}

func (f *fakeProfileStore) Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.profiles[p.UID]; ok {
		existing.Email = p.Email
		existing.DisplayName = p.DisplayName
		cp := *existing
		return &cp, nil
	}
	cp := *p
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	f.profiles[p.UID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeProfileStore) UpdateRole(ctx context.Context, uid string, role domain.Role, isRoot bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateRoleErr != nil {
		return f.updateRoleErr
	}
	p, ok := f.profiles[uid]
	if !ok {
		return repo.ErrProfileNotFound
	}
	p.Role = role
	p.IsRoot = isRoot
	return nil
}

func (f *fakeProfileStore) UpdateStatus(ctx context.Context, uid string, status domain.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[uid]
	if !ok {
		return repo.ErrProfileNotFound
	}
	p.Status = status
	return nil
}

func (f *fakeProfileStore) UpdateOffice(ctx context.Context, uid string, officeID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[uid]
	if !ok {
		return repo.ErrProfileNotFound
	}
	p.OfficeID = officeID
	return nil
}

func (f *fakeProfileStore) List(ctx context.Context, limit int) ([]domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Profile
	for _, p := range f.profiles {
		out = append(out, *p)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeAuditSink records appended entries.
type fakeAuditSink struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (f *fakeAuditSink) Append(ctx context.Context, entry *domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditSink) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeAuditSink) last() *domain.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return nil
	}
	e := f.entries[len(f.entries)-1]
	return &e
}

// fakeOfficeStore is an in-memory office directory.
type fakeOfficeStore struct {
	mu       sync.Mutex
	offices  map[string]*domain.Office
	inFlight map[string]int64
}

func newFakeOfficeStore() *fakeOfficeStore {
	return &fakeOfficeStore{
		offices:  make(map[string]*domain.Office),
		inFlight: make(map[string]int64),
	}
}

func (f *fakeOfficeStore) put(o domain.Office) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := o
	f.offices[o.ID] = &cp
}

func (f *fakeOfficeStore) Create(ctx context.Context, o *domain.Office) (*domain.Office, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.offices {
		if existing.Name == o.Name && existing.Status == domain.OfficeStatusActive {
			return nil, repo.ErrOfficeNameTaken
		}
	}
	cp := *o
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	f.offices[o.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeOfficeStore) Get(ctx context.Context, officeID string) (*domain.Office, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offices[officeID]
	if !ok {
		return nil, repo.ErrOfficeNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOfficeStore) List(ctx context.Context, includeArchived bool) ([]domain.Office, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Office
	for _, o := range f.offices {
		if !includeArchived && o.Status != domain.OfficeStatusActive {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOfficeStore) Archive(ctx context.Context, officeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offices[officeID]
	if !ok {
		return repo.ErrOfficeNotFound
	}
	o.Status = domain.OfficeStatusArchived
	return nil
}

func (f *fakeOfficeStore) CountInFlightDocuments(ctx context.Context, officeID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight[officeID], nil
}

// fakeTx satisfies pgx.Tx for the decision flow. Only Commit and Rollback are
// exercised; everything else panics through the embedded nil interface.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// fakeDocumentStore is an in-memory DocumentStore.
type fakeDocumentStore struct {
	mu     sync.Mutex
	docs   map[string]*domain.Document
	lastTx *fakeTx
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[string]*domain.Document)}
}

func (f *fakeDocumentStore) put(d domain.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := d
	f.docs[d.ID] = &cp
}

func (f *fakeDocumentStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	f.lastTx = &fakeTx{}
	return f.lastTx, nil
}

func (f *fakeDocumentStore) Create(ctx context.Context, d *domain.Document) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	f.docs[d.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeDocumentStore) Get(ctx context.Context, docID string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[docID]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocumentStore) GetForUpdate(ctx context.Context, tx pgx.Tx, docID string) (*domain.Document, error) {
	return f.Get(ctx, docID)
}

func (f *fakeDocumentStore) UpdateState(ctx context.Context, tx pgx.Tx, d *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[d.ID]; !ok {
		return domain.ErrDocumentNotFound
	}
	cp := *d
	f.docs[d.ID] = &cp
	return nil
}

func (f *fakeDocumentStore) List(ctx context.Context, params domain.ListDocumentsParams) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, d := range f.docs {
		if params.OwnerID != nil && d.OwnerID != *params.OwnerID {
			continue
		}
		if params.CurrentOfficeID != nil && d.CurrentOfficeID != *params.CurrentOfficeID {
			continue
		}
		if params.Status != nil && d.CurrentStatus != *params.Status {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

// failingClaimsStore rejects writes, for dual-write failure tests.
type failingClaimsStore struct{}

func (failingClaimsStore) Get(ctx context.Context, uid string) (domain.Claims, error) {
	return domain.Claims{}, errors.New("claims store unavailable")
}

func (failingClaimsStore) Set(ctx context.Context, uid string, claims domain.Claims) error {
	return errors.New("claims store unavailable")
}
