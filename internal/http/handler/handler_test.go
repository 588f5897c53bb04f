package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docroute-api/internal/auth"
	"docroute-api/internal/claims"
	"docroute-api/internal/domain"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	log, err := logger.New("docroute-api-test", "error")
	if err != nil {
		panic(err)
	}
	return log
}

type stubProfiles struct {
	profiles map[string]*domain.Profile
}

func newStubProfiles() *stubProfiles {
	return &stubProfiles{profiles: make(map[string]*domain.Profile)}
}

func (s *stubProfiles) put(p domain.Profile) {
	s.profiles[p.UID] = &p
}

func (s *stubProfiles) Get(ctx context.Context, uid string) (*domain.Profile, error) {
	p, ok := s.profiles[uid]
	if !ok {
		return nil, service.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubProfiles) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, service.ErrProfileNotFound
}

func (s *stubProfiles) Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	if existing, ok := s.profiles[p.UID]; ok {
		existing.Email = p.Email
		existing.DisplayName = p.DisplayName
		cp := *existing
		return &cp, nil
	}
	cp := *p
	s.profiles[p.UID] = &cp
	out := cp
	return &out, nil
}

func (s *stubProfiles) UpdateRole(ctx context.Context, uid string, role domain.Role, isRoot bool) error {
	p, ok := s.profiles[uid]
	if !ok {
		return service.ErrProfileNotFound
	}
	p.Role = role
	p.IsRoot = isRoot
	return nil
}

func (s *stubProfiles) UpdateStatus(ctx context.Context, uid string, status domain.UserStatus) error {
	p, ok := s.profiles[uid]
	if !ok {
		return service.ErrProfileNotFound
	}
	p.Status = status
	return nil
}

func (s *stubProfiles) UpdateOffice(ctx context.Context, uid string, officeID *string) error {
	p, ok := s.profiles[uid]
	if !ok {
		return service.ErrProfileNotFound
	}
	p.OfficeID = officeID
	return nil
}

func (s *stubProfiles) List(ctx context.Context, limit int) ([]domain.Profile, error) {
	var out []domain.Profile
	for _, p := range s.profiles {
		out = append(out, *p)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubAudit struct {
	entries []domain.AuditEntry
}

func (s *stubAudit) Append(ctx context.Context, entry *domain.AuditEntry) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubAudit) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit > 0 && limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

type stubOffices struct {
	offices  map[string]*domain.Office
	inFlight map[string]int64
}

func newStubOffices() *stubOffices {
	return &stubOffices{offices: make(map[string]*domain.Office), inFlight: make(map[string]int64)}
}

func (s *stubOffices) put(o domain.Office) {
	s.offices[o.ID] = &o
}

func (s *stubOffices) Create(ctx context.Context, o *domain.Office) (*domain.Office, error) {
	for _, existing := range s.offices {
		if strings.EqualFold(existing.Name, o.Name) && existing.Status == domain.OfficeStatusActive {
			return nil, service.ErrOfficeNameTaken
		}
	}
	cp := *o
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	s.offices[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *stubOffices) Get(ctx context.Context, officeID string) (*domain.Office, error) {
	o, ok := s.offices[officeID]
	if !ok {
		return nil, service.ErrOfficeNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *stubOffices) List(ctx context.Context, includeArchived bool) ([]domain.Office, error) {
	var out []domain.Office
	for _, o := range s.offices {
		if !includeArchived && o.Status != domain.OfficeStatusActive {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *stubOffices) Archive(ctx context.Context, officeID string) error {
	o, ok := s.offices[officeID]
	if !ok {
		return service.ErrOfficeNotFound
	}
	o.Status = domain.OfficeStatusArchived
	return nil
}

func (s *stubOffices) CountInFlightDocuments(ctx context.Context, officeID string) (int64, error) {
	return s.inFlight[officeID], nil
}

type stubTx struct {
	pgx.Tx
}

func (t *stubTx) Commit(ctx context.Context) error   { return nil }
func (t *stubTx) Rollback(ctx context.Context) error { return nil }

type stubDocs struct {
	docs map[string]*domain.Document
}

func newStubDocs() *stubDocs {
	return &stubDocs{docs: make(map[string]*domain.Document)}
}

func (s *stubDocs) put(d domain.Document) {
	s.docs[d.ID] = &d
}

func (s *stubDocs) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return &stubTx{}, nil
}

func (s *stubDocs) Create(ctx context.Context, d *domain.Document) (*domain.Document, error) {
	cp := *d
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	s.docs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *stubDocs) Get(ctx context.Context, docID string) (*domain.Document, error) {
	d, ok := s.docs[docID]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *stubDocs) GetForUpdate(ctx context.Context, tx pgx.Tx, docID string) (*domain.Document, error) {
	return s.Get(ctx, docID)
}

func (s *stubDocs) UpdateState(ctx context.Context, tx pgx.Tx, d *domain.Document) error {
	if _, ok := s.docs[d.ID]; !ok {
		return domain.ErrDocumentNotFound
	}
	cp := *d
	s.docs[d.ID] = &cp
	return nil
}

func (s *stubDocs) List(ctx context.Context, params domain.ListDocumentsParams) ([]domain.Document, error) {
	var out []domain.Document
	for _, d := range s.docs {
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

func userAuthCtx(uid, email string, role domain.Role, isRoot bool) *auth.AuthContext {
	return &auth.AuthContext{
		ActorID:    uid,
		Email:      email,
		Role:       role,
		IsRoot:     isRoot,
		ActorType:  "user",
		AuthMethod: "jwt",
	}
}

func s2sAuthCtx(client string) *auth.AuthContext {
	return &auth.AuthContext{
		ActorID:    "idp-webhook",
		ActorType:  "service",
		AuthMethod: "s2s",
		Client:     client,
	}
}

func doRequest(t *testing.T, router chi.Router, method, path string, body interface{}, authCtx *auth.AuthContext) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	ctx := logger.SetLoggerInContext(req.Context(), testLogger())
	if authCtx != nil {
		ctx = auth.SetAuthContextForTesting(ctx, authCtx)
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		OK    bool `json:"ok"`
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.False(t, envelope.OK)
	return envelope.Error.Code
}

const testRootEmail = "root@example.test"

func newUserRouter(t *testing.T) (chi.Router, *stubProfiles, *claims.MemoryStore) {
	t.Helper()

	profiles := newStubProfiles()
	claimsStore := claims.NewMemoryStore()
	roles := service.NewRoleService(profiles, claimsStore, &stubAudit{}, testRootEmail, testLogger())
	h := NewUserHandler(roles)

	r := chi.NewRouter()
	r.Get("/v1/users", h.List)
	r.Get("/v1/users/me", h.Me)
	r.Post("/v1/roles:assign", h.AssignRole)
	r.Post("/v1/roles:ensure-root", h.EnsureRootClaims)
	r.Post("/v1/users/{userId}/status", h.UpdateStatus)
	return r, profiles, claimsStore
}

func TestUserHandler_Me(t *testing.T) {
	router, profiles, _ := newUserRouter(t)
	profiles.put(domain.Profile{UID: "u-1", Email: "u1@example.test", Role: domain.RoleUser, Status: domain.UserStatusApproved})

	rec := doRequest(t, router, http.MethodGet, "/v1/users/me", nil, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	require.Equal(t, http.StatusOK, rec.Code)

	var profile domain.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "u-1", profile.UID)
	assert.Equal(t, domain.RoleUser, profile.Role)
}

func TestUserHandler_Me_Unauthenticated(t *testing.T) {
	router, _, _ := newUserRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/users/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserHandler_Me_ProfileMissing(t *testing.T) {
	router, _, _ := newUserRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/users/me", nil, userAuthCtx("ghost", "ghost@example.test", domain.RoleUser, false))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorCode(t, rec))
}

func TestUserHandler_List_AdminOnly(t *testing.T) {
	router, profiles, _ := newUserRouter(t)
	profiles.put(domain.Profile{UID: "u-1", Email: "u1@example.test", Role: domain.RoleUser})
	profiles.put(domain.Profile{UID: "u-2", Email: "u2@example.test", Role: domain.RoleCoadmin})

	rec := doRequest(t, router, http.MethodGet, "/v1/users", nil, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeErrorCode(t, rec))

	rec = doRequest(t, router, http.MethodGet, "/v1/users", nil, userAuthCtx("adm", "adm@example.test", domain.RoleAdmin, false))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []domain.Profile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 2)
}

func TestUserHandler_List_EmailFilter(t *testing.T) {
	router, profiles, _ := newUserRouter(t)
	profiles.put(domain.Profile{UID: "u-1", Email: "u1@example.test", Role: domain.RoleUser})
	profiles.put(domain.Profile{UID: "u-2", Email: "u2@example.test", Role: domain.RoleUser})

	rec := doRequest(t, router, http.MethodGet, "/v1/users?email=u2@example.test", nil, userAuthCtx("adm", "adm@example.test", domain.RoleAdmin, false))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []domain.Profile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "u-2", envelope.Data[0].UID)
}

func TestUserHandler_List_BadLimit(t *testing.T) {
	router, _, _ := newUserRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/users?limit=zero", nil, userAuthCtx("adm", "adm@example.test", domain.RoleAdmin, false))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserHandler_AssignRole(t *testing.T) {
	router, profiles, claimsStore := newUserRouter(t)
	profiles.put(domain.Profile{UID: "u-2", Email: "u2@example.test", Role: domain.RoleUser, Status: domain.UserStatusApproved})

	body := map[string]string{"targetUid": "u-2", "role": "coadmin"}
	rec := doRequest(t, router, http.MethodPost, "/v1/roles:assign", body, userAuthCtx("admin-1", "admin@example.test", domain.RoleAdmin, false))
	require.Equal(t, http.StatusOK, rec.Code)

	var profile domain.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, domain.RoleCoadmin, profile.Role)

	stored, err := claimsStore.Get(context.Background(), "u-2")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCoadmin, stored.Role)
}

func TestUserHandler_AssignRole_AdminRequiresRoot(t *testing.T) {
	router, profiles, _ := newUserRouter(t)
	profiles.put(domain.Profile{UID: "u-2", Email: "u2@example.test", Role: domain.RoleUser, Status: domain.UserStatusApproved})

	body := map[string]string{"targetUid": "u-2", "role": "admin"}
	rec := doRequest(t, router, http.MethodPost, "/v1/roles:assign", body, userAuthCtx("admin-1", "admin@example.test", domain.RoleAdmin, false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PERMISSION_DENIED", decodeErrorCode(t, rec))
}

func TestUserHandler_AssignRole_RootTargetImmutable(t *testing.T) {
	router, profiles, _ := newUserRouter(t)
	profiles.put(domain.Profile{UID: "root-1", Email: testRootEmail, Role: domain.RoleAdmin, IsRoot: true, Status: domain.UserStatusApproved})

	body := map[string]string{"targetUid": "root-1", "role": "user"}
	rec := doRequest(t, router, http.MethodPost, "/v1/roles:assign", body, userAuthCtx("root-1", testRootEmail, domain.RoleAdmin, true))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ROOT_IMMUTABLE", decodeErrorCode(t, rec))
}

func TestUserHandler_AssignRole_InvalidBody(t *testing.T) {
	router, _, _ := newUserRouter(t)

	body := map[string]string{"targetUid": "u-2", "role": "superuser"}
	rec := doRequest(t, router, http.MethodPost, "/v1/roles:assign", body, userAuthCtx("admin-1", "admin@example.test", domain.RoleAdmin, false))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, rec))
}

func TestUserHandler_UpdateStatus(t *testing.T) {
	router, profiles, _ := newUserRouter(t)
	profiles.put(domain.Profile{UID: "u-3", Email: "u3@example.test", Role: domain.RoleUser, Status: domain.UserStatusPending})

	body := map[string]string{"status": "approved"}
	rec := doRequest(t, router, http.MethodPost, "/v1/users/u-3/status", body, userAuthCtx("admin-1", "admin@example.test", domain.RoleAdmin, false))
	require.Equal(t, http.StatusOK, rec.Code)

	var profile domain.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, domain.UserStatusApproved, profile.Status)
}

func TestUserHandler_UpdateStatus_NonAdmin(t *testing.T) {
	router, profiles, _ := newUserRouter(t)
	profiles.put(domain.Profile{UID: "u-3", Email: "u3@example.test", Role: domain.RoleUser, Status: domain.UserStatusPending})

	body := map[string]string{"status": "approved"}
	rec := doRequest(t, router, http.MethodPost, "/v1/users/u-3/status", body, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeErrorCode(t, rec))
}

func newDocumentRouter(t *testing.T) (chi.Router, *stubDocs, *stubOffices) {
	t.Helper()

	docs := newStubDocs()
	offices := newStubOffices()
	documents := service.NewDocumentService(docs, offices, &stubAudit{}, testLogger())
	h := NewDocumentHandler(documents)

	r := chi.NewRouter()
	r.Post("/v1/documents", h.Create)
	r.Get("/v1/documents", h.List)
	r.Get("/v1/documents/{docId}", h.Get)
	r.Post("/v1/documents/{docId}:decide", h.Decide)
	return r, docs, offices
}

func TestDocumentHandler_Create(t *testing.T) {
	router, _, offices := newDocumentRouter(t)
	offices.put(domain.Office{ID: "office-b", Name: "Office B", Status: domain.OfficeStatusActive})

	body := map[string]interface{}{
		"title":          "Budget approval memo",
		"userId":         "u-1",
		"userOfficeId":   "office-a",
		"userOfficeName": "Office A",
		"workflow": []map[string]string{
			{"destinationOfficeId": "office-b", "destinationOfficeName": "Office B", "recipientRole": "Head"},
		},
	}
	rec := doRequest(t, router, http.MethodPost, "/v1/documents", body, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc domain.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, domain.DocumentStatusInTransit, doc.CurrentStatus)
	assert.Equal(t, "office-b", doc.CurrentOfficeID)
}

func TestDocumentHandler_Create_ActorMismatch(t *testing.T) {
	router, _, offices := newDocumentRouter(t)
	offices.put(domain.Office{ID: "office-b", Name: "Office B", Status: domain.OfficeStatusActive})

	body := map[string]interface{}{
		"title":          "Budget approval memo",
		"userId":         "someone-else",
		"userOfficeId":   "office-a",
		"userOfficeName": "Office A",
		"workflow": []map[string]string{
			{"destinationOfficeId": "office-b", "destinationOfficeName": "Office B", "recipientRole": "Head"},
		},
	}
	rec := doRequest(t, router, http.MethodPost, "/v1/documents", body, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACTOR_MISMATCH", decodeErrorCode(t, rec))
}

func TestDocumentHandler_Create_ShortTitle(t *testing.T) {
	router, _, _ := newDocumentRouter(t)

	body := map[string]interface{}{
		"title":          "memo",
		"userId":         "u-1",
		"userOfficeId":   "office-a",
		"userOfficeName": "Office A",
		"workflow": []map[string]string{
			{"destinationOfficeId": "office-b", "destinationOfficeName": "Office B", "recipientRole": "Head"},
		},
	}
	rec := doRequest(t, router, http.MethodPost, "/v1/documents", body, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, rec))
}

func TestDocumentHandler_Get_NotFound(t *testing.T) {
	router, _, _ := newDocumentRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/documents/missing", nil, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorCode(t, rec))
}

func TestDocumentHandler_Decide_Sign(t *testing.T) {
	router, docs, _ := newDocumentRouter(t)

	doc, err := domain.NewDocument(
		"doc-1",
		"Budget approval memo",
		"owner-1",
		"office-a", "Office A",
		[]domain.WorkflowStep{
			{OfficeID: "office-b", OfficeName: "Office B", RecipientRole: "Head"},
		},
		time.Now().UTC(),
	)
	require.NoError(t, err)
	docs.put(*doc)

	body := map[string]string{
		"newStatus":       "signed",
		"userId":          "signer-1",
		"userDisplayName": "Signer One",
		"userOfficeId":    "office-b",
	}
	rec := doRequest(t, router, http.MethodPost, "/v1/documents/doc-1:decide", body, userAuthCtx("signer-1", "s1@example.test", domain.RoleUser, false))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated domain.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, domain.DocumentStatusCompleted, updated.CurrentStatus)
}

func TestDocumentHandler_Decide_WrongOffice(t *testing.T) {
	router, docs, _ := newDocumentRouter(t)

	doc, err := domain.NewDocument(
		"doc-1",
		"Budget approval memo",
		"owner-1",
		"office-a", "Office A",
		[]domain.WorkflowStep{
			{OfficeID: "office-b", OfficeName: "Office B", RecipientRole: "Head"},
		},
		time.Now().UTC(),
	)
	require.NoError(t, err)
	docs.put(*doc)

	body := map[string]string{
		"newStatus":       "signed",
		"userId":          "signer-1",
		"userDisplayName": "Signer One",
		"userOfficeId":    "office-z",
	}
	rec := doRequest(t, router, http.MethodPost, "/v1/documents/doc-1:decide", body, userAuthCtx("signer-1", "s1@example.test", domain.RoleUser, false))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_ACTIVE_STEP", decodeErrorCode(t, rec))
}

func TestDocumentHandler_List_Filters(t *testing.T) {
	router, docs, _ := newDocumentRouter(t)

	for i := 0; i < 3; i++ {
		doc, err := domain.NewDocument(
			fmt.Sprintf("doc-%d", i),
			"Budget approval memo",
			"owner-1",
			"office-a", "Office A",
			[]domain.WorkflowStep{
				{OfficeID: "office-b", OfficeName: "Office B", RecipientRole: "Head"},
			},
			time.Now().UTC(),
		)
		require.NoError(t, err)
		docs.put(*doc)
	}

	rec := doRequest(t, router, http.MethodGet, "/v1/documents?ownerId=owner-1", nil, userAuthCtx("owner-1", "o1@example.test", domain.RoleUser, false))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []domain.Document `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 3)
}

func TestDocumentHandler_List_BadStatus(t *testing.T) {
	router, _, _ := newDocumentRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/documents?status=lost", nil, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STATUS", decodeErrorCode(t, rec))
}

func newOfficeRouter(t *testing.T) (chi.Router, *stubOffices) {
	t.Helper()

	offices := newStubOffices()
	svc := service.NewOfficeService(offices, &stubAudit{}, testLogger())
	h := NewOfficeHandler(svc)

	r := chi.NewRouter()
	r.Post("/v1/offices", h.Create)
	r.Get("/v1/offices", h.List)
	r.Post("/v1/offices/{officeId}:archive", h.Archive)
	return r, offices
}

func TestOfficeHandler_Create(t *testing.T) {
	router, _ := newOfficeRouter(t)

	body := map[string]string{"name": "Records Office"}
	rec := doRequest(t, router, http.MethodPost, "/v1/offices", body, userAuthCtx("admin-1", "admin@example.test", domain.RoleAdmin, false))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var office domain.Office
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &office))
	assert.Equal(t, "Records Office", office.Name)
	assert.Equal(t, domain.OfficeStatusActive, office.Status)
}

func TestOfficeHandler_Create_NonAdmin(t *testing.T) {
	router, _ := newOfficeRouter(t)

	body := map[string]string{"name": "Records Office"}
	rec := doRequest(t, router, http.MethodPost, "/v1/offices", body, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOfficeHandler_Create_DuplicateName(t *testing.T) {
	router, offices := newOfficeRouter(t)
	offices.put(domain.Office{ID: "office-1", Name: "Records Office", Status: domain.OfficeStatusActive})

	body := map[string]string{"name": "Records Office"}
	rec := doRequest(t, router, http.MethodPost, "/v1/offices", body, userAuthCtx("admin-1", "admin@example.test", domain.RoleAdmin, false))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NAME_TAKEN", decodeErrorCode(t, rec))
}

func TestOfficeHandler_Archive_InUse(t *testing.T) {
	router, offices := newOfficeRouter(t)
	offices.put(domain.Office{ID: "office-1", Name: "Records Office", Status: domain.OfficeStatusActive})
	offices.inFlight["office-1"] = 2

	rec := doRequest(t, router, http.MethodPost, "/v1/offices/office-1:archive", nil, userAuthCtx("admin-1", "admin@example.test", domain.RoleAdmin, false))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "OFFICE_IN_USE", decodeErrorCode(t, rec))
}

func TestOfficeHandler_List(t *testing.T) {
	router, offices := newOfficeRouter(t)
	offices.put(domain.Office{ID: "office-1", Name: "Records Office", Status: domain.OfficeStatusActive})
	offices.put(domain.Office{ID: "office-2", Name: "Old Office", Status: domain.OfficeStatusArchived})

	rec := doRequest(t, router, http.MethodGet, "/v1/offices", nil, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []domain.Office `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 1)

	rec = doRequest(t, router, http.MethodGet, "/v1/offices?includeArchived=true", nil, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 2)
}

func TestAuditHandler_List_AdminOnly(t *testing.T) {
	sink := &stubAudit{entries: []domain.AuditEntry{{ID: "a-1", Action: "role.assign", Status: domain.AuditStatusSuccess}}}
	svc := service.NewAuditService(sink)
	h := NewAuditHandler(svc)

	r := chi.NewRouter()
	r.Get("/v1/audit-logs", h.List)

	rec := doRequest(t, r, http.MethodGet, "/v1/audit-logs", nil, userAuthCtx("admin-1", "admin@example.test", domain.RoleAdmin, false))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []domain.AuditEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "role.assign", envelope.Data[0].Action)

	rec = doRequest(t, r, http.MethodGet, "/v1/audit-logs", nil, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIdentityHandler_Provision(t *testing.T) {
	profiles := newStubProfiles()
	claimsStore := claims.NewMemoryStore()
	roles := service.NewRoleService(profiles, claimsStore, &stubAudit{}, testRootEmail, testLogger())
	h := NewIdentityHandler(roles)

	r := chi.NewRouter()
	r.Post("/internal/identities", h.Provision)

	body := map[string]string{"uid": "new-user", "email": "new@example.test", "displayName": "New User"}
	rec := doRequest(t, r, http.MethodPost, "/internal/identities", body, s2sAuthCtx("identity-provider"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var profile domain.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "new-user", profile.UID)
	assert.Equal(t, domain.RoleUser, profile.Role)
	assert.Equal(t, domain.UserStatusPending, profile.Status)
}

func TestIdentityHandler_Provision_RejectsUserTokens(t *testing.T) {
	profiles := newStubProfiles()
	roles := service.NewRoleService(profiles, claims.NewMemoryStore(), &stubAudit{}, testRootEmail, testLogger())
	h := NewIdentityHandler(roles)

	r := chi.NewRouter()
	r.Post("/internal/identities", h.Provision)

	body := map[string]string{"uid": "new-user", "email": "new@example.test"}
	rec := doRequest(t, r, http.MethodPost, "/internal/identities", body, userAuthCtx("u-1", "u1@example.test", domain.RoleAdmin, false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNotificationHandler_List(t *testing.T) {
	docs := newStubDocs()
	profiles := newStubProfiles()
	officeID := "office-b"
	profiles.put(domain.Profile{UID: "u-1", Email: "u1@example.test", Role: domain.RoleUser, Status: domain.UserStatusApproved, OfficeID: &officeID})

	doc, err := domain.NewDocument(
		"doc-in",
		"Budget approval memo",
		"owner-2",
		"office-a", "Office A",
		[]domain.WorkflowStep{
			{OfficeID: "office-b", OfficeName: "Office B", RecipientRole: "Head"},
		},
		time.Now().UTC(),
	)
	require.NoError(t, err)
	docs.put(*doc)

	svc := service.NewNotificationService(docs, profiles, testLogger())
	h := NewNotificationHandler(svc)

	r := chi.NewRouter()
	r.Get("/v1/notifications", h.List)

	rec := doRequest(t, r, http.MethodGet, "/v1/notifications", nil, userAuthCtx("u-1", "u1@example.test", domain.RoleUser, false))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Data []domain.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "doc-in", envelope.Data[0].Document.ID)
	assert.Equal(t, domain.NotificationDocumentReceived, envelope.Data[0].Type)
}
