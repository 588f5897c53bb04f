package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DocumentStatus represents a routing state, both per history entry and as the
// cached document-level projection (native PostgreSQL ENUM).
type DocumentStatus string

const (
	DocumentStatusDraft          DocumentStatus = "draft"
	DocumentStatusPendingTransit DocumentStatus = "pending_transit"
	DocumentStatusInTransit      DocumentStatus = "in_transit"
	DocumentStatusSigned         DocumentStatus = "signed"
	DocumentStatusCompleted      DocumentStatus = "completed"
	DocumentStatusRejected       DocumentStatus = "rejected"
)

// IsValid checks if the status is one of the defined values.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusPendingTransit, DocumentStatusInTransit,
		DocumentStatusSigned, DocumentStatusCompleted, DocumentStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether a cached document status admits no further
// transitions.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusRejected
}

// Scan implements sql.Scanner for reading the ENUM from PostgreSQL.
func (s *DocumentStatus) Scan(src interface{}) error {
	if src == nil {
		*s = DocumentStatusDraft
		return nil
	}

	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into DocumentStatus", src)
	}

	*s = DocumentStatus(str)
	if !s.IsValid() {
		return fmt.Errorf("invalid DocumentStatus value: %s", str)
	}
	return nil
}

// Value implements driver.Valuer for writing the ENUM to PostgreSQL.
func (s DocumentStatus) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid DocumentStatus value: %s", string(s))
	}
	return string(s), nil
}

// Decision is the outcome an office records on the active step.
type Decision string

const (
	DecisionSigned   Decision = "signed"
	DecisionRejected Decision = "rejected"
)

// IsValid checks if the decision is one of the defined values.
func (d Decision) IsValid() bool {
	return d == DecisionSigned || d == DecisionRejected
}

// SignedBy identifies who acted on a step.
type SignedBy struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// DocumentLog is one history entry: entry 0 is always the draft at the owner's
// office, each later entry is one routing step requested at creation. The
// history is append-only and its entries are only ever mutated by a status
// transition, never reordered or removed.
type DocumentLog struct {
	Timestamp     time.Time      `json:"timestamp"`
	Status        DocumentStatus `json:"status"`
	OfficeID      string         `json:"officeId"`
	OfficeName    string         `json:"officeName,omitempty"`
	RecipientRole string         `json:"recipientRole,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	SignedBy      *SignedBy      `json:"signedBy,omitempty"`
}

// WorkflowStep is one office + recipient-role pair a document must pass
// through.
type WorkflowStep struct {
	OfficeID      string
	OfficeName    string
	RecipientRole string
}

// Notes written into history entries. Fixed strings so the client can key off
// them.
const (
	NotesCreated   = "Document created."
	NotesForwarded = "Forwarded for signature."
	NotesQueued    = "Queued for signature."
)

// Document routes through its history's offices for sequential sign-off.
//
// CurrentStatus and CurrentOfficeID are a cached projection of the history and
// must be recomputed after every transition, never set independently.
// ActiveIndex points at the single in_transit entry, or -1 once the document
// reaches a terminal state.
type Document struct {
	ID              string         `json:"id" db:"id"`
	Title           string         `json:"title" db:"title"`
	OwnerID         string         `json:"ownerId" db:"owner_id"`
	CurrentStatus   DocumentStatus `json:"currentStatus" db:"current_status"`
	CurrentOfficeID string         `json:"currentOfficeId" db:"current_office_id"`
	ActiveIndex     int            `json:"activeIndex" db:"active_index"`
	History         []DocumentLog  `json:"history" db:"history"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time      `json:"updatedAt" db:"updated_at"`
}

// Workflow transition failures.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrNoActiveStep     = errors.New("no in-transit step for this office")
)

// NewDocument builds a document with its full history: entry 0 is the draft at
// the owner's office, the first step starts in_transit, the rest queue as
// pending_transit. Step count must be >= 1, so the cached status is always
// in_transit straight out of creation.
func NewDocument(id, title, ownerID, ownerOfficeID, ownerOfficeName string, steps []WorkflowStep, now time.Time) (*Document, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("workflow needs at least one step")
	}

	history := make([]DocumentLog, 0, len(steps)+1)
	history = append(history, DocumentLog{
		Timestamp:  now,
		Status:     DocumentStatusDraft,
		OfficeID:   ownerOfficeID,
		OfficeName: ownerOfficeName,
		Notes:      NotesCreated,
	})

	for i, step := range steps {
		entry := DocumentLog{
			Timestamp:     now,
			Status:        DocumentStatusPendingTransit,
			OfficeID:      step.OfficeID,
			OfficeName:    step.OfficeName,
			RecipientRole: step.RecipientRole,
			Notes:         NotesQueued,
		}
		if i == 0 {
			entry.Status = DocumentStatusInTransit
			entry.Notes = NotesForwarded
		}
		history = append(history, entry)
	}

	doc := &Document{
		ID:        id,
		Title:     title,
		OwnerID:   ownerID,
		History:   history,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.RecomputeProjection()
	return doc, nil
}

// ActiveStepFor returns the index of the in_transit entry belonging to the
// given office, if any. There is at most one in_transit entry overall.
func (d *Document) ActiveStepFor(officeID string) (int, bool) {
	for i, entry := range d.History {
		if entry.Status == DocumentStatusInTransit && entry.OfficeID == officeID {
			return i, true
		}
	}
	return -1, false
}

// InTransitCount counts in_transit history entries. Always 0 or 1.
func (d *Document) InTransitCount() int {
	count := 0
	for _, entry := range d.History {
		if entry.Status == DocumentStatusInTransit {
			count++
		}
	}
	return count
}

// ApplyDecision signs or rejects the active step owned by officeID.
//
// On rejection the step is stamped and the whole document halts: the cached
// status becomes rejected, the office stays where rejection occurred, and any
// remaining pending_transit entries are frozen forever.
//
// On signature the step is stamped and the next pending_transit entry, if one
// exists, activates; otherwise the document completes at the final office.
//
// Calling on a terminal document, or from an office with no active step, fails
// with ErrNoActiveStep.
func (d *Document) ApplyDecision(officeID string, decision Decision, signer SignedBy, now time.Time) error {
	if !decision.IsValid() {
		return fmt.Errorf("invalid decision %q", decision)
	}

	idx, ok := d.ActiveStepFor(officeID)
	if !ok {
		return ErrNoActiveStep
	}

	entry := &d.History[idx]
	entry.Timestamp = now
	entry.SignedBy = &SignedBy{UID: signer.UID, Name: signer.Name}

	switch decision {
	case DecisionSigned:
		entry.Status = DocumentStatusSigned
		entry.Notes = fmt.Sprintf("Signed by %s.", signer.Name)

		next := idx + 1
		if next < len(d.History) {
			d.History[next].Status = DocumentStatusInTransit
			d.History[next].Timestamp = now
			d.History[next].Notes = NotesForwarded
		}
	case DecisionRejected:
		entry.Status = DocumentStatusRejected
		entry.Notes = fmt.Sprintf("Rejected by %s.", signer.Name)
	}

	d.UpdatedAt = now
	d.RecomputeProjection()
	return nil
}

// RecomputeProjection rebuilds the cached CurrentStatus, CurrentOfficeID and
// ActiveIndex fields from the history. This is the only writer of those
// fields.
func (d *Document) RecomputeProjection() {
	// A rejected entry halts the whole document where it happened.
	for _, entry := range d.History {
		if entry.Status == DocumentStatusRejected {
			d.CurrentStatus = DocumentStatusRejected
			d.CurrentOfficeID = entry.OfficeID
			d.ActiveIndex = -1
			return
		}
	}

	for i, entry := range d.History {
		if entry.Status == DocumentStatusInTransit {
			d.CurrentStatus = DocumentStatusInTransit
			d.CurrentOfficeID = entry.OfficeID
			d.ActiveIndex = i
			return
		}
	}

	// No active or rejected step left: every routing step signed.
	last := d.History[len(d.History)-1]
	d.CurrentStatus = DocumentStatusCompleted
	d.CurrentOfficeID = last.OfficeID
	d.ActiveIndex = -1
}

// CreateDocumentRequest is the DTO for workflow creation.
type CreateDocumentRequest struct {
	Title          string                `json:"title" validate:"required,min=5"`
	UserID         string                `json:"userId" validate:"required"`
	UserOfficeID   string                `json:"userOfficeId" validate:"required"`
	UserOfficeName string                `json:"userOfficeName" validate:"required"`
	Workflow       []WorkflowStepRequest `json:"workflow" validate:"required,min=1,dive"`
}

// WorkflowStepRequest is one requested routing step.
type WorkflowStepRequest struct {
	DestinationOfficeID   string `json:"destinationOfficeId" validate:"required"`
	DestinationOfficeName string `json:"destinationOfficeName" validate:"required"`
	RecipientRole         string `json:"recipientRole" validate:"required"`
}

// Validate sanitizes the title (trim whitespace) before validation.
func (r *CreateDocumentRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)

	validate := validator.New()
	return validate.Struct(r)
}

// Steps converts the request's workflow into domain steps.
func (r *CreateDocumentRequest) Steps() []WorkflowStep {
	steps := make([]WorkflowStep, 0, len(r.Workflow))
	for _, s := range r.Workflow {
		steps = append(steps, WorkflowStep{
			OfficeID:      s.DestinationOfficeID,
			OfficeName:    s.DestinationOfficeName,
			RecipientRole: s.RecipientRole,
		})
	}
	return steps
}

// DecideDocumentRequest is the DTO for signing or rejecting the active step.
type DecideDocumentRequest struct {
	NewStatus       Decision `json:"newStatus" validate:"required,oneof=signed rejected"`
	UserID          string   `json:"userId" validate:"required"`
	UserDisplayName string   `json:"userDisplayName" validate:"required"`
	UserOfficeID    string   `json:"userOfficeId" validate:"required"`
}

// Validate validates the DecideDocumentRequest.
func (r *DecideDocumentRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ListDocumentsParams filters document listings.
type ListDocumentsParams struct {
	OwnerID         *string
	CurrentOfficeID *string
	Status          *DocumentStatus
	Limit           int
}

// Normalize applies listing defaults.
func (p *ListDocumentsParams) Normalize() {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 50
	}
}
