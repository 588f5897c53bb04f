package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// OfficeStatus marks whether an office may receive new routing steps.
type OfficeStatus string

const (
	OfficeStatusActive   OfficeStatus = "active"
	OfficeStatusArchived OfficeStatus = "archived"
)

// IsValid checks if the status is one of the defined values.
func (s OfficeStatus) IsValid() bool {
	return s == OfficeStatusActive || s == OfficeStatusArchived
}

// Scan implements sql.Scanner for reading the ENUM from PostgreSQL.
func (s *OfficeStatus) Scan(src interface{}) error {
	if src == nil {
		*s = OfficeStatusActive
		return nil
	}

	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into OfficeStatus", src)
	}

	*s = OfficeStatus(str)
	if !s.IsValid() {
		return fmt.Errorf("invalid OfficeStatus value: %s", str)
	}
	return nil
}

// Value implements driver.Valuer for writing the ENUM to PostgreSQL.
func (s OfficeStatus) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid OfficeStatus value: %s", string(s))
	}
	return string(s), nil
}

// Office is a sign-off station documents route through. Offices are archived,
// never deleted, so historical routing steps keep resolving.
type Office struct {
	ID         string       `json:"id" db:"id"`
	Name       string       `json:"name" db:"name"`
	Visibility string       `json:"visibility" db:"visibility"`
	Status     OfficeStatus `json:"status" db:"status"`
	CreatedAt  time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time    `json:"updatedAt" db:"updated_at"`
}

// CreateOfficeRequest is the DTO for office creation.
type CreateOfficeRequest struct {
	Name       string `json:"name" validate:"required,min=3"`
	Visibility string `json:"visibility,omitempty" validate:"omitempty,oneof=public internal"`
}

// Validate sanitizes Name (trim whitespace) before validation.
func (r *CreateOfficeRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)

	validate := validator.New()
	return validate.Struct(r)
}
