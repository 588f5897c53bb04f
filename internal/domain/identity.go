package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Role represents a privilege level in the role hierarchy (native PostgreSQL ENUM).
// "root" is not a Role value: root is the reserved identity flagged by IsRoot,
// whose role field holds "admin".
type Role string

const (
	RoleUser    Role = "user"
	RoleCoadmin Role = "coadmin"
	RoleAdmin   Role = "admin"
)

// IsValid checks if the role is one of the assignable values.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleCoadmin, RoleAdmin:
		return true
	}
	return false
}

// String returns the string representation of the Role
func (r Role) String() string {
	return string(r)
}

// Scan implements sql.Scanner for reading the ENUM from PostgreSQL.
func (r *Role) Scan(src interface{}) error {
	if src == nil {
		*r = RoleUser // default
		return nil
	}

	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}

	*r = Role(str)
	if !r.IsValid() {
		return fmt.Errorf("invalid Role value: %s", str)
	}
	return nil
}

// Value implements driver.Valuer for writing the ENUM to PostgreSQL.
func (r Role) Value() (driver.Value, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid Role value: %s", string(r))
	}
	return string(r), nil
}

// UserStatus represents the approval state of an identity (native PostgreSQL ENUM).
// Deactivation is a status value, never a row deletion.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusApproved UserStatus = "approved"
	UserStatusRejected UserStatus = "rejected"
	UserStatusDisabled UserStatus = "disabled"
)

// IsValid checks if the status is one of the defined values.
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusPending, UserStatusApproved, UserStatusRejected, UserStatusDisabled:
		return true
	}
	return false
}

// Scan implements sql.Scanner for reading the ENUM from PostgreSQL.
func (s *UserStatus) Scan(src interface{}) error {
	if src == nil {
		*s = UserStatusPending // default
		return nil
	}

	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into UserStatus", src)
	}

	*s = UserStatus(str)
	if !s.IsValid() {
		return fmt.Errorf("invalid UserStatus value: %s", str)
	}
	return nil
}

// Value implements driver.Valuer for writing the ENUM to PostgreSQL.
func (s UserStatus) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid UserStatus value: %s", string(s))
	}
	return string(s), nil
}

// Profile is the mutable per-identity record held in the Profile Store.
// Role and IsRoot are mirrored from the Claims Store; claims are authoritative
// for role/isRoot, the profile is authoritative for status/office. The two may
// disagree transiently (dual write without a distributed transaction).
type Profile struct {
	UID         string     `json:"uid" db:"uid"`
	Email       string     `json:"email" db:"email"`
	DisplayName string     `json:"displayName" db:"display_name"`
	Role        Role       `json:"role" db:"role"`
	IsRoot      bool       `json:"isRoot" db:"is_root"`
	Status      UserStatus `json:"status" db:"status"`
	OfficeID    *string    `json:"officeId,omitempty" db:"office_id"`
	OfficeName  *string    `json:"officeName,omitempty" db:"office_name"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// Claims are the authenticated identity attributes issued by the external
// identity provider. They are inspected, never re-derived: the calling layer
// has already verified the token before these values reach a service.
type Claims struct {
	Role   Role `json:"role"`
	IsRoot bool `json:"isRoot"`
}

// ActorClaims is the caller identity a request carries: uid and email from the
// token's registered claims plus the custom role/isRoot pair.
type ActorClaims struct {
	UID    string
	Email  string
	Role   Role
	IsRoot bool
}

// IsAdmin reports whether the caller holds admin privilege. Root always does.
func (a ActorClaims) IsAdmin() bool {
	return a.Role == RoleAdmin || a.IsRoot
}

// IsRootEmail is the derived "is this identity root" predicate: a
// case-insensitive match against the configured reserved root address.
func IsRootEmail(email, rootEmail string) bool {
	return rootEmail != "" && strings.EqualFold(strings.TrimSpace(email), rootEmail)
}

// Rule-table failures for role assignment. RootImmutable is distinct from
// PermissionDenied: no caller, root included, may mutate the root identity.
var (
	ErrRootImmutable    = errors.New("the root identity cannot be modified")
	ErrPermissionDenied = errors.New("permission denied")
)

// CheckRoleAssignment evaluates the role-change rule table in order; the first
// matching rule governs.
//
//  1. Target is the root identity -> ErrRootImmutable.
//  2. Requested admin without root privilege -> ErrPermissionDenied.
//  3. Requested coadmin/user without admin privilege -> ErrPermissionDenied.
func CheckRoleAssignment(caller ActorClaims, targetIsRoot bool, requested Role) error {
	if targetIsRoot {
		return fmt.Errorf("%w: root claims are system-assigned", ErrRootImmutable)
	}

	if requested == RoleAdmin && !caller.IsRoot {
		return fmt.Errorf("%w: only root can assign admin", ErrPermissionDenied)
	}

	if (requested == RoleCoadmin || requested == RoleUser) && !caller.IsAdmin() {
		return fmt.Errorf("%w: only admin/root can assign this role", ErrPermissionDenied)
	}

	return nil
}

// AssignRoleRequest is the DTO for role assignment.
type AssignRoleRequest struct {
	TargetUID string `json:"targetUid" validate:"required"`
	Role      Role   `json:"role" validate:"required,oneof=user coadmin admin"`
}

// Validate checks required fields and role membership.
func (r *AssignRoleRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// UpdateUserStatusRequest is the DTO for account status changes.
type UpdateUserStatusRequest struct {
	Status UserStatus `json:"status" validate:"required,oneof=pending approved rejected disabled"`
}

// Validate checks required fields and status membership.
func (r *UpdateUserStatusRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ProvisionIdentityRequest is the payload the identity provider posts when a
// user authenticates for the first time.
type ProvisionIdentityRequest struct {
	UID         string  `json:"uid" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	DisplayName string  `json:"displayName,omitempty"`
	OfficeID    *string `json:"officeId,omitempty"`
}

// Validate sanitizes Email (trim whitespace) before validation.
func (r *ProvisionIdentityRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)

	validate := validator.New()
	return validate.Struct(r)
}
