// Package model defines the database schema for the resumaker server.
package model

import (
	"time"
)

// User is an account holder. Credentials live in Password, external
// identities in Connection, and authorization in Roles.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"unique;not null"`
	Username  string    `json:"username" gorm:"unique;not null"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Roles []Role `json:"roles,omitempty" gorm:"many2many:user_roles;"`
}

// Password holds the bcrypt hash for a user. Users created through an
// OAuth provider have no Password row at all.
type Password struct {
	Hash   string `json:"-" gorm:"not null"`
	UserID string `json:"userId" gorm:"primaryKey"`
}

// Session is a server side login session. The cookie only carries the
// session id; everything else is resolved from this row.
type Session struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	ExpirationDate time.Time `json:"expirationDate" gorm:"not null"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	UserID         string    `json:"userId" gorm:"index;not null"`
}

// Verification is a pending one-time-code challenge, or, for type "2fa"
// with a null expiry, a confirmed TOTP enrollment.
type Verification struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt"`

	// Type is one of onboarding, reset-password, change-email,
	// 2fa-setup or 2fa.
	Type   string `json:"type" gorm:"uniqueIndex:idx_verifications_target_type;not null"`
	Target string `json:"target" gorm:"uniqueIndex:idx_verifications_target_type;not null"`

	Secret    string `json:"-" gorm:"not null"`
	Algorithm string `json:"algorithm" gorm:"not null"`
	Digits    int    `json:"digits" gorm:"not null"`
	Period    int    `json:"period" gorm:"not null"`
	CharSet   string `json:"charSet" gorm:"not null"`

	// ExpiresAt is nil for confirmed 2fa enrollments, which never expire.
	ExpiresAt *time.Time `json:"expiresAt"`
}

// Connection links a user to an external OAuth identity.
type Connection struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	ProviderName string    `json:"providerName" gorm:"uniqueIndex:idx_connections_provider;not null"`
	ProviderID   string    `json:"providerId" gorm:"uniqueIndex:idx_connections_provider;not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	UserID       string    `json:"userId" gorm:"index;not null"`
}

// Role groups permissions. Every new account gets the "user" role.
type Role struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"unique;not null"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Permissions []Permission `json:"permissions,omitempty" gorm:"many2many:role_permissions;"`
}

// Permission is an action:entity:access triple, e.g. update:resume:own.
type Permission struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Action      string    `json:"action" gorm:"uniqueIndex:idx_permissions_aea;not null"`
	Entity      string    `json:"entity" gorm:"uniqueIndex:idx_permissions_aea;not null"`
	Access      string    `json:"access" gorm:"uniqueIndex:idx_permissions_aea;not null"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserImage is the profile photo, stored as a blob. One per user.
type UserImage struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	AltText     string    `json:"altText"`
	ContentType string    `json:"contentType" gorm:"not null"`
	Blob        []byte    `json:"-" gorm:"not null"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UserID      string    `json:"userId" gorm:"unique;not null"`
}

// Setting is a key/value row for runtime configuration of the web server.
type Setting struct {
	ID    int    `json:"id" gorm:"primaryKey;autoIncrement"`
	Key   string `json:"key" form:"key"`
	Value string `json:"value" form:"value"`
}

// Resume is a stored resume document. Content is the builder state as JSON.
type Resume struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"not null"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	OwnerID   string    `json:"ownerId" gorm:"index;not null"`
}
