// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents an account in the Whisperwall application.
//
// Role flags are re-read from the database on every authenticated request;
// a token only proves identity, never authorization state.
type User struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Username   string     `gorm:"unique;not null" json:"username"`
	Email      string     `gorm:"unique;not null" json:"email"`
	Password   string     `gorm:"not null" json:"-"`
	IsAdmin    bool       `gorm:"not null;default:false" json:"isAdmin"`
	IsBlocked  bool       `gorm:"not null;default:false" json:"isBlocked"`
	IsVerified bool       `gorm:"not null;default:false" json:"isVerified"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	VerifiedBy *uint      `json:"verifiedBy,omitempty"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`

	// Registration metadata retained for correlation by the moderation
	// surface. Never serialized on public paths.
	RegistrationIP string `json:"-"`
	UserAgent      string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserProfile is the projection returned to the account owner and on
// auth responses.
type UserProfile struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	IsAdmin    bool   `json:"isAdmin"`
	IsVerified bool   `json:"isVerified"`
	IsBlocked  bool   `json:"isBlocked"`
}

// Profile returns the user's own projection.
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		IsAdmin:    u.IsAdmin,
		IsVerified: u.IsVerified,
		IsBlocked:  u.IsBlocked,
	}
}
