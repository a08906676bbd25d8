package models

import (
	"time"

	"gorm.io/gorm"
)

// Role names understood by the authorization checks.
const (
	RoleReader     = "reader"
	RoleAuthor     = "author"
	RoleTranslator = "translator"
	RoleAdmin      = "admin"
)

// User represents a platform account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email        string         `gorm:"size:255" json:"email"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Provider     string         `gorm:"size:32" json:"provider"`
	ProviderID   string         `gorm:"size:255" json:"provider_id"`
	Role         string         `gorm:"size:16;not null;default:'reader'" json:"role"`
	AvatarURL    string         `gorm:"size:512" json:"avatar_url"`
	Bio          string         `gorm:"size:512" json:"bio"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Novels       []Novel        `gorm:"foreignKey:AuthorID" json:"-"`
}

// BeforeCreate hook ensures timestamps and role are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleReader
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// CanPublish reports whether the role may create novels and chapters.
func (u *User) CanPublish() bool {
	switch u.Role {
	case RoleAuthor, RoleTranslator, RoleAdmin:
		return true
	}
	return false
}
