package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an operator account. Exactly one auth path is expected to be
// populated: PasswordHash for local accounts, OpenID for external ones.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash *string   `gorm:"size:255" json:"-"`
	Name         string    `gorm:"size:255" json:"name"`
	Email        *string   `gorm:"size:320" json:"email"`
	Role         Role      `gorm:"size:20;not null;default:'user'" json:"role"`
	OpenID       *string   `gorm:"size:64;index" json:"-"`
	LoginMethod  string    `gorm:"size:64" json:"-"`
	LastSignedIn time.Time `gorm:"not null" json:"last_signed_in"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
