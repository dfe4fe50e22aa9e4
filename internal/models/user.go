package models

import "time"

type UserRole string

const (
	RoleMember UserRole = "member"
	// Admins have unlimited generation quota; consumption is still
	// recorded for observability.
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           uint64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string   `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string   `gorm:"type:varchar(128);not null" json:"-"`
	Role         UserRole `gorm:"type:varchar(16);not null;default:member" json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
