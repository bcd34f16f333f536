package model

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a customer or administrator account.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FirstName    string `gorm:"size:100;not null" json:"first_name"`
	LastName     string `gorm:"size:100;not null" json:"last_name"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone        string `gorm:"size:32" json:"phone"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	Role         string `gorm:"size:16;not null;default:user" json:"role"`
	IsActive     bool   `gorm:"not null;default:true" json:"is_active"`
	// TokenHash is the SHA-256 of the current API token.
	TokenHash string `gorm:"size:64;index" json:"-"`
}

func (User) TableName() string { return "users" }

// FullName joins first and last name the way notifications display the customer.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// All lists every model for migration.
func All() []any {
	return []any{
		&User{}, &Product{}, &ProductColor{}, &ProductSize{},
		&Order{}, &OrderItem{}, &Payment{}, &Shipping{},
	}
}
