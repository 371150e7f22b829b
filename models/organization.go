package models

import (
	"github.com/google/uuid"
)

// Organization represents a tenant in the multi-tenant system
type Organization struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
	Slug string    `json:"slug" db:"slug"` // URL-friendly identifier
}

// TableName returns the table name for the Organization model
func (Organization) TableName() string {
	return "organizations"
}
