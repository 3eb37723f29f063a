package models

import "time"

// Account is an advertising account allowed to push import batches.
type Account struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	CustomerID string    `json:"customer_id" db:"customer_id"`
	Secret     string    `json:"-" db:"-"` // plaintext, stored encrypted
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
