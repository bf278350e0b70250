package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalogue product that line items refer to.
type Product struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Slug      string          `json:"slug" db:"slug"`
	UnitPrice decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Stock     int             `json:"stock" db:"stock"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}
