package model

import (
	"time"

	"github.com/google/uuid"
)

// RutPlaceholderPrefix marks clients created without a usable RUT.
// Those rows are never deduplicated.
const RutPlaceholderPrefix = "SIN-RUT-"

// Cliente is the CRM record. TotalSpent and TotalOrders are running
// aggregates maintained by the upsert path, not recomputed from orders.
type Cliente struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string    `gorm:"not null"`
	Rut         string    `gorm:"not null"`
	Phone       string    `gorm:"not null;default:''"`
	TotalSpent  int64     `gorm:"not null;default:0"`
	TotalOrders int       `gorm:"not null;default:0"`
	LastOrderAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Cliente) TableName() string { return "clients" }
