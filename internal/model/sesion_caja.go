package model

import (
	"time"

	"github.com/google/uuid"
)

// Shift status values.
const (
	SesionAbierta = "open"
	SesionCerrada = "closed"
)

// Movement types.
const (
	MovVenta   = "sale"
	MovIngreso = "income"
	MovEgreso  = "expense"
)

// Payment methods of a movement. Only MetodoEfectivo affects ExpectedBalance.
const (
	MetodoEfectivo = "cash"
	MetodoTarjeta  = "card"
	MetodoOnline   = "online"
)

// SesionCaja is a register shift. At most one row has Status "open"; the
// database enforces it with a partial unique index.
// ExpectedBalance = OpeningBalance + Σ cash income/sale − Σ cash expense,
// maintained by atomic increments on every cash movement.
type SesionCaja struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OpenedBy        uuid.UUID `gorm:"type:uuid;not null"`
	OpeningBalance  int64     `gorm:"not null"`
	ExpectedBalance int64     `gorm:"not null"`
	// ActualBalance is the counted cash entered at close; nil while open
	ActualBalance *int64
	Status        string `gorm:"type:varchar(10);not null;default:'open'"`
	OpenedAt      time.Time
	ClosedAt      *time.Time

	Movimientos []MovimientoCaja `gorm:"foreignKey:ShiftID"`
}

func (SesionCaja) TableName() string { return "cash_shifts" }

// MovimientoCaja is an immutable ledger entry. Amount is always positive;
// the sign is implied by Type.
type MovimientoCaja struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ShiftID       uuid.UUID `gorm:"type:uuid;index;not null"`
	Type          string    `gorm:"type:varchar(10);not null"`
	Amount        int64     `gorm:"not null"`
	Description   string    `gorm:"not null"`
	PaymentMethod string    `gorm:"type:varchar(10);not null"`
	// OrderID is set only for Type "sale"
	OrderID   *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
}

func (MovimientoCaja) TableName() string { return "cash_movements" }

// Delta is the signed effect of the movement on the expected cash balance.
func (m MovimientoCaja) Delta() int64 {
	if m.PaymentMethod != MetodoEfectivo {
		return 0
	}
	if m.Type == MovEgreso {
		return -m.Amount
	}
	return m.Amount
}
