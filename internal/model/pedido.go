package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Order statuses. The kanban board groups by the first three.
const (
	EstadoPendiente  = "pending"
	EstadoActivo     = "active"
	EstadoCompletado = "completed"
	EstadoRetirado   = "picked_up"
	EstadoCancelado  = "canceled"
)

// transiciones is the order state machine. picked_up and canceled are terminal.
var transiciones = map[string][]string{
	EstadoPendiente:  {EstadoActivo, EstadoCancelado},
	EstadoActivo:     {EstadoCompletado},
	EstadoCompletado: {EstadoRetirado},
}

// TransicionPermitida reports whether an order may move from → to.
func TransicionPermitida(from, to string) bool {
	for _, next := range transiciones[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EstadoValido reports whether s is one of the five order statuses.
func EstadoValido(s string) bool {
	switch s {
	case EstadoPendiente, EstadoActivo, EstadoCompletado, EstadoRetirado, EstadoCancelado:
		return true
	}
	return false
}

// GeneraVenta reports whether entering status s posts a sale to the register.
func GeneraVenta(s string) bool {
	return s == EstadoCompletado || s == EstadoRetirado
}

// Payment types as chosen at checkout.
// "tienda" and "efectivo" both mean cash in person.
const (
	TipoPagoOnline   = "online"
	TipoPagoTienda   = "tienda"
	TipoPagoEfectivo = "efectivo"
	TipoPagoTarjeta  = "tarjeta"
)

// MetodoPagoCaja maps an order payment type to the register payment method.
func MetodoPagoCaja(tipoPago string) string {
	switch tipoPago {
	case TipoPagoOnline:
		return MetodoOnline
	case TipoPagoTarjeta:
		return MetodoTarjeta
	default:
		return MetodoEfectivo
	}
}

// TipoPagoValido reports whether t is an accepted checkout payment type.
func TipoPagoValido(t string) bool {
	switch t {
	case TipoPagoOnline, TipoPagoTienda, TipoPagoEfectivo, TipoPagoTarjeta:
		return true
	}
	return false
}

// Placeholders stored in payment_ref when no receipt exists.
const (
	RefPagoLocal      = "Pago en Local"
	RefPagoPresencial = "Pago Presencial"
)

// Pedido is a customer order. Items is an immutable jsonb snapshot of the cart
// at submission time; Total is computed once at creation and never recomputed.
type Pedido struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ClientID    *uuid.UUID     `gorm:"type:uuid;index"`
	ClientName  string         `gorm:"not null"`
	ClientRut   string         `gorm:"not null;default:''"`
	ClientPhone string         `gorm:"not null"`
	Items       datatypes.JSON `gorm:"type:jsonb;not null"`
	Total       int64          `gorm:"not null"`
	PaymentType string         `gorm:"type:varchar(20);not null"`
	PaymentRef  string         `gorm:"not null;default:''"`
	Note        string         `gorm:"not null;default:''"`
	Status      string         `gorm:"type:varchar(20);not null;default:'pending';index"`
	TicketURL   *string
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time
}

func (Pedido) TableName() string { return "orders" }

// ItemPedido is one cart line inside Pedido.Items.
type ItemPedido struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Subtotal is price × quantity.
func (i ItemPedido) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}
