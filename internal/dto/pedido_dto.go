package dto

import "time"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemPedidoRequest struct {
	ID       string `json:"id"       validate:"required"`
	Name     string `json:"name"`
	Price    int64  `json:"price"    validate:"min=0,max=100000000"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=99"`
}

// CrearPedidoRequest is the order draft sent by the storefront checkout and by
// staff manual entry. Total is optional; when present it must match the items.
type CrearPedidoRequest struct {
	ClientName  string              `json:"client_name"  validate:"max=120"`
	ClientRut   string              `json:"client_rut"   validate:"max=20"`
	ClientPhone string              `json:"client_phone" validate:"max=30"`
	Items       []ItemPedidoRequest `json:"items"        validate:"dive"`
	Total       *int64              `json:"total"`
	PaymentType string              `json:"payment_type" validate:"required,oneof=online tienda efectivo tarjeta"`
	Note        string              `json:"note"         validate:"max=500"`
}

type CambiarEstadoRequest struct {
	Estado string `json:"estado" validate:"required,oneof=pending active completed picked_up canceled"`
}

// PurgarPedidosRequest requires the admin to type their credentials again.
// Antes (YYYY-MM-DD) limits the purge to orders created before that day.
type PurgarPedidosRequest struct {
	Username string  `json:"username" validate:"required"`
	Password string  `json:"password" validate:"required"`
	Antes    *string `json:"antes"    validate:"omitempty,datetime=2006-01-02"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type PedidoFilter struct {
	Estados []string `form:"estado"`
	Desde   string   `form:"desde"  validate:"omitempty,datetime=2006-01-02"`
	Hasta   string   `form:"hasta"  validate:"omitempty,datetime=2006-01-02"`
	Page    int      `form:"page,default=1"   validate:"min=1"`
	Limit   int      `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemPedido struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Pedido is the canonical in-memory order shape. Every row read from storage
// reaches handlers and the board through the sanitizer that produces it.
type Pedido struct {
	ID          string       `json:"id"`
	ClientID    *string      `json:"client_id"`
	ClientName  string       `json:"client_name"`
	ClientRut   string       `json:"client_rut"`
	ClientPhone string       `json:"client_phone"`
	Items       []ItemPedido `json:"items"`
	Total       int64        `json:"total"`
	PaymentType string       `json:"payment_type"`
	PaymentRef  string       `json:"payment_ref"`
	Note        string       `json:"note"`
	Status      string       `json:"status"`
	TicketURL   *string      `json:"ticket_url,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

type PedidoListResponse struct {
	Data  []Pedido `json:"data"`
	Total int64    `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}

type CheckoutResponse struct {
	Pedido      Pedido `json:"pedido"`
	WhatsAppURL string `json:"whatsapp_url"`
}

type ComprobanteResponse struct {
	URL string `json:"url"`
}

type PurgarPedidosResponse struct {
	Eliminados int64 `json:"eliminados"`
}
