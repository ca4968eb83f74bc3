package dto

import "time"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	MontoInicial int64 `json:"monto_inicial" validate:"min=0"`
}

// MovimientoRequest registers a manual movement. Sales are posted by the order
// lifecycle and cannot be entered by hand.
type MovimientoRequest struct {
	SesionCajaID string `json:"sesion_caja_id" validate:"required,uuid"`
	Tipo         string `json:"tipo"           validate:"required,oneof=income expense"`
	MetodoPago   string `json:"metodo_pago"    validate:"required,oneof=cash card online"`
	Monto        int64  `json:"monto"`
	Descripcion  string `json:"descripcion"    validate:"max=200"`
}

type CerrarCajaRequest struct {
	SesionCajaID string `json:"sesion_caja_id" validate:"required,uuid"`
	MontoReal    int64  `json:"monto_real"`
}

type HistorialCajaFilter struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovimientoResponse struct {
	ID          string    `json:"id"`
	ShiftID     string    `json:"shift_id"`
	Tipo        string    `json:"tipo"`
	Monto       int64     `json:"monto"`
	Descripcion string    `json:"descripcion"`
	MetodoPago  string    `json:"metodo_pago"`
	OrderID     *string   `json:"order_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type SesionCajaResponse struct {
	ID            string     `json:"id"`
	OpenedBy      string     `json:"opened_by"`
	MontoInicial  int64      `json:"monto_inicial"`
	MontoEsperado int64      `json:"monto_esperado"`
	MontoReal     *int64     `json:"monto_real"`
	Estado        string     `json:"estado"`
	OpenedAt      time.Time  `json:"opened_at"`
	ClosedAt      *time.Time `json:"closed_at"`
}

// TotalesCaja aggregates incoming money per method. Egresos is not broken out.
type TotalesCaja struct {
	Ingresos int64 `json:"ingresos"`
	Egresos  int64 `json:"egresos"`
	Efectivo int64 `json:"efectivo"`
	Tarjeta  int64 `json:"tarjeta"`
	Online   int64 `json:"online"`
}

type VarianzaResponse struct {
	Monto         int64  `json:"monto"`
	Clasificacion string `json:"clasificacion"` // sobrante | faltante | cuadrado
}

type ReporteCajaResponse struct {
	Sesion      SesionCajaResponse   `json:"sesion"`
	Movimientos []MovimientoResponse `json:"movimientos"`
	Totales     TotalesCaja          `json:"totales"`
	Varianza    *VarianzaResponse    `json:"varianza"`
}

type SesionCajaListResponse struct {
	Data  []SesionCajaResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}
