package dto

import "github.com/shopspring/decimal"

type AnalyticsFilter struct {
	Desde string `form:"desde" validate:"omitempty,datetime=2006-01-02"`
	Hasta string `form:"hasta" validate:"omitempty,datetime=2006-01-02"`
}

type TipoPagoResumen struct {
	Tipo       string          `json:"tipo"`
	Cantidad   int             `json:"cantidad"`
	Total      int64           `json:"total"`
	Porcentaje decimal.Decimal `json:"porcentaje"`
}

type ProductoVendido struct {
	Nombre   string `json:"nombre"`
	Cantidad int    `json:"cantidad"`
	Total    int64  `json:"total"`
}

type VentaDia struct {
	Fecha    string `json:"fecha"` // YYYY-MM-DD
	Cantidad int    `json:"cantidad"`
	Total    int64  `json:"total"`
}

// ResumenResponse only counts completed and picked-up orders as sales;
// PorEstado counts every order in the range.
type ResumenResponse struct {
	Desde          string            `json:"desde"`
	Hasta          string            `json:"hasta"`
	TotalVentas    int64             `json:"total_ventas"`
	CantidadVentas int               `json:"cantidad_ventas"`
	TicketPromedio decimal.Decimal   `json:"ticket_promedio"`
	PorEstado      map[string]int    `json:"por_estado"`
	PorTipoPago    []TipoPagoResumen `json:"por_tipo_pago"`
	TopProductos   []ProductoVendido `json:"top_productos"`
	PorDia         []VentaDia        `json:"por_dia"`
	ClientesNuevos int               `json:"clientes_nuevos"`
}
