package dto

// ── Request DTOs ──────────────────────────────────────────────────────────────

type CrearCategoriaRequest struct {
	Nombre string `json:"nombre" validate:"required,min=2,max=100"`
	Orden  int    `json:"orden"  validate:"min=0"`
}

type ActualizarCategoriaRequest struct {
	Nombre *string `json:"nombre" validate:"omitempty,min=2,max=100"`
	Orden  *int    `json:"orden"  validate:"omitempty,min=0"`
	Activo *bool   `json:"activo"`
}

// ── Response DTOs ─────────────────────────────────────────────────────────────

type CategoriaResponse struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
	Orden  int    `json:"orden"`
	Activo bool   `json:"activo"`
}
