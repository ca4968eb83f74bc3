package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearProductoRequest struct {
	CategoriaID *string `json:"categoria_id" validate:"omitempty,uuid"`
	Nombre      string  `json:"nombre"       validate:"required,min=2,max=120"`
	Descripcion string  `json:"descripcion"  validate:"max=500"`
	Precio      int64   `json:"precio"       validate:"required,gt=0"`
	Disponible  *bool   `json:"disponible"`
}

type ActualizarProductoRequest struct {
	CategoriaID *string `json:"categoria_id" validate:"omitempty,uuid"`
	Nombre      *string `json:"nombre"       validate:"omitempty,min=2,max=120"`
	Descripcion *string `json:"descripcion"  validate:"omitempty,max=500"`
	Precio      *int64  `json:"precio"       validate:"omitempty,gt=0"`
	Disponible  *bool   `json:"disponible"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductoFilter struct {
	Nombre          string `form:"nombre"`
	CategoriaID     string `form:"categoria_id" validate:"omitempty,uuid"`
	SoloDisponibles bool   `form:"disponibles"`
	Page            int    `form:"page,default=1"   validate:"min=1"`
	Limit           int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductoResponse struct {
	ID          string  `json:"id"`
	CategoriaID *string `json:"categoria_id"`
	Categoria   string  `json:"categoria"`
	Nombre      string  `json:"nombre"`
	Descripcion string  `json:"descripcion"`
	Precio      int64   `json:"precio"`
	ImagenURL   *string `json:"imagen_url"`
	Disponible  bool    `json:"disponible"`
}

type ProductoListResponse struct {
	Data  []ProductoResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// MenuCategoria is one section of the public menu.
type MenuCategoria struct {
	ID        string             `json:"id"`
	Nombre    string             `json:"nombre"`
	Productos []ProductoResponse `json:"productos"`
}
