package model

import (
	"time"

	"github.com/google/uuid"
)

// Producto is a menu item. Disponible is the inventory toggle shown on the
// storefront; there is no stock count.
type Producto struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CategoriaID *uuid.UUID `gorm:"column:category_id;type:uuid;index"`
	Nombre      string     `gorm:"column:name;not null"`
	Descripcion string     `gorm:"column:description;not null;default:''"`
	Precio      int64      `gorm:"column:price;not null"`
	ImagenURL   *string    `gorm:"column:image_url"`
	Disponible  bool       `gorm:"column:available;not null;default:true"`
	Activo      bool       `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Categoria *Categoria `gorm:"foreignKey:CategoriaID"`
}

func (Producto) TableName() string { return "products" }
