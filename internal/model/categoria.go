package model

import (
	"time"

	"github.com/google/uuid"
)

// Categoria groups menu products (rolls, hand rolls, bebidas...).
type Categoria struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre    string    `gorm:"column:name;uniqueIndex;not null"`
	Orden     int       `gorm:"column:sort_order;not null;default:0"`
	Activo    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Categoria) TableName() string { return "categories" }
