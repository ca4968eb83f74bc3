package repository

import (
	"context"
	"time"

	"oishi/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClienteRepository interface {
	FindByRutTx(tx *gorm.DB, rut string) (*model.Cliente, error)
	CreateTx(tx *gorm.DB, c *model.Cliente) error
	// RegistrarPedidoTx adds one order of the given total to the client's running
	// aggregates with server-side increments, and overwrites name and phone.
	RegistrarPedidoTx(tx *gorm.DB, id uuid.UUID, name, phone string, total int64, at time.Time) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error)
	// List orders by total_spent desc. q matches name, rut or phone.
	List(ctx context.Context, q string, offset, limit int) ([]model.Cliente, int64, error)
	CountCreatedBetween(ctx context.Context, desde, hasta time.Time) (int64, error)

	DB() *gorm.DB
}

type clienteRepo struct{ db *gorm.DB }

func NewClienteRepository(db *gorm.DB) ClienteRepository { return &clienteRepo{db: db} }

func (r *clienteRepo) DB() *gorm.DB { return r.db }

func (r *clienteRepo) FindByRutTx(tx *gorm.DB, rut string) (*model.Cliente, error) {
	var c model.Cliente
	err := tx.Where("rut = ? AND rut NOT LIKE ?", rut, model.RutPlaceholderPrefix+"%").First(&c).Error
	return &c, err
}

func (r *clienteRepo) CreateTx(tx *gorm.DB, c *model.Cliente) error {
	return tx.Create(c).Error
}

func (r *clienteRepo) RegistrarPedidoTx(tx *gorm.DB, id uuid.UUID, name, phone string, total int64, at time.Time) error {
	res := tx.Model(&model.Cliente{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_spent":   gorm.Expr("total_spent + ?", total),
		"total_orders":  gorm.Expr("total_orders + 1"),
		"name":          name,
		"phone":         phone,
		"last_order_at": at,
		"updated_at":    at,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *clienteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *clienteRepo) List(ctx context.Context, q string, offset, limit int) ([]model.Cliente, int64, error) {
	var clientes []model.Cliente
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Cliente{})
	if q != "" {
		like := "%" + q + "%"
		query = query.Where("name ILIKE ? OR rut ILIKE ? OR phone ILIKE ?", like, like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("total_spent DESC, name ASC").Offset(offset).Limit(limit).Find(&clientes).Error
	return clientes, total, err
}

func (r *clienteRepo) CountCreatedBetween(ctx context.Context, desde, hasta time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Cliente{}).
		Where("created_at >= ? AND created_at < ?", desde, hasta).
		Count(&n).Error
	return n, err
}
