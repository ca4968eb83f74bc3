package repository

import (
	"context"
	"time"

	"oishi/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PedidoQuery filters order listings. Zero values mean "no filter".
type PedidoQuery struct {
	Estados  []string
	Desde    *time.Time
	Hasta    *time.Time // exclusive
	ClientID *uuid.UUID
	Offset   int
	Limit    int
}

type PedidoRepository interface {
	CreateTx(tx *gorm.DB, p *model.Pedido) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Pedido, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Pedido, error)
	// List returns rows newest first plus the unpaginated count.
	List(ctx context.Context, q PedidoQuery) ([]model.Pedido, int64, error)
	// UpdateEstadoTx moves id from → to only if the row is still in from.
	// Returns the number of rows changed (0 or 1).
	UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, from, to string) (int64, error)
	UpdatePaymentRef(ctx context.Context, id uuid.UUID, ref string) error
	UpdateTicketURL(ctx context.Context, id uuid.UUID, url string) error
	// DeleteBefore removes orders created before t, or all orders when t is nil.
	DeleteBefore(ctx context.Context, t *time.Time) (int64, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type pedidoRepo struct{ db *gorm.DB }

func NewPedidoRepository(db *gorm.DB) PedidoRepository { return &pedidoRepo{db: db} }

func (r *pedidoRepo) DB() *gorm.DB { return r.db }

func (r *pedidoRepo) CreateTx(tx *gorm.DB, p *model.Pedido) error {
	return tx.Create(p).Error
}

func (r *pedidoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Pedido, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *pedidoRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Pedido, error) {
	var p model.Pedido
	err := tx.First(&p, "id = ?", id).Error
	return &p, err
}

func (r *pedidoRepo) List(ctx context.Context, q PedidoQuery) ([]model.Pedido, int64, error) {
	var pedidos []model.Pedido
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Pedido{})
	if len(q.Estados) > 0 {
		query = query.Where("status IN ?", q.Estados)
	}
	if q.Desde != nil {
		query = query.Where("created_at >= ?", *q.Desde)
	}
	if q.Hasta != nil {
		query = query.Where("created_at < ?", *q.Hasta)
	}
	if q.ClientID != nil {
		query = query.Where("client_id = ?", *q.ClientID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC")
	if q.Limit > 0 {
		query = query.Offset(q.Offset).Limit(q.Limit)
	}
	err := query.Find(&pedidos).Error
	return pedidos, total, err
}

func (r *pedidoRepo) UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, from, to string) (int64, error) {
	res := tx.Model(&model.Pedido{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (r *pedidoRepo) UpdatePaymentRef(ctx context.Context, id uuid.UUID, ref string) error {
	res := r.db.WithContext(ctx).Model(&model.Pedido{}).Where("id = ?", id).
		Updates(map[string]interface{}{"payment_ref": ref, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *pedidoRepo) UpdateTicketURL(ctx context.Context, id uuid.UUID, url string) error {
	return r.db.WithContext(ctx).Model(&model.Pedido{}).Where("id = ?", id).
		Update("ticket_url", url).Error
}

func (r *pedidoRepo) DeleteBefore(ctx context.Context, t *time.Time) (int64, error) {
	q := r.db.WithContext(ctx)
	if t != nil {
		q = q.Where("created_at < ?", *t)
	} else {
		q = q.Where("1 = 1")
	}
	res := q.Delete(&model.Pedido{})
	return res.RowsAffected, res.Error
}
