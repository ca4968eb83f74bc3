package repository

import (
	"context"
	"time"

	"oishi/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CajaRepository interface {
	// CreateSesion fails with a unique violation when another shift is open.
	CreateSesion(ctx context.Context, s *model.SesionCaja) error
	FindSesionAbierta(ctx context.Context) (*model.SesionCaja, error)
	FindSesionAbiertaTx(tx *gorm.DB) (*model.SesionCaja, error)
	FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	// CerrarSesion closes id only if it is still open. Returns rows changed.
	CerrarSesion(ctx context.Context, id uuid.UUID, actual int64, at time.Time) (int64, error)
	ListSesiones(ctx context.Context, offset, limit int) ([]model.SesionCaja, int64, error)

	CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error
	// AjustarEsperadoTx applies delta to expected_balance with a single
	// UPDATE ... SET expected_balance = expected_balance + delta, only on an
	// open shift. Returns rows changed.
	AjustarEsperadoTx(tx *gorm.DB, shiftID uuid.UUID, delta int64) (int64, error)
	ExisteVentaTx(tx *gorm.DB, orderID uuid.UUID) (bool, error)
	// ListMovimientos returns the shift's movements newest first.
	ListMovimientos(ctx context.Context, shiftID uuid.UUID) ([]model.MovimientoCaja, error)

	DB() *gorm.DB
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) DB() *gorm.DB { return r.db }

func (r *cajaRepo) CreateSesion(ctx context.Context, s *model.SesionCaja) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *cajaRepo) FindSesionAbierta(ctx context.Context) (*model.SesionCaja, error) {
	return r.FindSesionAbiertaTx(r.db.WithContext(ctx))
}

func (r *cajaRepo) FindSesionAbiertaTx(tx *gorm.DB) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := tx.Where("status = ?", model.SesionAbierta).First(&s).Error
	return &s, err
}

func (r *cajaRepo) FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cajaRepo) CerrarSesion(ctx context.Context, id uuid.UUID, actual int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.SesionCaja{}).
		Where("id = ? AND status = ?", id, model.SesionAbierta).
		Updates(map[string]interface{}{
			"actual_balance": actual,
			"closed_at":      at,
			"status":         model.SesionCerrada,
		})
	return res.RowsAffected, res.Error
}

func (r *cajaRepo) ListSesiones(ctx context.Context, offset, limit int) ([]model.SesionCaja, int64, error) {
	var sesiones []model.SesionCaja
	var total int64
	q := r.db.WithContext(ctx).Model(&model.SesionCaja{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("opened_at DESC").Offset(offset).Limit(limit).Find(&sesiones).Error
	return sesiones, total, err
}

func (r *cajaRepo) CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error {
	return tx.Create(m).Error
}

func (r *cajaRepo) AjustarEsperadoTx(tx *gorm.DB, shiftID uuid.UUID, delta int64) (int64, error) {
	res := tx.Model(&model.SesionCaja{}).
		Where("id = ? AND status = ?", shiftID, model.SesionAbierta).
		Update("expected_balance", gorm.Expr("expected_balance + ?", delta))
	return res.RowsAffected, res.Error
}

func (r *cajaRepo) ExisteVentaTx(tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	var n int64
	err := tx.Model(&model.MovimientoCaja{}).
		Where("order_id = ? AND type = ?", orderID, model.MovVenta).
		Count(&n).Error
	return n > 0, err
}

func (r *cajaRepo) ListMovimientos(ctx context.Context, shiftID uuid.UUID) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	err := r.db.WithContext(ctx).Where("shift_id = ?", shiftID).
		Order("created_at DESC").Find(&movs).Error
	return movs, err
}
