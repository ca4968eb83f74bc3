package repository

import (
	"context"

	"oishi/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsuarioRepository stores staff accounts. Usernames compare case-insensitively.
type UsuarioRepository interface {
	Create(ctx context.Context, u *model.Usuario) error
	// FindByUsername only returns active accounts; it backs login.
	FindByUsername(ctx context.Context, username string) (*model.Usuario, error)
	// FindAnyByUsername includes deactivated accounts so they can be restored.
	FindAnyByUsername(ctx context.Context, username string) (*model.Usuario, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Usuario, error)
	Update(ctx context.Context, u *model.Usuario) error
	List(ctx context.Context) ([]model.Usuario, error)
	SetActivo(ctx context.Context, id uuid.UUID, activo bool) error
}

type usuarioRepo struct{ db *gorm.DB }

func NewUsuarioRepository(db *gorm.DB) UsuarioRepository { return &usuarioRepo{db: db} }

func (r *usuarioRepo) Create(ctx context.Context, u *model.Usuario) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *usuarioRepo) byUsername(ctx context.Context, username string) *gorm.DB {
	return r.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username)
}

func (r *usuarioRepo) FindByUsername(ctx context.Context, username string) (*model.Usuario, error) {
	var u model.Usuario
	err := r.byUsername(ctx, username).Where("activo = true").First(&u).Error
	return &u, err
}

func (r *usuarioRepo) FindAnyByUsername(ctx context.Context, username string) (*model.Usuario, error) {
	var u model.Usuario
	err := r.byUsername(ctx, username).First(&u).Error
	return &u, err
}

func (r *usuarioRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Usuario, error) {
	var u model.Usuario
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	return &u, err
}

func (r *usuarioRepo) Update(ctx context.Context, u *model.Usuario) error {
	return r.db.WithContext(ctx).Save(u).Error
}

// List returns every account, active first, then by username.
func (r *usuarioRepo) List(ctx context.Context) ([]model.Usuario, error) {
	var list []model.Usuario
	err := r.db.WithContext(ctx).Order("activo DESC, username ASC").Find(&list).Error
	return list, err
}

func (r *usuarioRepo) SetActivo(ctx context.Context, id uuid.UUID, activo bool) error {
	res := r.db.WithContext(ctx).Model(&model.Usuario{}).Where("id = ?", id).Update("activo", activo)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
