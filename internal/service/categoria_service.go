package service

import (
	"context"
	"strings"

	"oishi/internal/dto"
	"oishi/internal/model"
	"oishi/internal/repository"

	"github.com/google/uuid"
)

// CategoriaService defines business operations for menu categories.
type CategoriaService interface {
	Crear(ctx context.Context, req dto.CrearCategoriaRequest) (dto.CategoriaResponse, error)
	Listar(ctx context.Context, todas bool) ([]dto.CategoriaResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarCategoriaRequest) (dto.CategoriaResponse, error)
	Desactivar(ctx context.Context, id uuid.UUID) error
}

type categoriaService struct {
	repo repository.CategoriaRepository
	// menu is invalidated on every change; may be nil
	menu interface{ InvalidarMenu(ctx context.Context) }
}

func NewCategoriaService(repo repository.CategoriaRepository, productos ProductoService) CategoriaService {
	s := &categoriaService{repo: repo}
	if productos != nil {
		s.menu = productos
	}
	return s
}

// mapCategoria converts a model to a DTO response.
func mapCategoria(c model.Categoria) dto.CategoriaResponse {
	return dto.CategoriaResponse{
		ID:     c.ID.String(),
		Nombre: c.Nombre,
		Orden:  c.Orden,
		Activo: c.Activo,
	}
}

func (s *categoriaService) Crear(ctx context.Context, req dto.CrearCategoriaRequest) (dto.CategoriaResponse, error) {
	c := &model.Categoria{
		ID:     uuid.New(),
		Nombre: strings.TrimSpace(req.Nombre),
		Orden:  req.Orden,
		Activo: true,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if repository.IsUniqueViolation(err) {
			return dto.CategoriaResponse{}, &ConflictError{Msg: "ya existe una categoría con ese nombre"}
		}
		return dto.CategoriaResponse{}, persistErr("crear categoría", err)
	}
	s.invalidar(ctx)
	return mapCategoria(*c), nil
}

func (s *categoriaService) Listar(ctx context.Context, todas bool) ([]dto.CategoriaResponse, error) {
	list, err := s.repo.List(ctx, todas)
	if err != nil {
		return nil, persistErr("listar categorías", err)
	}
	result := make([]dto.CategoriaResponse, 0, len(list))
	for _, c := range list {
		result = append(result, mapCategoria(c))
	}
	return result, nil
}

func (s *categoriaService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarCategoriaRequest) (dto.CategoriaResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return dto.CategoriaResponse{}, &NotFoundError{Recurso: "categoría"}
		}
		return dto.CategoriaResponse{}, persistErr("buscar categoría", err)
	}

	if req.Nombre != nil {
		c.Nombre = strings.TrimSpace(*req.Nombre)
	}
	if req.Orden != nil {
		c.Orden = *req.Orden
	}
	if req.Activo != nil {
		c.Activo = *req.Activo
	}

	if err := s.repo.Update(ctx, c); err != nil {
		if repository.IsUniqueViolation(err) {
			return dto.CategoriaResponse{}, &ConflictError{Msg: "ya existe una categoría con ese nombre"}
		}
		return dto.CategoriaResponse{}, persistErr("actualizar categoría", err)
	}
	s.invalidar(ctx)
	return mapCategoria(*c), nil
}

func (s *categoriaService) Desactivar(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return &NotFoundError{Recurso: "categoría"}
		}
		return persistErr("buscar categoría", err)
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return persistErr("desactivar categoría", err)
	}
	s.invalidar(ctx)
	return nil
}

func (s *categoriaService) invalidar(ctx context.Context) {
	if s.menu != nil {
		s.menu.InvalidarMenu(ctx)
	}
}
