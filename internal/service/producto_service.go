package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"oishi/internal/dto"
	"oishi/internal/infra"
	"oishi/internal/model"
	"oishi/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	menuCacheKey = "menu:v1"
	menuCacheTTL = 10 * time.Minute
	maxImagen    = 5 << 20
)

// ProductoService defines the business logic contract for menu products.
type ProductoService interface {
	Crear(ctx context.Context, req dto.CrearProductoRequest) (*dto.ProductoResponse, error)
	ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.ProductoResponse, error)
	Listar(ctx context.Context, filter dto.ProductoFilter) (*dto.ProductoListResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarProductoRequest) (*dto.ProductoResponse, error)
	Desactivar(ctx context.Context, id uuid.UUID) error
	SubirImagen(ctx context.Context, id uuid.UUID, archivo Archivo) (*dto.ProductoResponse, error)
	// Menu is the public storefront: available products grouped by active
	// category. Served from Redis when cached.
	Menu(ctx context.Context) ([]dto.MenuCategoria, error)
	InvalidarMenu(ctx context.Context)
}

type productoService struct {
	repo       repository.ProductoRepository
	categorias repository.CategoriaRepository
	store      infra.BlobStore
	rdb        *redis.Client
}

func NewProductoService(repo repository.ProductoRepository, categorias repository.CategoriaRepository, store infra.BlobStore, rdb *redis.Client) ProductoService {
	return &productoService{repo: repo, categorias: categorias, store: store, rdb: rdb}
}

func (s *productoService) Crear(ctx context.Context, req dto.CrearProductoRequest) (*dto.ProductoResponse, error) {
	p := &model.Producto{
		ID:          uuid.New(),
		Nombre:      strings.TrimSpace(req.Nombre),
		Descripcion: strings.TrimSpace(req.Descripcion),
		Precio:      req.Precio,
		Disponible:  true,
		Activo:      true,
	}
	if req.Disponible != nil {
		p.Disponible = *req.Disponible
	}
	if err := s.asignarCategoria(ctx, p, req.CategoriaID); err != nil {
		return nil, err
	}
	if p.Precio <= 0 {
		return nil, newValidation("Precio inválido", map[string]string{"precio": "debe ser mayor a 0"})
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, persistErr("crear producto", err)
	}
	s.InvalidarMenu(ctx)
	return s.ObtenerPorID(ctx, p.ID)
}

func (s *productoService) ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.ProductoResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &NotFoundError{Recurso: "producto"}
		}
		return nil, persistErr("buscar producto", err)
	}
	resp := mapProducto(*p)
	return &resp, nil
}

func (s *productoService) Listar(ctx context.Context, filter dto.ProductoFilter) (*dto.ProductoListResponse, error) {
	page, limit, _ := paginar(filter.Page, filter.Limit, 50)
	filter.Page, filter.Limit = page, limit
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, persistErr("listar productos", err)
	}
	data := make([]dto.ProductoResponse, len(rows))
	for i, p := range rows {
		data[i] = mapProducto(p)
	}
	return &dto.ProductoListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

func (s *productoService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarProductoRequest) (*dto.ProductoResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &NotFoundError{Recurso: "producto"}
		}
		return nil, persistErr("buscar producto", err)
	}

	if req.Nombre != nil {
		p.Nombre = strings.TrimSpace(*req.Nombre)
	}
	if req.Descripcion != nil {
		p.Descripcion = strings.TrimSpace(*req.Descripcion)
	}
	if req.Precio != nil {
		if *req.Precio <= 0 {
			return nil, newValidation("Precio inválido", map[string]string{"precio": "debe ser mayor a 0"})
		}
		p.Precio = *req.Precio
	}
	if req.Disponible != nil {
		p.Disponible = *req.Disponible
	}
	if req.CategoriaID != nil {
		if err := s.asignarCategoria(ctx, p, req.CategoriaID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, persistErr("actualizar producto", err)
	}
	s.InvalidarMenu(ctx)
	return s.ObtenerPorID(ctx, id)
}

func (s *productoService) Desactivar(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return &NotFoundError{Recurso: "producto"}
		}
		return persistErr("buscar producto", err)
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return persistErr("desactivar producto", err)
	}
	s.InvalidarMenu(ctx)
	return nil
}

func (s *productoService) SubirImagen(ctx context.Context, id uuid.UUID, archivo Archivo) (*dto.ProductoResponse, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return nil, &NotFoundError{Recurso: "producto"}
		}
		return nil, persistErr("buscar producto", err)
	}
	if len(archivo.Datos) == 0 || len(archivo.Datos) > maxImagen {
		return nil, newValidation("Imagen inválida", map[string]string{"imagen": "requerida, máximo 5 MB"})
	}
	if !strings.HasPrefix(strings.ToLower(archivo.ContentType), "image/") {
		return nil, newValidation("Imagen inválida", map[string]string{"imagen": "debe ser una imagen"})
	}
	if s.store == nil {
		return nil, &UploadError{Err: fmt.Errorf("almacenamiento no configurado")}
	}

	key := fmt.Sprintf("productos/%s/%d%s", id, time.Now().Unix(), extension(archivo))
	if err := s.store.Upload(ctx, key, archivo.Datos, archivo.ContentType); err != nil {
		return nil, &UploadError{Err: err}
	}
	if err := s.repo.UpdateImagen(ctx, id, s.store.PublicURL(key)); err != nil {
		return nil, persistErr("guardar imagen", err)
	}
	s.InvalidarMenu(ctx)
	return s.ObtenerPorID(ctx, id)
}

// ── Menu ──────────────────────────────────────────────────────────────────────

func (s *productoService) Menu(ctx context.Context) ([]dto.MenuCategoria, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, menuCacheKey).Bytes(); err == nil {
			var menu []dto.MenuCategoria
			if json.Unmarshal(cached, &menu) == nil {
				return menu, nil
			}
		}
	}

	cats, err := s.categorias.List(ctx, false)
	if err != nil {
		return nil, persistErr("listar categorías", err)
	}
	productos, err := s.repo.ListMenu(ctx)
	if err != nil {
		return nil, persistErr("listar menú", err)
	}
	menu := ArmarMenu(cats, productos)

	// Populate cache, best effort
	if s.rdb != nil {
		if b, err := json.Marshal(menu); err == nil {
			if err := s.rdb.Set(context.WithoutCancel(ctx), menuCacheKey, b, menuCacheTTL).Err(); err != nil {
				log.Debug().Err(err).Msg("menu cache set failed")
			}
		}
	}
	return menu, nil
}

func (s *productoService) InvalidarMenu(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(context.WithoutCancel(ctx), menuCacheKey).Err(); err != nil {
		log.Warn().Err(err).Msg("menu cache invalidation failed")
	}
}

// ArmarMenu groups products under their categories in category order.
// Products without an active category go to a trailing "Otros" section.
func ArmarMenu(cats []model.Categoria, productos []model.Producto) []dto.MenuCategoria {
	menu := make([]dto.MenuCategoria, 0, len(cats)+1)
	idx := make(map[uuid.UUID]int, len(cats))
	for _, c := range cats {
		idx[c.ID] = len(menu)
		menu = append(menu, dto.MenuCategoria{ID: c.ID.String(), Nombre: c.Nombre, Productos: []dto.ProductoResponse{}})
	}
	var otros []dto.ProductoResponse
	for _, p := range productos {
		if p.CategoriaID != nil {
			if i, ok := idx[*p.CategoriaID]; ok {
				menu[i].Productos = append(menu[i].Productos, mapProducto(p))
				continue
			}
		}
		otros = append(otros, mapProducto(p))
	}

	out := menu[:0]
	for _, m := range menu {
		if len(m.Productos) > 0 {
			out = append(out, m)
		}
	}
	if len(otros) > 0 {
		out = append(out, dto.MenuCategoria{Nombre: "Otros", Productos: otros})
	}
	return out
}

func (s *productoService) asignarCategoria(ctx context.Context, p *model.Producto, raw *string) error {
	if raw == nil || *raw == "" {
		p.CategoriaID = nil
		return nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return newValidation("Categoría inválida", map[string]string{"categoria_id": "uuid inválido"})
	}
	if _, err := s.categorias.FindByID(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return newValidation("Categoría inválida", map[string]string{"categoria_id": "no existe"})
		}
		return persistErr("buscar categoría", err)
	}
	p.CategoriaID = &id
	p.Categoria = nil
	return nil
}

func mapProducto(p model.Producto) dto.ProductoResponse {
	resp := dto.ProductoResponse{
		ID:          p.ID.String(),
		Nombre:      p.Nombre,
		Descripcion: p.Descripcion,
		Precio:      p.Precio,
		ImagenURL:   p.ImagenURL,
		Disponible:  p.Disponible,
	}
	if p.CategoriaID != nil {
		cid := p.CategoriaID.String()
		resp.CategoriaID = &cid
	}
	if p.Categoria != nil {
		resp.Categoria = p.Categoria.Nombre
	}
	return resp
}
