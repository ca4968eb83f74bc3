package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"oishi/internal/dto"
	"oishi/internal/model"
	"oishi/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// rutMinLen: a RUT of this length or shorter is not an identifier and never dedupes.
const rutMinLen = 7

type ClienteService interface {
	// Upsert registers one order of total for the client identified by rut.
	Upsert(ctx context.Context, name, rut, phone string, total int64) (uuid.UUID, error)
	// UpsertTx is Upsert inside the caller's transaction.
	UpsertTx(tx *gorm.DB, name, rut, phone string, total int64, now time.Time) (uuid.UUID, error)
	Historial(ctx context.Context, id uuid.UUID) ([]dto.Pedido, error)
	Listar(ctx context.Context, filter dto.ClienteFilter) (*dto.ClienteListResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.ClienteResponse, error)
}

type clienteService struct {
	repo    repository.ClienteRepository
	pedidos repository.PedidoRepository
}

func NewClienteService(repo repository.ClienteRepository, pedidos repository.PedidoRepository) ClienteService {
	return &clienteService{repo: repo, pedidos: pedidos}
}

func (s *clienteService) Upsert(ctx context.Context, name, rut, phone string, total int64) (uuid.UUID, error) {
	var id uuid.UUID
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		id, err = s.UpsertTx(tx, name, rut, phone, total, time.Now())
		return err
	})
	return id, err
}

// UpsertTx: a RUT longer than 7 characters is looked up and, when found, gets
// its totals incremented server-side and name/phone overwritten. Anything
// shorter, or a typed SIN-RUT- placeholder, always inserts a new client under a
// fresh placeholder, so walk-in customers are never merged.
func (s *clienteService) UpsertTx(tx *gorm.DB, name, rut, phone string, total int64, now time.Time) (uuid.UUID, error) {
	rut = NormalizarRut(rut)

	if len(rut) > rutMinLen && !strings.HasPrefix(rut, model.RutPlaceholderPrefix) {
		existing, err := s.repo.FindByRutTx(tx, rut)
		switch {
		case err == nil:
			if err := s.repo.RegistrarPedidoTx(tx, existing.ID, name, phone, total, now); err != nil {
				return uuid.Nil, persistErr("actualizar cliente", err)
			}
			return existing.ID, nil
		case !repository.IsNotFound(err):
			return uuid.Nil, persistErr("buscar cliente", err)
		}
	} else {
		rut = placeholderRut(now)
	}

	c := &model.Cliente{
		ID:          uuid.New(),
		Name:        name,
		Rut:         rut,
		Phone:       phone,
		TotalSpent:  total,
		TotalOrders: 1,
		LastOrderAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateTx(tx, c); err != nil {
		if repository.IsUniqueViolation(err) {
			// Another order for the same RUT won the insert race
			return uuid.Nil, &ConflictError{Msg: "el cliente se registró en paralelo, intente nuevamente"}
		}
		return uuid.Nil, persistErr("crear cliente", err)
	}
	log.Debug().Str("cliente_id", c.ID.String()).Str("rut", rut).Msg("cliente creado")
	return c.ID, nil
}

// placeholderRut is "SIN-RUT-" plus the last 4 digits of the millisecond clock.
func placeholderRut(now time.Time) string {
	return fmt.Sprintf("%s%04d", model.RutPlaceholderPrefix, now.UnixMilli()%10000)
}

func (s *clienteService) Historial(ctx context.Context, id uuid.UUID) ([]dto.Pedido, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return nil, &NotFoundError{Recurso: "cliente"}
		}
		return nil, persistErr("buscar cliente", err)
	}
	rows, _, err := s.pedidos.List(ctx, repository.PedidoQuery{ClientID: &id})
	if err != nil {
		return nil, persistErr("historial cliente", err)
	}
	out := make([]dto.Pedido, len(rows))
	for i := range rows {
		out[i] = PedidoDesdeModelo(&rows[i])
	}
	return out, nil
}

func (s *clienteService) Listar(ctx context.Context, filter dto.ClienteFilter) (*dto.ClienteListResponse, error) {
	page, limit, offset := paginar(filter.Page, filter.Limit, 20)
	rows, total, err := s.repo.List(ctx, filter.Q, offset, limit)
	if err != nil {
		return nil, persistErr("listar clientes", err)
	}
	data := make([]dto.ClienteResponse, len(rows))
	for i, c := range rows {
		data[i] = mapCliente(c)
	}
	return &dto.ClienteListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

func (s *clienteService) Obtener(ctx context.Context, id uuid.UUID) (*dto.ClienteResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &NotFoundError{Recurso: "cliente"}
		}
		return nil, persistErr("buscar cliente", err)
	}
	resp := mapCliente(*c)
	return &resp, nil
}

func mapCliente(c model.Cliente) dto.ClienteResponse {
	return dto.ClienteResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Rut:         c.Rut,
		Phone:       c.Phone,
		TotalSpent:  c.TotalSpent,
		TotalOrders: c.TotalOrders,
		LastOrderAt: c.LastOrderAt,
		CreatedAt:   c.CreatedAt,
	}
}
