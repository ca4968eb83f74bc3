package service

import (
	"context"

	"oishi/internal/dto"
	"oishi/internal/model"
	"oishi/internal/realtime"
	"oishi/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// LifecycleService moves orders through the kanban state machine:
//
//	pending → active → completed → picked_up
//	pending → canceled
//
// Entering completed or picked_up posts the order's sale to the open shift,
// at most once per order.
type LifecycleService interface {
	CambiarEstado(ctx context.Context, id uuid.UUID, nuevo string) (*dto.Pedido, error)
}

type lifecycleService struct {
	pedidos repository.PedidoRepository
	caja    CajaService
	notif   Notificador
}

func NewLifecycleService(pedidos repository.PedidoRepository, caja CajaService, notif Notificador) LifecycleService {
	return &lifecycleService{pedidos: pedidos, caja: caja, notif: notif}
}

func (s *lifecycleService) CambiarEstado(ctx context.Context, id uuid.UUID, nuevo string) (*dto.Pedido, error) {
	if !model.EstadoValido(nuevo) {
		return nil, newValidation("Estado inválido", map[string]string{"estado": "valor desconocido"})
	}

	var (
		pedido *model.Pedido
		venta  *model.MovimientoCaja
	)
	err := runTx(ctx, s.pedidos.DB(), func(tx *gorm.DB) error {
		p, err := s.pedidos.FindByIDTx(tx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return &NotFoundError{Recurso: "pedido"}
			}
			return persistErr("buscar pedido", err)
		}
		if !model.TransicionPermitida(p.Status, nuevo) {
			return &TransitionError{From: p.Status, To: nuevo}
		}

		// Conditional update: zero rows means someone moved it first
		rows, err := s.pedidos.UpdateEstadoTx(tx, id, p.Status, nuevo)
		if err != nil {
			return persistErr("actualizar estado", err)
		}
		if rows == 0 {
			return &ConflictError{Msg: "el pedido cambió de estado, recargue el tablero"}
		}
		p.Status = nuevo

		if model.GeneraVenta(nuevo) {
			venta, err = s.caja.RegistrarVentaTx(tx, p)
			if err != nil {
				return err
			}
		}
		pedido = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := PedidoDesdeModelo(pedido)
	log.Info().Str("pedido_id", resp.ID).Str("estado", nuevo).Bool("venta", venta != nil).Msg("estado de pedido actualizado")

	publicar(ctx, s.notif, realtime.NewEvent(realtime.TablaPedidos, realtime.Update, resp.ID, resp))
	if venta != nil {
		mov := mapMovimiento(*venta)
		publicar(ctx, s.notif, realtime.NewEvent(realtime.TablaMovimientos, realtime.Insert, mov.ID, mov).WithShift(mov.ShiftID))
	}
	return &resp, nil
}
