package worker

// Renders the kitchen ticket PDF of a new order, stores it in the blob store
// and saves its URL on the order.

import (
	"context"
	"encoding/json"
	"fmt"

	"oishi/internal/infra"
	"oishi/internal/model"
	"oishi/internal/realtime"
	"oishi/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PedidoStore is the slice of the order repository the workers need.
type PedidoStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Pedido, error)
	UpdateTicketURL(ctx context.Context, id uuid.UUID, url string) error
}

type TicketWorker struct {
	pedidos    PedidoStore
	store      infra.BlobStore
	notif      service.Notificador
	restaurant string
	widthMM    int
}

func NewTicketWorker(pedidos PedidoStore, store infra.BlobStore, notif service.Notificador, restaurant string, widthMM int) *TicketWorker {
	return &TicketWorker{pedidos: pedidos, store: store, notif: notif, restaurant: restaurant, widthMM: widthMM}
}

func (w *TicketWorker) Process(ctx context.Context, raw json.RawMessage) error {
	id, err := decodePedido(raw)
	if err != nil {
		return err
	}
	p, err := w.pedidos.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ticket_worker: buscar pedido %s: %w", id, err)
	}

	pdf, err := renderTicket(p, w.restaurant, w.widthMM)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("tickets/%s/%s.pdf", p.CreatedAt.Format("2006/01"), p.ID)
	if err := w.store.Upload(ctx, key, pdf, "application/pdf"); err != nil {
		return fmt.Errorf("ticket_worker: upload: %w", err)
	}
	url := w.store.PublicURL(key)
	if err := w.pedidos.UpdateTicketURL(ctx, p.ID, url); err != nil {
		return fmt.Errorf("ticket_worker: guardar url: %w", err)
	}

	p.TicketURL = &url
	if w.notif != nil {
		w.notif.Publish(ctx, realtime.NewEvent(realtime.TablaPedidos, realtime.Update, p.ID.String(), service.PedidoDesdeModelo(p)))
	}
	log.Info().Str("pedido_id", p.ID.String()).Str("url", url).Msg("ticket_worker: ticket generated")
	return nil
}

// renderTicket prints the sanitized items so malformed rows still render.
func renderTicket(p *model.Pedido, restaurant string, widthMM int) ([]byte, error) {
	clean := service.PedidoDesdeModelo(p)
	return infra.GenerateTicketPDF(infra.TicketInput{
		Restaurant: restaurant,
		WidthMM:    widthMM,
		Pedido:     p,
		Items:      service.ItemsModelo(clean.Items),
	})
}
