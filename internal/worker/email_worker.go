package worker

// Sends the staff a new-order notification with the kitchen ticket attached.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"oishi/internal/dto"
	"oishi/internal/infra"
	"oishi/internal/service"

	"github.com/rs/zerolog/log"
)

// Sender delivers one e-mail. infra.Mailer implements it.
type Sender interface {
	Send(to, subject, body string, pdf []byte, pdfName string) error
}

type EmailWorker struct {
	mailer     Sender
	pedidos    PedidoStore
	to         string
	restaurant string
	widthMM    int
}

func NewEmailWorker(mailer Sender, pedidos PedidoStore, to, restaurant string, widthMM int) *EmailWorker {
	return &EmailWorker{mailer: mailer, pedidos: pedidos, to: to, restaurant: restaurant, widthMM: widthMM}
}

func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	if w.to == "" {
		log.Warn().Msg("email_worker: empty recipient, skipping")
		return nil
	}
	id, err := decodePedido(raw)
	if err != nil {
		return err
	}
	p, err := w.pedidos.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("email_worker: buscar pedido %s: %w", id, err)
	}

	pdf, err := renderTicket(p, w.restaurant, w.widthMM)
	if err != nil {
		// Still worth notifying without the attachment
		log.Warn().Err(err).Str("pedido_id", id.String()).Msg("email_worker: ticket render failed")
		pdf = nil
	}

	clean := service.PedidoDesdeModelo(p)
	subject := fmt.Sprintf("Nuevo pedido #%s - %s", infra.ShortID(clean.ID), clean.ClientName)
	name := fmt.Sprintf("ticket-%s.pdf", infra.ShortID(clean.ID))
	if err := w.mailer.Send(w.to, subject, cuerpoCorreo(clean), pdf, name); err != nil {
		return fmt.Errorf("email_worker: send: %w", err)
	}
	log.Info().Str("to", w.to).Str("pedido_id", clean.ID).Msg("email_worker: notification sent")
	return nil
}

func cuerpoCorreo(p dto.Pedido) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cliente: %s (%s)\n", p.ClientName, p.ClientPhone)
	fmt.Fprintf(&b, "RUT: %s\n", p.ClientRut)
	fmt.Fprintf(&b, "Pago: %s\n\n", p.PaymentType)
	for _, it := range p.Items {
		fmt.Fprintf(&b, "%d x %s  %s\n", it.Quantity, it.Name, infra.FormatCLP(it.Price*int64(it.Quantity)))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", infra.FormatCLP(p.Total))
	if p.Note != "" {
		fmt.Fprintf(&b, "Nota: %s\n", p.Note)
	}
	if p.PaymentRef != "" {
		fmt.Fprintf(&b, "Referencia de pago: %s\n", p.PaymentRef)
	}
	return b.String()
}
