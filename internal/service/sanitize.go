package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"oishi/internal/dto"
	"oishi/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Defaults applied by Sanitizar to missing fields.
const (
	ClienteDesconocido = "Cliente Desconocido"
	SinRut             = "Sin RUT"
)

// Sanitizar normalizes a raw order record into the canonical shape. It never
// fails: every field degrades to a default instead.
//
//   - items: a sequence is used as is; an encoded string/bytes is decoded
//     (a failed decode yields no items); any other shape yields no items
//   - total: coerced to an integer, 0 when not numeric
//   - client_name / client_rut: "Cliente Desconocido" / "Sin RUT" when missing
//   - status: "pending" when missing
//   - created_at: now when missing or unparseable
func Sanitizar(raw map[string]any) dto.Pedido {
	return sanitizarEn(raw, time.Now())
}

func sanitizarEn(raw map[string]any, now time.Time) dto.Pedido {
	p := dto.Pedido{
		ID:          asString(raw["id"]),
		ClientName:  orDefault(asString(raw["client_name"]), ClienteDesconocido),
		ClientRut:   orDefault(asString(raw["client_rut"]), SinRut),
		ClientPhone: asString(raw["client_phone"]),
		Items:       sanitizarItems(raw["items"]),
		PaymentType: asString(raw["payment_type"]),
		PaymentRef:  asString(raw["payment_ref"]),
		Note:        asString(raw["note"]),
		Status:      orDefault(asString(raw["status"]), model.EstadoPendiente),
		CreatedAt:   asTime(raw["created_at"], now),
	}
	if n, ok := asInt64(raw["total"]); ok {
		p.Total = n
	}
	if cid := asString(raw["client_id"]); cid != "" {
		p.ClientID = &cid
	}
	if t := asString(raw["ticket_url"]); t != "" {
		p.TicketURL = &t
	}
	return p
}

// PedidoDesdeModelo passes a stored row through Sanitizar.
func PedidoDesdeModelo(m *model.Pedido) dto.Pedido {
	return Sanitizar(RawPedido(m))
}

// RawPedido flattens a row into the loose map Sanitizar consumes.
func RawPedido(m *model.Pedido) map[string]any {
	raw := map[string]any{
		"id":           m.ID.String(),
		"client_name":  m.ClientName,
		"client_rut":   m.ClientRut,
		"client_phone": m.ClientPhone,
		"items":        m.Items,
		"total":        m.Total,
		"payment_type": m.PaymentType,
		"payment_ref":  m.PaymentRef,
		"note":         m.Note,
		"status":       m.Status,
		"created_at":   m.CreatedAt,
	}
	if m.ClientID != nil {
		raw["client_id"] = m.ClientID.String()
	}
	if m.TicketURL != nil {
		raw["ticket_url"] = *m.TicketURL
	}
	return raw
}

// ItemsModelo converts sanitized items back to the stored line shape.
func ItemsModelo(items []dto.ItemPedido) []model.ItemPedido {
	out := make([]model.ItemPedido, len(items))
	for i, it := range items {
		out[i] = model.ItemPedido{ID: it.ID, Name: it.Name, Price: it.Price, Quantity: it.Quantity}
	}
	return out
}

func sanitizarItems(v any) []dto.ItemPedido {
	switch t := v.(type) {
	case []dto.ItemPedido:
		return append([]dto.ItemPedido{}, t...)
	case []model.ItemPedido:
		out := make([]dto.ItemPedido, len(t))
		for i, it := range t {
			out[i] = dto.ItemPedido{ID: it.ID, Name: it.Name, Price: it.Price, Quantity: it.Quantity}
		}
		return out
	case []map[string]any:
		out := make([]dto.ItemPedido, 0, len(t))
		for _, m := range t {
			out = append(out, itemDesdeMapa(m))
		}
		return out
	case []any:
		out := make([]dto.ItemPedido, 0, len(t))
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				out = append(out, itemDesdeMapa(m))
			}
		}
		return out
	case string:
		return decodeItems([]byte(t), 2)
	case []byte:
		return decodeItems(t, 2)
	case json.RawMessage:
		return decodeItems(t, 2)
	case datatypes.JSON:
		return decodeItems(t, 2)
	default:
		return []dto.ItemPedido{}
	}
}

// decodeItems decodes an encoded item list. A payload that decodes to a string
// was encoded twice and is decoded again, up to depth times.
func decodeItems(b []byte, depth int) []dto.ItemPedido {
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return []dto.ItemPedido{}
	}
	if s, ok := decoded.(string); ok {
		if depth <= 0 {
			return []dto.ItemPedido{}
		}
		return decodeItems([]byte(s), depth-1)
	}
	if _, ok := decoded.([]any); !ok {
		return []dto.ItemPedido{}
	}
	return sanitizarItems(decoded)
}

func itemDesdeMapa(m map[string]any) dto.ItemPedido {
	it := dto.ItemPedido{
		ID:   asString(m["id"]),
		Name: asString(m["name"]),
	}
	if n, ok := asInt64(m["price"]); ok {
		it.Price = n
	}
	if n, ok := asInt64(m["quantity"]); ok {
		it.Quantity = int(n)
	}
	return it
}

// ── coercion helpers ──────────────────────────────────────────────────────────

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case uuid.UUID:
		if t == uuid.Nil {
			return ""
		}
		return t.String()
	case *uuid.UUID:
		if t == nil {
			return ""
		}
		return t.String()
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int, int64, int32:
		return fmt.Sprintf("%d", t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float32:
		return floatToInt(float64(t))
	case float64:
		return floatToInt(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return floatToInt(f)
		}
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return 0, false
	}
	return int64(math.Round(f)), true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asTime(v any, now time.Time) time.Time {
	switch t := v.(type) {
	case time.Time:
		if !t.IsZero() {
			return t
		}
	case *time.Time:
		if t != nil && !t.IsZero() {
			return *t
		}
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed
			}
		}
	}
	return now
}
