package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"oishi/internal/config"
	"oishi/internal/dto"
	"oishi/internal/infra"
	"oishi/internal/model"
	"oishi/internal/realtime"
	"oishi/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Archivo is an uploaded file held in memory.
type Archivo struct {
	Nombre      string
	ContentType string
	Datos       []byte
}

const maxComprobanteBytes = 10 << 20

// Per-line bounds of an order draft; they keep Σ price×quantity far from int64 overflow.
const (
	maxCantidadItem = 99
	maxPrecioItem   = 100_000_000
)

type PedidoService interface {
	// Checkout re-prices the cart from the live menu, creates the order and
	// returns it with the WhatsApp hand-off link.
	Checkout(ctx context.Context, req dto.CrearPedidoRequest, comprobante *Archivo) (*dto.CheckoutResponse, error)
	// Crear validates and persists an order draft as entered (staff manual entry).
	Crear(ctx context.Context, req dto.CrearPedidoRequest, comprobante *Archivo) (*dto.Pedido, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.Pedido, error)
	Listar(ctx context.Context, filter dto.PedidoFilter) (*dto.PedidoListResponse, error)
	AdjuntarComprobante(ctx context.Context, id uuid.UUID, archivo Archivo) (string, error)
	// Purgar bulk-deletes orders after re-checking admin credentials.
	Purgar(ctx context.Context, req dto.PurgarPedidosRequest) (*dto.PurgarPedidosResponse, error)
	EnlaceWhatsApp(p dto.Pedido) string
}

// VerificadorCredenciales re-checks a credential pair.
type VerificadorCredenciales interface {
	VerificarCredenciales(ctx context.Context, username, password string) (*model.Usuario, error)
}

type pedidoService struct {
	repo      repository.PedidoRepository
	clientes  ClienteService
	productos repository.ProductoRepository
	store     infra.BlobStore
	guard     InFlightGuard
	notif     Notificador
	jobs      JobQueue
	creds     VerificadorCredenciales
	cfg       *config.Config
}

func NewPedidoService(
	repo repository.PedidoRepository,
	clientes ClienteService,
	productos repository.ProductoRepository,
	store infra.BlobStore,
	guard InFlightGuard,
	notif Notificador,
	jobs JobQueue,
	creds VerificadorCredenciales,
	cfg *config.Config,
) PedidoService {
	return &pedidoService{
		repo:      repo,
		clientes:  clientes,
		productos: productos,
		store:     store,
		guard:     guard,
		notif:     notif,
		jobs:      jobs,
		creds:     creds,
		cfg:       cfg,
	}
}

// ── Checkout ──────────────────────────────────────────────────────────────────

func (s *pedidoService) Checkout(ctx context.Context, req dto.CrearPedidoRequest, comprobante *Archivo) (*dto.CheckoutResponse, error) {
	items, err := s.repreciar(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	req.Items = items

	p, err := s.Crear(ctx, req, comprobante)
	if err != nil {
		return nil, err
	}
	return &dto.CheckoutResponse{Pedido: *p, WhatsAppURL: s.EnlaceWhatsApp(*p)}, nil
}

// repreciar replaces every line's name and price with the menu's current
// values. Unknown or unavailable products fail validation.
func (s *pedidoService) repreciar(ctx context.Context, items []dto.ItemPedidoRequest) ([]dto.ItemPedidoRequest, error) {
	if len(items) == 0 {
		return items, nil
	}
	fields := map[string]string{}
	ids := make([]uuid.UUID, 0, len(items))
	for i, it := range items {
		id, err := uuid.Parse(it.ID)
		if err != nil {
			fields[fmt.Sprintf("items[%d].id", i)] = "producto inválido"
			continue
		}
		ids = append(ids, id)
	}
	if len(fields) > 0 {
		return nil, newValidation("Carrito inválido", fields)
	}

	productos, err := s.productos.FindByIDs(ctx, ids)
	if err != nil {
		return nil, persistErr("buscar productos", err)
	}
	porID := make(map[string]model.Producto, len(productos))
	for _, p := range productos {
		porID[p.ID.String()] = p
	}

	out := make([]dto.ItemPedidoRequest, len(items))
	for i, it := range items {
		// ids lines up with items: any unparsable id returned above
		prod, ok := porID[ids[i].String()]
		switch {
		case !ok:
			fields[fmt.Sprintf("items[%d].id", i)] = "producto no existe"
		case !prod.Disponible:
			fields[fmt.Sprintf("items[%d].id", i)] = prod.Nombre + " no está disponible"
		}
		out[i] = dto.ItemPedidoRequest{ID: prod.ID.String(), Name: prod.Nombre, Price: prod.Precio, Quantity: it.Quantity}
	}
	if len(fields) > 0 {
		return nil, newValidation("Carrito inválido", fields)
	}
	return out, nil
}

// ── Crear ─────────────────────────────────────────────────────────────────────
// 1. Validate the draft (an online payment needs a receipt)
// 2. Upload the receipt, outside the DB transaction
// 3. BEGIN TX: upsert client, insert order. COMMIT
// 4. Publish the change and enqueue the ticket / e-mail jobs
//
// A failure in 3 after 2 succeeded leaves an unreferenced receipt in storage;
// it is logged, not compensated.

func (s *pedidoService) Crear(ctx context.Context, req dto.CrearPedidoRequest, comprobante *Archivo) (*dto.Pedido, error) {
	items, total, err := validarBorrador(req, comprobante)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.ClientName)
	phone := NormalizarTelefono(req.ClientPhone, s.region())
	rut := NormalizarRut(req.ClientRut)

	var pedido *model.Pedido
	err = guarded(ctx, s.guard, "pedido:"+phone, func() error {
		ref, key, err := s.referenciaPago(ctx, req.PaymentType, comprobante)
		if err != nil {
			return err
		}

		itemsJSON, err := json.Marshal(items)
		if err != nil {
			return persistErr("serializar items", err)
		}

		now := time.Now()
		p := &model.Pedido{
			ID:          uuid.New(),
			ClientName:  name,
			ClientRut:   rut,
			ClientPhone: phone,
			Items:       datatypes.JSON(itemsJSON),
			Total:       total,
			PaymentType: req.PaymentType,
			PaymentRef:  ref,
			Note:        strings.TrimSpace(req.Note),
			Status:      model.EstadoPendiente,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
			clientID, err := s.clientes.UpsertTx(tx, name, rut, phone, total, now)
			if err != nil {
				return err
			}
			p.ClientID = &clientID
			if err := s.repo.CreateTx(tx, p); err != nil {
				return persistErr("crear pedido", err)
			}
			return nil
		})
		if txErr != nil {
			if key != "" {
				log.Warn().Err(txErr).Str("comprobante", key).Msg("pedido no creado: comprobante subido queda huérfano")
			}
			return txErr
		}
		pedido = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := PedidoDesdeModelo(pedido)
	log.Info().Str("pedido_id", resp.ID).Int64("total", resp.Total).Str("pago", resp.PaymentType).Msg("pedido creado")

	publicar(ctx, s.notif, realtime.NewEvent(realtime.TablaPedidos, realtime.Insert, resp.ID, resp))
	s.encolarTrabajos(ctx, pedido.ID)
	return &resp, nil
}

// validarBorrador checks required fields and returns the clean item list and
// its total. A client-supplied total must match the items.
func validarBorrador(req dto.CrearPedidoRequest, comprobante *Archivo) ([]model.ItemPedido, int64, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.ClientName) == "" {
		fields["client_name"] = "requerido"
	}
	if strings.TrimSpace(req.ClientPhone) == "" {
		fields["client_phone"] = "requerido"
	}
	if len(req.Items) == 0 {
		fields["items"] = "debe incluir al menos un producto"
	}
	if !model.TipoPagoValido(req.PaymentType) {
		fields["payment_type"] = "debe ser online, tienda, efectivo o tarjeta"
	}
	if req.PaymentType == model.TipoPagoOnline && (comprobante == nil || len(comprobante.Datos) == 0) {
		fields["comprobante"] = "requerido para pago online"
	}

	items := make([]model.ItemPedido, 0, len(req.Items))
	var total int64
	for i, it := range req.Items {
		if strings.TrimSpace(it.ID) == "" {
			fields[fmt.Sprintf("items[%d].id", i)] = "requerido"
		}
		switch {
		case it.Quantity < 1:
			fields[fmt.Sprintf("items[%d].quantity", i)] = "debe ser al menos 1"
		case it.Quantity > maxCantidadItem:
			fields[fmt.Sprintf("items[%d].quantity", i)] = fmt.Sprintf("máximo %d", maxCantidadItem)
		}
		switch {
		case it.Price < 0:
			fields[fmt.Sprintf("items[%d].price", i)] = "no puede ser negativo"
		case it.Price > maxPrecioItem:
			fields[fmt.Sprintf("items[%d].price", i)] = fmt.Sprintf("máximo %d", maxPrecioItem)
		}
		item := model.ItemPedido{ID: it.ID, Name: strings.TrimSpace(it.Name), Price: it.Price, Quantity: it.Quantity}
		items = append(items, item)
		if len(fields) > 0 {
			continue
		}
		sub := item.Subtotal()
		if total > math.MaxInt64-sub {
			fields[fmt.Sprintf("items[%d].price", i)] = "el total del pedido es demasiado grande"
			continue
		}
		total += sub
	}
	if req.Total != nil && len(fields) == 0 && *req.Total != total {
		fields["total"] = fmt.Sprintf("no coincide con los productos (%d)", total)
	}

	if len(fields) > 0 {
		return nil, 0, newValidation("Pedido inválido", fields)
	}
	return items, total, nil
}

// referenciaPago uploads the receipt for online payments and returns its URL
// and storage key, or the in-person placeholder otherwise.
func (s *pedidoService) referenciaPago(ctx context.Context, tipo string, comprobante *Archivo) (string, string, error) {
	switch tipo {
	case model.TipoPagoOnline:
		key, err := s.subirComprobante(ctx, *comprobante)
		if err != nil {
			return "", "", err
		}
		return s.store.PublicURL(key), key, nil
	case model.TipoPagoTarjeta:
		return model.RefPagoPresencial, "", nil
	default:
		return model.RefPagoLocal, "", nil
	}
}

func (s *pedidoService) subirComprobante(ctx context.Context, a Archivo) (string, error) {
	if len(a.Datos) == 0 {
		return "", newValidation("Comprobante vacío", map[string]string{"comprobante": "archivo vacío"})
	}
	if len(a.Datos) > maxComprobanteBytes {
		return "", newValidation("Comprobante muy grande", map[string]string{"comprobante": "máximo 10 MB"})
	}
	ct := strings.ToLower(a.ContentType)
	if !strings.HasPrefix(ct, "image/") && ct != "application/pdf" {
		return "", newValidation("Comprobante inválido", map[string]string{"comprobante": "debe ser una imagen o PDF"})
	}
	if s.store == nil {
		return "", &UploadError{Err: fmt.Errorf("almacenamiento no configurado")}
	}

	now := time.Now()
	key := fmt.Sprintf("comprobantes/%s/%s%s", now.Format("2006/01"), uuid.NewString(), extension(a))
	if err := s.store.Upload(ctx, key, a.Datos, ct); err != nil {
		return "", &UploadError{Err: err}
	}
	return key, nil
}

func (s *pedidoService) encolarTrabajos(ctx context.Context, id uuid.UUID) {
	if s.jobs == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	if err := s.jobs.EnqueueTicket(bg, id); err != nil {
		log.Warn().Err(err).Str("pedido_id", id.String()).Msg("no se pudo encolar la comanda")
	}
	if s.cfg != nil && s.cfg.NotificationsEnabled() {
		if err := s.jobs.EnqueueEmail(bg, id); err != nil {
			log.Warn().Err(err).Str("pedido_id", id.String()).Msg("no se pudo encolar el e-mail")
		}
	}
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *pedidoService) Obtener(ctx context.Context, id uuid.UUID) (*dto.Pedido, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &NotFoundError{Recurso: "pedido"}
		}
		return nil, persistErr("buscar pedido", err)
	}
	resp := PedidoDesdeModelo(p)
	return &resp, nil
}

func (s *pedidoService) Listar(ctx context.Context, filter dto.PedidoFilter) (*dto.PedidoListResponse, error) {
	desde, hasta, err := rangoFechas(filter.Desde, filter.Hasta)
	if err != nil {
		return nil, err
	}
	var estados []string
	for _, e := range filter.Estados {
		for _, part := range strings.Split(e, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			if !model.EstadoValido(part) {
				return nil, newValidation("Estado inválido", map[string]string{"estado": part})
			}
			estados = append(estados, part)
		}
	}

	page, limit, offset := paginar(filter.Page, filter.Limit, 50)
	rows, total, err := s.repo.List(ctx, repository.PedidoQuery{
		Estados: estados,
		Desde:   desde,
		Hasta:   hasta,
		Offset:  offset,
		Limit:   limit,
	})
	if err != nil {
		return nil, persistErr("listar pedidos", err)
	}
	data := make([]dto.Pedido, len(rows))
	for i := range rows {
		data[i] = PedidoDesdeModelo(&rows[i])
	}
	return &dto.PedidoListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

// ── AdjuntarComprobante ───────────────────────────────────────────────────────

func (s *pedidoService) AdjuntarComprobante(ctx context.Context, id uuid.UUID, archivo Archivo) (string, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return "", &NotFoundError{Recurso: "pedido"}
		}
		return "", persistErr("buscar pedido", err)
	}

	key, err := s.subirComprobante(ctx, archivo)
	if err != nil {
		return "", err
	}
	link := s.store.PublicURL(key)
	if err := s.repo.UpdatePaymentRef(ctx, id, link); err != nil {
		log.Warn().Err(err).Str("comprobante", key).Msg("comprobante subido pero no asociado al pedido")
		if repository.IsNotFound(err) {
			return "", &NotFoundError{Recurso: "pedido"}
		}
		return "", persistErr("asociar comprobante", err)
	}

	if p, err := s.repo.FindByID(ctx, id); err == nil {
		resp := PedidoDesdeModelo(p)
		publicar(ctx, s.notif, realtime.NewEvent(realtime.TablaPedidos, realtime.Update, resp.ID, resp))
	}
	return link, nil
}

// ── Purgar ────────────────────────────────────────────────────────────────────

func (s *pedidoService) Purgar(ctx context.Context, req dto.PurgarPedidosRequest) (*dto.PurgarPedidosResponse, error) {
	if s.creds == nil {
		return nil, ErrCredenciales
	}
	user, err := s.creds.VerificarCredenciales(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	if user.Rol != RolAdmin {
		return nil, ErrPermisos
	}

	var antes *time.Time
	if req.Antes != nil && *req.Antes != "" {
		t, err := time.ParseInLocation("2006-01-02", *req.Antes, time.Local)
		if err != nil {
			return nil, newValidation("Fecha inválida", map[string]string{"antes": "formato YYYY-MM-DD"})
		}
		antes = &t
	}

	n, err := s.repo.DeleteBefore(ctx, antes)
	if err != nil {
		return nil, persistErr("purgar pedidos", err)
	}
	log.Warn().Str("admin", user.Username).Int64("eliminados", n).Msg("pedidos purgados")

	publicar(ctx, s.notif, realtime.NewEvent(realtime.TablaPedidos, realtime.Delete, "", nil))
	return &dto.PurgarPedidosResponse{Eliminados: n}, nil
}

// ── WhatsApp ──────────────────────────────────────────────────────────────────

var noDigitos = regexp.MustCompile(`\D`)

// EnlaceWhatsApp builds the wa.me link that opens a chat with the restaurant
// pre-filled with the order summary.
func (s *pedidoService) EnlaceWhatsApp(p dto.Pedido) string {
	restaurante, numero := "Oishi Sushi", ""
	if s.cfg != nil {
		restaurante, numero = s.cfg.RestaurantName, s.cfg.WhatsAppNumber
	}
	return EnlaceWhatsApp(numero, restaurante, p)
}

// EnlaceWhatsApp is the link builder behind PedidoService.EnlaceWhatsApp.
func EnlaceWhatsApp(numero, restaurante string, p dto.Pedido) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s! Acabo de hacer el pedido #%s\n", restaurante, infra.ShortID(p.ID))
	for _, it := range p.Items {
		fmt.Fprintf(&b, "- %dx %s (%s)\n", it.Quantity, it.Name, infra.FormatCLP(int64(it.Quantity)*it.Price))
	}
	fmt.Fprintf(&b, "Total: %s\n", infra.FormatCLP(p.Total))
	fmt.Fprintf(&b, "Pago: %s\n", etiquetaPago(p.PaymentType))
	fmt.Fprintf(&b, "Nombre: %s", p.ClientName)
	if p.Note != "" {
		fmt.Fprintf(&b, "\nNota: %s", p.Note)
	}
	text := strings.ReplaceAll(url.QueryEscape(b.String()), "+", "%20")
	return "https://wa.me/" + noDigitos.ReplaceAllString(numero, "") + "?text=" + text
}

func etiquetaPago(tipo string) string {
	switch tipo {
	case model.TipoPagoOnline:
		return "Transferencia (comprobante adjunto)"
	case model.TipoPagoTarjeta:
		return "Tarjeta al retirar"
	default:
		return "Efectivo al retirar"
	}
}

func (s *pedidoService) region() string {
	if s.cfg == nil {
		return "CL"
	}
	return s.cfg.PhoneRegion
}

func extension(a Archivo) string {
	if ext := strings.ToLower(path.Ext(a.Nombre)); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch strings.ToLower(a.ContentType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".jpg"
	}
}
