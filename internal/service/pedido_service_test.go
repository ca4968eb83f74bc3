package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"oishi/internal/config"
	"oishi/internal/dto"
	"oishi/internal/model"
	"oishi/internal/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pedidoFixture struct {
	svc       PedidoService
	pedidos   *memPedidoRepo
	clientes  *memClienteRepo
	productos *memProductoRepo
	store     *memStore
	notif     *recNotif
	jobs      *recJobs
}

func newPedidoFixture(ps ...model.Producto) *pedidoFixture {
	f := &pedidoFixture{
		pedidos:   newMemPedidoRepo(),
		clientes:  newMemClienteRepo(),
		productos: newMemProductoRepo(ps...),
		store:     newMemStore(),
		notif:     &recNotif{},
		jobs:      &recJobs{},
	}
	cfg := &config.Config{
		RestaurantName: "Oishi Sushi",
		WhatsAppNumber: "+56 9 8765 4321",
		PhoneRegion:    "CL",
		SMTPHost:       "smtp.test",
		NotifyEmail:    "cocina@oishi.test",
	}
	admin := &model.Usuario{ID: uuid.New(), Username: "admin", Rol: RolAdmin}
	f.svc = NewPedidoService(f.pedidos, NewClienteService(f.clientes, f.pedidos), f.productos, f.store,
		nil, f.notif, f.jobs, fakeCreds{user: admin}, cfg)
	return f
}

func borrador(tipoPago string) dto.CrearPedidoRequest {
	return dto.CrearPedidoRequest{
		ClientName:  "Ana Pérez",
		ClientRut:   "12.345.678-9",
		ClientPhone: "9 8765 4321",
		Items:       []dto.ItemPedidoRequest{{ID: "1", Name: "Roll A", Price: 6000, Quantity: 2}},
		PaymentType: tipoPago,
	}
}

func TestPedido_OnlineSinComprobante(t *testing.T) {
	f := newPedidoFixture()

	_, err := f.svc.Crear(context.Background(), borrador(model.TipoPagoOnline), nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "comprobante")

	assert.Zero(t, f.pedidos.creates)
	assert.Zero(t, f.clientes.count())
	assert.Empty(t, f.store.objects)
	assert.Empty(t, f.notif.events)
}

func TestPedido_CrearEfectivo(t *testing.T) {
	f := newPedidoFixture()

	p, err := f.svc.Crear(context.Background(), borrador(model.TipoPagoEfectivo), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), p.Total)
	assert.Equal(t, model.EstadoPendiente, p.Status)
	assert.Equal(t, model.RefPagoLocal, p.PaymentRef)
	assert.Equal(t, "+56987654321", p.ClientPhone)
	assert.Equal(t, "12345678-9", p.ClientRut)
	require.NotNil(t, p.ClientID)

	assert.Equal(t, 1, f.pedidos.creates)
	assert.Equal(t, 1, f.clientes.count())
	assert.Len(t, f.notif.byTable(realtime.TablaPedidos), 1)
	assert.Len(t, f.jobs.tickets, 1)
	assert.Len(t, f.jobs.emails, 1)
}

func TestPedido_CrearTarjeta(t *testing.T) {
	f := newPedidoFixture()
	p, err := f.svc.Crear(context.Background(), borrador(model.TipoPagoTarjeta), nil)
	require.NoError(t, err)
	assert.Equal(t, model.RefPagoPresencial, p.PaymentRef)
}

func TestPedido_CrearOnlineSubeComprobante(t *testing.T) {
	f := newPedidoFixture()
	comprobante := &Archivo{Nombre: "transferencia.png", ContentType: "image/png", Datos: []byte("png")}

	p, err := f.svc.Crear(context.Background(), borrador(model.TipoPagoOnline), comprobante)
	require.NoError(t, err)
	require.Len(t, f.store.objects, 1)
	for key := range f.store.objects {
		assert.True(t, strings.HasPrefix(key, "comprobantes/"))
		assert.True(t, strings.HasSuffix(key, ".png"))
		assert.Equal(t, "https://cdn.test/"+key, p.PaymentRef)
	}
}

func TestPedido_FalloDeSubidaNoCreaPedido(t *testing.T) {
	f := newPedidoFixture()
	f.store.err = errors.New("bucket caído")
	comprobante := &Archivo{Nombre: "t.pdf", ContentType: "application/pdf", Datos: []byte("%PDF")}

	_, err := f.svc.Crear(context.Background(), borrador(model.TipoPagoOnline), comprobante)
	var uerr *UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Zero(t, f.pedidos.creates)
	assert.Zero(t, f.clientes.count())
}

func TestPedido_ComprobanteTipoInvalido(t *testing.T) {
	f := newPedidoFixture()
	comprobante := &Archivo{Nombre: "virus.exe", ContentType: "application/octet-stream", Datos: []byte("MZ")}

	_, err := f.svc.Crear(context.Background(), borrador(model.TipoPagoOnline), comprobante)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Empty(t, f.store.objects)
}

func TestPedido_BorradorInvalido(t *testing.T) {
	f := newPedidoFixture()
	total := int64(999)
	req := borrador(model.TipoPagoEfectivo)
	req.ClientName = " "
	req.Total = &total

	_, err := f.svc.Crear(context.Background(), req, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "client_name")

	req = borrador("cheque")
	req.Items = nil
	_, err = f.svc.Crear(context.Background(), req, nil)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "payment_type")
	assert.Contains(t, verr.Fields, "items")
}

func TestValidarBorrador_LimitesPorLinea(t *testing.T) {
	tests := []struct {
		name  string
		item  dto.ItemPedidoRequest
		campo string
	}{
		{"precio gigante", dto.ItemPedidoRequest{ID: "1", Price: 5e18, Quantity: 2}, "items[0].price"},
		{"precio sobre el máximo", dto.ItemPedidoRequest{ID: "1", Price: maxPrecioItem + 1, Quantity: 1}, "items[0].price"},
		{"cantidad sobre el máximo", dto.ItemPedidoRequest{ID: "1", Price: 1000, Quantity: maxCantidadItem + 1}, "items[0].quantity"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := borrador(model.TipoPagoEfectivo)
			req.Items = []dto.ItemPedidoRequest{tc.item}

			_, total, err := validarBorrador(req, nil)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.campo)
			assert.Zero(t, total)
		})
	}

	req := borrador(model.TipoPagoEfectivo)
	req.Items = []dto.ItemPedidoRequest{{ID: "1", Price: maxPrecioItem, Quantity: maxCantidadItem}}
	_, total, err := validarBorrador(req, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(maxPrecioItem*maxCantidadItem), total)
}

func TestPedido_CrearPrecioGiganteNoPersiste(t *testing.T) {
	f := newPedidoFixture()
	req := borrador(model.TipoPagoEfectivo)
	req.Items = []dto.ItemPedidoRequest{{ID: "1", Name: "Roll A", Price: 5e18, Quantity: 2}}

	_, err := f.svc.Crear(context.Background(), req, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items[0].price")
	assert.Zero(t, f.pedidos.creates)
	assert.Zero(t, f.clientes.count())
}

func TestPedido_TotalDelClienteDebeCoincidir(t *testing.T) {
	f := newPedidoFixture()
	req := borrador(model.TipoPagoEfectivo)
	total := int64(10000)
	req.Total = &total

	_, err := f.svc.Crear(context.Background(), req, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "total")
}

func TestPedido_MismoRutAcumula(t *testing.T) {
	f := newPedidoFixture()
	ctx := context.Background()

	a, err := f.svc.Crear(ctx, borrador(model.TipoPagoEfectivo), nil)
	require.NoError(t, err)
	req := borrador(model.TipoPagoEfectivo)
	req.ClientRut = "12345678-9"
	b, err := f.svc.Crear(ctx, req, nil)
	require.NoError(t, err)

	assert.Equal(t, *a.ClientID, *b.ClientID)
	c, err := f.clientes.FindByID(ctx, uuid.MustParse(*a.ClientID))
	require.NoError(t, err)
	assert.Equal(t, int64(24000), c.TotalSpent)
	assert.Equal(t, 2, c.TotalOrders)
}

func TestPedido_CheckoutRepreciaDesdeMenu(t *testing.T) {
	roll := model.Producto{ID: uuid.New(), Nombre: "Roll A", Precio: 6500, Disponible: true, Activo: true}
	agotado := model.Producto{ID: uuid.New(), Nombre: "Sashimi", Precio: 9000, Disponible: false, Activo: true}
	f := newPedidoFixture(roll, agotado)

	req := borrador(model.TipoPagoEfectivo)
	req.Items = []dto.ItemPedidoRequest{{ID: roll.ID.String(), Name: "Roll barato", Price: 1, Quantity: 2}}
	resp, err := f.svc.Checkout(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(13000), resp.Pedido.Total)
	assert.Equal(t, "Roll A", resp.Pedido.Items[0].Name)
	assert.True(t, strings.HasPrefix(resp.WhatsAppURL, "https://wa.me/56987654321?text="))

	req.Items = []dto.ItemPedidoRequest{{ID: agotado.ID.String(), Quantity: 1}}
	_, err = f.svc.Checkout(context.Background(), req, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items[0].id")

	req.Items = []dto.ItemPedidoRequest{{ID: uuid.NewString(), Quantity: 1}}
	_, err = f.svc.Checkout(context.Background(), req, nil)
	assert.ErrorAs(t, err, &verr)
}

func TestPedido_CheckoutAceptaFormasDeUUID(t *testing.T) {
	roll := model.Producto{ID: uuid.New(), Nombre: "Roll A", Precio: 6500, Disponible: true, Activo: true}
	f := newPedidoFixture(roll)

	for _, id := range []string{
		strings.ToUpper(roll.ID.String()),
		"{" + roll.ID.String() + "}",
		"urn:uuid:" + roll.ID.String(),
	} {
		t.Run(id, func(t *testing.T) {
			req := borrador(model.TipoPagoEfectivo)
			req.Items = []dto.ItemPedidoRequest{{ID: id, Quantity: 1}}
			resp, err := f.svc.Checkout(context.Background(), req, nil)
			require.NoError(t, err)
			assert.Equal(t, roll.ID.String(), resp.Pedido.Items[0].ID)
			assert.Equal(t, int64(6500), resp.Pedido.Total)
		})
	}
}

func TestPedido_AdjuntarComprobante(t *testing.T) {
	f := newPedidoFixture()
	ctx := context.Background()
	p, err := f.svc.Crear(ctx, borrador(model.TipoPagoEfectivo), nil)
	require.NoError(t, err)
	id := uuid.MustParse(p.ID)

	link, err := f.svc.AdjuntarComprobante(ctx, id, Archivo{Nombre: "c.jpg", ContentType: "image/jpeg", Datos: []byte("jpg")})
	require.NoError(t, err)

	got, err := f.svc.Obtener(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, link, got.PaymentRef)

	_, err = f.svc.AdjuntarComprobante(ctx, uuid.New(), Archivo{ContentType: "image/jpeg", Datos: []byte("jpg")})
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestPedido_Listar(t *testing.T) {
	f := newPedidoFixture()
	ctx := context.Background()
	_, err := f.svc.Crear(ctx, borrador(model.TipoPagoEfectivo), nil)
	require.NoError(t, err)

	res, err := f.svc.Listar(ctx, dto.PedidoFilter{Estados: []string{"pending,active"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)

	_, err = f.svc.Listar(ctx, dto.PedidoFilter{Estados: []string{"lost"}})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestPedido_Purgar(t *testing.T) {
	f := newPedidoFixture()
	ctx := context.Background()
	_, err := f.svc.Crear(ctx, borrador(model.TipoPagoEfectivo), nil)
	require.NoError(t, err)

	_, err = f.svc.Purgar(ctx, dto.PurgarPedidosRequest{Username: "admin", Password: "mala"})
	assert.ErrorIs(t, err, ErrCredenciales)

	res, err := f.svc.Purgar(ctx, dto.PurgarPedidosRequest{Username: "admin", Password: "correcta"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Eliminados)

	deletes := 0
	for _, ev := range f.notif.byTable(realtime.TablaPedidos) {
		if ev.Type == realtime.Delete {
			deletes++
		}
	}
	assert.Equal(t, 1, deletes)
}

func TestPedido_PurgarSoloAdmin(t *testing.T) {
	staff := &model.Usuario{Username: "cocina", Rol: RolStaff}
	svc := NewPedidoService(newMemPedidoRepo(), nil, nil, nil, nil, nil, nil, fakeCreds{user: staff}, nil)

	_, err := svc.Purgar(context.Background(), dto.PurgarPedidosRequest{Username: "cocina", Password: "correcta"})
	assert.ErrorIs(t, err, ErrPermisos)
}

func TestEnlaceWhatsApp(t *testing.T) {
	p := dto.Pedido{
		ID:          "a1b2c3d4-0000-0000-0000-000000000000",
		ClientName:  "Ana",
		Items:       []dto.ItemPedido{{Name: "Roll A", Price: 6000, Quantity: 2}},
		Total:       12000,
		PaymentType: model.TipoPagoOnline,
		Note:        "sin sésamo",
		CreatedAt:   time.Now(),
	}
	link := EnlaceWhatsApp("+56 9 8765 4321", "Oishi Sushi", p)
	require.True(t, strings.HasPrefix(link, "https://wa.me/56987654321?text="))
	assert.NotContains(t, link, "+")

	text, err := url.QueryUnescape(strings.TrimPrefix(link, "https://wa.me/56987654321?text="))
	require.NoError(t, err)
	assert.Contains(t, text, "Hola Oishi Sushi! Acabo de hacer el pedido #A1B2C3D4")
	assert.Contains(t, text, "- 2x Roll A ($12.000)")
	assert.Contains(t, text, "Total: $12.000")
	assert.Contains(t, text, "Pago: Transferencia (comprobante adjunto)")
	assert.Contains(t, text, "Nota: sin sésamo")
}
