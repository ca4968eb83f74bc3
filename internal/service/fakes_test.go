package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"oishi/internal/dto"
	"oishi/internal/model"
	"oishi/internal/realtime"
	"oishi/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── In-memory CajaRepository ─────────────────────────────────────────────────

type memCajaRepo struct {
	mu          sync.Mutex
	sesiones    map[uuid.UUID]*model.SesionCaja
	movimientos []model.MovimientoCaja
}

func newMemCajaRepo() *memCajaRepo {
	return &memCajaRepo{sesiones: map[uuid.UUID]*model.SesionCaja{}}
}

func (r *memCajaRepo) CreateSesion(_ context.Context, s *model.SesionCaja) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.sesiones {
		if o.Status == model.SesionAbierta && s.Status == model.SesionAbierta {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *s
	r.sesiones[s.ID] = &cp
	return nil
}

func (r *memCajaRepo) abierta() (*model.SesionCaja, error) {
	for _, s := range r.sesiones {
		if s.Status == model.SesionAbierta {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memCajaRepo) FindSesionAbierta(_ context.Context) (*model.SesionCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abierta()
}

func (r *memCajaRepo) FindSesionAbiertaTx(_ *gorm.DB) (*model.SesionCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abierta()
}

func (r *memCajaRepo) FindSesionByID(_ context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sesiones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memCajaRepo) CerrarSesion(_ context.Context, id uuid.UUID, actual int64, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sesiones[id]
	if !ok || s.Status != model.SesionAbierta {
		return 0, nil
	}
	s.Status = model.SesionCerrada
	s.ActualBalance = &actual
	s.ClosedAt = &at
	return 1, nil
}

func (r *memCajaRepo) ListSesiones(_ context.Context, offset, limit int) ([]model.SesionCaja, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.SesionCaja, 0, len(r.sesiones))
	for _, s := range r.sesiones {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *memCajaRepo) CreateMovimientoTx(_ *gorm.DB, m *model.MovimientoCaja) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Type == model.MovVenta && m.OrderID != nil {
		for _, o := range r.movimientos {
			if o.OrderID != nil && *o.OrderID == *m.OrderID && o.Type == model.MovVenta {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	r.movimientos = append(r.movimientos, *m)
	return nil
}

func (r *memCajaRepo) AjustarEsperadoTx(_ *gorm.DB, shiftID uuid.UUID, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sesiones[shiftID]
	if !ok || s.Status != model.SesionAbierta {
		return 0, nil
	}
	s.ExpectedBalance += delta
	return 1, nil
}

func (r *memCajaRepo) ExisteVentaTx(_ *gorm.DB, orderID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.movimientos {
		if m.Type == model.MovVenta && m.OrderID != nil && *m.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memCajaRepo) ListMovimientos(_ context.Context, shiftID uuid.UUID) ([]model.MovimientoCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.MovimientoCaja
	for i := len(r.movimientos) - 1; i >= 0; i-- {
		if r.movimientos[i].ShiftID == shiftID {
			out = append(out, r.movimientos[i])
		}
	}
	return out, nil
}

func (r *memCajaRepo) DB() *gorm.DB { return nil }

func (r *memCajaRepo) ventas() []model.MovimientoCaja {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.MovimientoCaja
	for _, m := range r.movimientos {
		if m.Type == model.MovVenta {
			out = append(out, m)
		}
	}
	return out
}

// ── In-memory PedidoRepository ───────────────────────────────────────────────

type memPedidoRepo struct {
	mu      sync.Mutex
	pedidos map[uuid.UUID]*model.Pedido
	creates int
}

func newMemPedidoRepo() *memPedidoRepo {
	return &memPedidoRepo{pedidos: map[uuid.UUID]*model.Pedido{}}
}

func (r *memPedidoRepo) put(p *model.Pedido) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.pedidos[p.ID] = &cp
}

func (r *memPedidoRepo) CreateTx(_ *gorm.DB, p *model.Pedido) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	cp := *p
	r.pedidos[p.ID] = &cp
	return nil
}

func (r *memPedidoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Pedido, error) {
	return r.FindByIDTx(nil, id)
}

func (r *memPedidoRepo) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.Pedido, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pedidos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPedidoRepo) List(_ context.Context, q repository.PedidoQuery) ([]model.Pedido, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Pedido
	for _, p := range r.pedidos {
		if len(q.Estados) > 0 && !contiene(q.Estados, p.Status) {
			continue
		}
		if q.ClientID != nil && (p.ClientID == nil || *p.ClientID != *q.ClientID) {
			continue
		}
		if q.Desde != nil && p.CreatedAt.Before(*q.Desde) {
			continue
		}
		if q.Hasta != nil && !p.CreatedAt.Before(*q.Hasta) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memPedidoRepo) UpdateEstadoTx(_ *gorm.DB, id uuid.UUID, from, to string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pedidos[id]
	if !ok || p.Status != from {
		return 0, nil
	}
	p.Status = to
	return 1, nil
}

func (r *memPedidoRepo) UpdatePaymentRef(_ context.Context, id uuid.UUID, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pedidos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.PaymentRef = ref
	return nil
}

func (r *memPedidoRepo) UpdateTicketURL(_ context.Context, id uuid.UUID, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pedidos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.TicketURL = &url
	return nil
}

func (r *memPedidoRepo) DeleteBefore(_ context.Context, t *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, p := range r.pedidos {
		if t == nil || p.CreatedAt.Before(*t) {
			delete(r.pedidos, id)
			n++
		}
	}
	return n, nil
}

func (r *memPedidoRepo) DB() *gorm.DB { return nil }

func contiene(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// ── In-memory ClienteRepository ──────────────────────────────────────────────

type memClienteRepo struct {
	mu       sync.Mutex
	clientes map[uuid.UUID]*model.Cliente
}

func newMemClienteRepo() *memClienteRepo {
	return &memClienteRepo{clientes: map[uuid.UUID]*model.Cliente{}}
}

func (r *memClienteRepo) FindByRutTx(_ *gorm.DB, rut string) (*model.Cliente, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clientes {
		if c.Rut == rut {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memClienteRepo) CreateTx(_ *gorm.DB, c *model.Cliente) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.clientes[c.ID] = &cp
	return nil
}

func (r *memClienteRepo) RegistrarPedidoTx(_ *gorm.DB, id uuid.UUID, name, phone string, total int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clientes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Name, c.Phone = name, phone
	c.TotalSpent += total
	c.TotalOrders++
	c.LastOrderAt = &at
	return nil
}

func (r *memClienteRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Cliente, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clientes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memClienteRepo) List(_ context.Context, q string, offset, limit int) ([]model.Cliente, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Cliente
	for _, c := range r.clientes {
		if q == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(q)) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalSpent > out[j].TotalSpent })
	return out, int64(len(out)), nil
}

func (r *memClienteRepo) CountCreatedBetween(_ context.Context, desde, hasta time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.clientes {
		if !c.CreatedAt.Before(desde) && c.CreatedAt.Before(hasta) {
			n++
		}
	}
	return n, nil
}

func (r *memClienteRepo) DB() *gorm.DB { return nil }

func (r *memClienteRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clientes)
}

// ── In-memory ProductoRepository ─────────────────────────────────────────────

type memProductoRepo struct {
	productos map[uuid.UUID]*model.Producto
}

func newMemProductoRepo(ps ...model.Producto) *memProductoRepo {
	r := &memProductoRepo{productos: map[uuid.UUID]*model.Producto{}}
	for i := range ps {
		p := ps[i]
		r.productos[p.ID] = &p
	}
	return r
}

func (r *memProductoRepo) Create(_ context.Context, p *model.Producto) error {
	cp := *p
	r.productos[p.ID] = &cp
	return nil
}

func (r *memProductoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Producto, error) {
	p, ok := r.productos[id]
	if !ok || !p.Activo {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProductoRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.Producto, error) {
	var out []model.Producto
	for _, id := range ids {
		if p, ok := r.productos[id]; ok && p.Activo {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memProductoRepo) List(_ context.Context, _ dto.ProductoFilter) ([]model.Producto, int64, error) {
	var out []model.Producto
	for _, p := range r.productos {
		if p.Activo {
			out = append(out, *p)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memProductoRepo) ListMenu(ctx context.Context) ([]model.Producto, error) {
	all, _, _ := r.List(ctx, dto.ProductoFilter{})
	var out []model.Producto
	for _, p := range all {
		if p.Disponible {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProductoRepo) Update(_ context.Context, p *model.Producto) error {
	cp := *p
	r.productos[p.ID] = &cp
	return nil
}

func (r *memProductoRepo) UpdateImagen(_ context.Context, id uuid.UUID, url string) error {
	p, ok := r.productos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.ImagenURL = &url
	return nil
}

func (r *memProductoRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	if p, ok := r.productos[id]; ok {
		p.Activo = false
	}
	return nil
}

// ── Collaborators ────────────────────────────────────────────────────────────

type recNotif struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (n *recNotif) Publish(_ context.Context, ev realtime.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recNotif) byTable(table string) []realtime.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []realtime.Event
	for _, ev := range n.events {
		if ev.Table == table {
			out = append(out, ev)
		}
	}
	return out
}

type memStore struct {
	objects map[string][]byte
	err     error
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) Upload(_ context.Context, key string, data []byte, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.objects[key] = data
	return nil
}

func (s *memStore) PublicURL(key string) string { return "https://cdn.test/" + key }

type recJobs struct {
	tickets []uuid.UUID
	emails  []uuid.UUID
}

func (j *recJobs) EnqueueTicket(_ context.Context, id uuid.UUID) error {
	j.tickets = append(j.tickets, id)
	return nil
}

func (j *recJobs) EnqueueEmail(_ context.Context, id uuid.UUID) error {
	j.emails = append(j.emails, id)
	return nil
}

type fakeCreds struct {
	user *model.Usuario
}

func (f fakeCreds) VerificarCredenciales(_ context.Context, username, password string) (*model.Usuario, error) {
	if f.user == nil || username != f.user.Username || password != "correcta" {
		return nil, ErrCredenciales
	}
	return f.user, nil
}
