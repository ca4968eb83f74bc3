package service

import (
	"context"
	"strings"
	"time"

	"oishi/internal/dto"
	"oishi/internal/infra"
	"oishi/internal/model"
	"oishi/internal/realtime"
	"oishi/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Guard keys for the register flows.
const (
	guardAbrirCaja  = "caja:abrir"
	guardCerrarCaja = "caja:cerrar"
)

type CajaService interface {
	Abrir(ctx context.Context, operadorID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error)
	RegistrarMovimiento(ctx context.Context, req dto.MovimientoRequest) (*dto.MovimientoResponse, error)
	Cerrar(ctx context.Context, req dto.CerrarCajaRequest) (*dto.ReporteCajaResponse, error)
	// Activa returns the open shift's report, or NotFoundError when none is open.
	Activa(ctx context.Context) (*dto.ReporteCajaResponse, error)
	Historial(ctx context.Context, filter dto.HistorialCajaFilter) (*dto.SesionCajaListResponse, error)
	ObtenerReporte(ctx context.Context, id uuid.UUID) (*dto.ReporteCajaResponse, error)
	// RegistrarVentaTx posts the sale movement for a completed order inside tx.
	// Returns nil without error when the sale already exists or no shift is open.
	RegistrarVentaTx(tx *gorm.DB, p *model.Pedido) (*model.MovimientoCaja, error)
}

type cajaService struct {
	repo  repository.CajaRepository
	guard InFlightGuard
	notif Notificador
}

func NewCajaService(repo repository.CajaRepository, guard InFlightGuard, notif Notificador) CajaService {
	return &cajaService{repo: repo, guard: guard, notif: notif}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────

func (s *cajaService) Abrir(ctx context.Context, operadorID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error) {
	if req.MontoInicial < 0 {
		return nil, newValidation("Monto inicial inválido", map[string]string{"monto_inicial": "debe ser mayor o igual a 0"})
	}

	var sesion *model.SesionCaja
	err := guarded(ctx, s.guard, guardAbrirCaja, func() error {
		if _, err := s.repo.FindSesionAbierta(ctx); err == nil {
			return &ConflictError{Msg: "ya existe una caja abierta"}
		} else if !repository.IsNotFound(err) {
			return persistErr("buscar caja abierta", err)
		}

		sesion = &model.SesionCaja{
			ID:              uuid.New(),
			OpenedBy:        operadorID,
			OpeningBalance:  req.MontoInicial,
			ExpectedBalance: req.MontoInicial,
			Status:          model.SesionAbierta,
			OpenedAt:        time.Now(),
		}
		if err := s.repo.CreateSesion(ctx, sesion); err != nil {
			// The partial unique index catches a concurrent open the lookup missed
			if repository.IsUniqueViolation(err) {
				return &ConflictError{Msg: "ya existe una caja abierta"}
			}
			return persistErr("abrir caja", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("sesion_id", sesion.ID.String()).Int64("monto_inicial", sesion.OpeningBalance).Msg("caja abierta")
	resp := mapSesion(sesion)
	return &resp, nil
}

// ── RegistrarMovimiento ──────────────────────────────────────────────────────

func (s *cajaService) RegistrarMovimiento(ctx context.Context, req dto.MovimientoRequest) (*dto.MovimientoResponse, error) {
	fields := map[string]string{}
	if req.Monto <= 0 {
		fields["monto"] = "debe ser mayor a 0"
	}
	if strings.TrimSpace(req.Descripcion) == "" {
		fields["descripcion"] = "requerida"
	}
	if req.Tipo != model.MovIngreso && req.Tipo != model.MovEgreso && req.Tipo != model.MovVenta {
		fields["tipo"] = "debe ser income, expense o sale"
	}
	if !metodoValido(req.MetodoPago) {
		fields["metodo_pago"] = "debe ser cash, card u online"
	}
	shiftID, err := uuid.Parse(req.SesionCajaID)
	if err != nil {
		fields["sesion_caja_id"] = "uuid inválido"
	}
	if len(fields) > 0 {
		return nil, newValidation("Movimiento inválido", fields)
	}

	sesion, err := s.repo.FindSesionByID(ctx, shiftID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &NotFoundError{Recurso: "sesión de caja"}
		}
		return nil, persistErr("buscar caja", err)
	}
	if sesion.Status != model.SesionAbierta {
		return nil, &ConflictError{Msg: "la caja está cerrada"}
	}

	mov := &model.MovimientoCaja{
		ID:            uuid.New(),
		ShiftID:       shiftID,
		Type:          req.Tipo,
		Amount:        req.Monto,
		Description:   strings.TrimSpace(req.Descripcion),
		PaymentMethod: req.MetodoPago,
		CreatedAt:     time.Now(),
	}
	if err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.registrarTx(tx, mov)
	}); err != nil {
		return nil, err
	}

	resp := mapMovimiento(*mov)
	publicar(ctx, s.notif, realtime.NewEvent(realtime.TablaMovimientos, realtime.Insert, resp.ID, resp).WithShift(resp.ShiftID))
	return &resp, nil
}

// registrarTx inserts mov and, for cash, moves expected_balance by its delta in
// the same transaction. The balance update is a single SQL increment, so two
// concurrent cash movements never lose an update.
func (s *cajaService) registrarTx(tx *gorm.DB, mov *model.MovimientoCaja) error {
	if err := s.repo.CreateMovimientoTx(tx, mov); err != nil {
		if repository.IsUniqueViolation(err) {
			return &ConflictError{Msg: "la venta de este pedido ya fue registrada"}
		}
		return persistErr("registrar movimiento", err)
	}
	delta := mov.Delta()
	if delta == 0 {
		return nil
	}
	rows, err := s.repo.AjustarEsperadoTx(tx, mov.ShiftID, delta)
	if err != nil {
		return persistErr("actualizar saldo esperado", err)
	}
	if rows == 0 {
		return &ConflictError{Msg: "la caja se cerró mientras se registraba el movimiento"}
	}
	return nil
}

// RegistrarVentaTx maps the order payment type to a register method
// (online→online, tarjeta→card, anything else→cash) and posts exactly one
// sale per order.
func (s *cajaService) RegistrarVentaTx(tx *gorm.DB, p *model.Pedido) (*model.MovimientoCaja, error) {
	sesion, err := s.repo.FindSesionAbiertaTx(tx)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn().Str("pedido_id", p.ID.String()).Int64("total", p.Total).
				Msg("pedido completado sin caja abierta: venta no registrada")
			return nil, nil
		}
		return nil, persistErr("buscar caja abierta", err)
	}

	existe, err := s.repo.ExisteVentaTx(tx, p.ID)
	if err != nil {
		return nil, persistErr("verificar venta", err)
	}
	if existe {
		log.Info().Str("pedido_id", p.ID.String()).Msg("venta ya registrada para el pedido, se omite")
		return nil, nil
	}

	orderID := p.ID
	mov := &model.MovimientoCaja{
		ID:            uuid.New(),
		ShiftID:       sesion.ID,
		Type:          model.MovVenta,
		Amount:        p.Total,
		Description:   "Venta pedido #" + infra.ShortID(p.ID.String()),
		PaymentMethod: model.MetodoPagoCaja(p.PaymentType),
		OrderID:       &orderID,
		CreatedAt:     time.Now(),
	}
	if mov.Amount <= 0 {
		log.Warn().Str("pedido_id", p.ID.String()).Msg("pedido con total 0: venta no registrada")
		return nil, nil
	}
	if err := s.registrarTx(tx, mov); err != nil {
		return nil, err
	}
	return mov, nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────

func (s *cajaService) Cerrar(ctx context.Context, req dto.CerrarCajaRequest) (*dto.ReporteCajaResponse, error) {
	fields := map[string]string{}
	if req.MontoReal < 0 {
		fields["monto_real"] = "debe ser mayor o igual a 0"
	}
	id, err := uuid.Parse(req.SesionCajaID)
	if err != nil {
		fields["sesion_caja_id"] = "uuid inválido"
	}
	if len(fields) > 0 {
		return nil, newValidation("Cierre inválido", fields)
	}

	err = guarded(ctx, s.guard, guardCerrarCaja, func() error {
		rows, err := s.repo.CerrarSesion(ctx, id, req.MontoReal, time.Now())
		if err != nil {
			return persistErr("cerrar caja", err)
		}
		if rows == 0 {
			if _, err := s.repo.FindSesionByID(ctx, id); repository.IsNotFound(err) {
				return &NotFoundError{Recurso: "sesión de caja"}
			}
			return &ConflictError{Msg: "la caja ya está cerrada"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reporte, err := s.ObtenerReporte(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("sesion_id", id.String()).
		Int64("esperado", reporte.Sesion.MontoEsperado).
		Int64("real", req.MontoReal).
		Str("varianza", reporte.Varianza.Clasificacion).
		Msg("caja cerrada")
	return reporte, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *cajaService) Activa(ctx context.Context) (*dto.ReporteCajaResponse, error) {
	sesion, err := s.repo.FindSesionAbierta(ctx)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &NotFoundError{Recurso: "caja abierta"}
		}
		return nil, persistErr("buscar caja abierta", err)
	}
	return s.buildReporte(ctx, sesion)
}

func (s *cajaService) Historial(ctx context.Context, filter dto.HistorialCajaFilter) (*dto.SesionCajaListResponse, error) {
	page, limit, offset := paginar(filter.Page, filter.Limit, 20)
	rows, total, err := s.repo.ListSesiones(ctx, offset, limit)
	if err != nil {
		return nil, persistErr("historial caja", err)
	}
	data := make([]dto.SesionCajaResponse, len(rows))
	for i := range rows {
		data[i] = mapSesion(&rows[i])
	}
	return &dto.SesionCajaListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

func (s *cajaService) ObtenerReporte(ctx context.Context, id uuid.UUID) (*dto.ReporteCajaResponse, error) {
	sesion, err := s.repo.FindSesionByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &NotFoundError{Recurso: "sesión de caja"}
		}
		return nil, persistErr("buscar caja", err)
	}
	return s.buildReporte(ctx, sesion)
}

func (s *cajaService) buildReporte(ctx context.Context, sesion *model.SesionCaja) (*dto.ReporteCajaResponse, error) {
	movs, err := s.repo.ListMovimientos(ctx, sesion.ID)
	if err != nil {
		return nil, persistErr("listar movimientos", err)
	}
	resp := &dto.ReporteCajaResponse{
		Sesion:      mapSesion(sesion),
		Movimientos: make([]dto.MovimientoResponse, len(movs)),
		Totales:     CalcularTotales(movs),
	}
	for i, m := range movs {
		resp.Movimientos[i] = mapMovimiento(m)
	}
	if sesion.ActualBalance != nil {
		v := CalcularVarianza(*sesion.ActualBalance, sesion.ExpectedBalance)
		resp.Varianza = &v
	}
	return resp, nil
}

// ── Pure helpers ──────────────────────────────────────────────────────────────

// CalcularTotales aggregates a movement list. Ingresos is sale + income,
// Egresos is expense, and the per-method subtotals count incoming money only.
// It has no hidden state: the same list always yields the same totals.
func CalcularTotales(movs []model.MovimientoCaja) dto.TotalesCaja {
	var t dto.TotalesCaja
	for _, m := range movs {
		if m.Type == model.MovEgreso {
			t.Egresos += m.Amount
			continue
		}
		t.Ingresos += m.Amount
		switch m.PaymentMethod {
		case model.MetodoEfectivo:
			t.Efectivo += m.Amount
		case model.MetodoTarjeta:
			t.Tarjeta += m.Amount
		case model.MetodoOnline:
			t.Online += m.Amount
		}
	}
	return t
}

// SaldoEsperado replays movements over an opening balance. Only cash movements count.
func SaldoEsperado(apertura int64, movs []model.MovimientoCaja) int64 {
	saldo := apertura
	for _, m := range movs {
		saldo += m.Delta()
	}
	return saldo
}

// CalcularVarianza is actual − expected: sobrante when positive, faltante when
// negative, cuadrado when zero.
func CalcularVarianza(actual, esperado int64) dto.VarianzaResponse {
	diff := actual - esperado
	clasif := "cuadrado"
	switch {
	case diff > 0:
		clasif = "sobrante"
	case diff < 0:
		clasif = "faltante"
	}
	return dto.VarianzaResponse{Monto: diff, Clasificacion: clasif}
}

func metodoValido(m string) bool {
	return m == model.MetodoEfectivo || m == model.MetodoTarjeta || m == model.MetodoOnline
}

func mapSesion(s *model.SesionCaja) dto.SesionCajaResponse {
	return dto.SesionCajaResponse{
		ID:            s.ID.String(),
		OpenedBy:      s.OpenedBy.String(),
		MontoInicial:  s.OpeningBalance,
		MontoEsperado: s.ExpectedBalance,
		MontoReal:     s.ActualBalance,
		Estado:        s.Status,
		OpenedAt:      s.OpenedAt,
		ClosedAt:      s.ClosedAt,
	}
}

func mapMovimiento(m model.MovimientoCaja) dto.MovimientoResponse {
	resp := dto.MovimientoResponse{
		ID:          m.ID.String(),
		ShiftID:     m.ShiftID.String(),
		Tipo:        m.Type,
		Monto:       m.Amount,
		Descripcion: m.Description,
		MetodoPago:  m.PaymentMethod,
		CreatedAt:   m.CreatedAt,
	}
	if m.OrderID != nil {
		oid := m.OrderID.String()
		resp.OrderID = &oid
	}
	return resp
}
