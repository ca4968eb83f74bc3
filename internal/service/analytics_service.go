package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"oishi/internal/dto"
	"oishi/internal/model"
	"oishi/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	defaultRangoDias = 30
	topProductosN    = 10
	hojaPedidos      = "Pedidos"
	hojaResumen      = "Resumen"
)

// AnalyticsService aggregates orders over a date range. Figures are computed
// in memory from the sanitized order list.
type AnalyticsService interface {
	Resumen(ctx context.Context, f dto.AnalyticsFilter) (*dto.ResumenResponse, error)
	ExportCSV(ctx context.Context, f dto.AnalyticsFilter, w io.Writer) error
	ExportXLSX(ctx context.Context, f dto.AnalyticsFilter, w io.Writer) error
}

type analyticsService struct {
	pedidos  repository.PedidoRepository
	clientes repository.ClienteRepository
	now      func() time.Time
}

func NewAnalyticsService(pedidos repository.PedidoRepository, clientes repository.ClienteRepository) AnalyticsService {
	return &analyticsService{pedidos: pedidos, clientes: clientes, now: time.Now}
}

// rango resolves the filter, defaulting to the last 30 days including today.
func (s *analyticsService) rango(f dto.AnalyticsFilter) (time.Time, time.Time, error) {
	d, h, err := rangoFechas(f.Desde, f.Hasta)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if h == nil {
		y, m, day := s.now().Date()
		t := time.Date(y, m, day, 0, 0, 0, 0, time.Local).AddDate(0, 0, 1)
		h = &t
	}
	if d == nil {
		t := h.AddDate(0, 0, -defaultRangoDias)
		d = &t
	}
	return *d, *h, nil
}

func (s *analyticsService) cargar(ctx context.Context, f dto.AnalyticsFilter) ([]dto.Pedido, time.Time, time.Time, error) {
	desde, hasta, err := s.rango(f)
	if err != nil {
		return nil, desde, hasta, err
	}
	rows, _, err := s.pedidos.List(ctx, repository.PedidoQuery{Desde: &desde, Hasta: &hasta})
	if err != nil {
		return nil, desde, hasta, persistErr("listar pedidos", err)
	}
	out := make([]dto.Pedido, len(rows))
	for i := range rows {
		out[i] = PedidoDesdeModelo(&rows[i])
	}
	return out, desde, hasta, nil
}

func (s *analyticsService) Resumen(ctx context.Context, f dto.AnalyticsFilter) (*dto.ResumenResponse, error) {
	pedidos, desde, hasta, err := s.cargar(ctx, f)
	if err != nil {
		return nil, err
	}
	res := Resumir(pedidos)
	res.Desde = desde.Format("2006-01-02")
	res.Hasta = hasta.AddDate(0, 0, -1).Format("2006-01-02")

	if s.clientes != nil {
		n, err := s.clientes.CountCreatedBetween(ctx, desde, hasta)
		if err != nil {
			return nil, persistErr("contar clientes", err)
		}
		res.ClientesNuevos = int(n)
	}
	return &res, nil
}

// Resumir computes the summary for a set of orders. Only completed and
// picked-up orders count as sales.
func Resumir(pedidos []dto.Pedido) dto.ResumenResponse {
	res := dto.ResumenResponse{
		TicketPromedio: decimal.Zero,
		PorEstado:      map[string]int{},
		PorTipoPago:    []dto.TipoPagoResumen{},
		TopProductos:   []dto.ProductoVendido{},
		PorDia:         []dto.VentaDia{},
	}

	porTipo := map[string]*dto.TipoPagoResumen{}
	porProducto := map[string]*dto.ProductoVendido{}
	porDia := map[string]*dto.VentaDia{}

	for _, p := range pedidos {
		res.PorEstado[p.Status]++
		if !model.GeneraVenta(p.Status) {
			continue
		}
		res.CantidadVentas++
		res.TotalVentas += p.Total

		tp, ok := porTipo[p.PaymentType]
		if !ok {
			tp = &dto.TipoPagoResumen{Tipo: p.PaymentType}
			porTipo[p.PaymentType] = tp
		}
		tp.Cantidad++
		tp.Total += p.Total

		fecha := p.CreatedAt.In(time.Local).Format("2006-01-02")
		vd, ok := porDia[fecha]
		if !ok {
			vd = &dto.VentaDia{Fecha: fecha}
			porDia[fecha] = vd
		}
		vd.Cantidad++
		vd.Total += p.Total

		for _, it := range p.Items {
			nombre := orDefault(it.Name, it.ID)
			pv, ok := porProducto[nombre]
			if !ok {
				pv = &dto.ProductoVendido{Nombre: nombre}
				porProducto[nombre] = pv
			}
			pv.Cantidad += it.Quantity
			pv.Total += it.Price * int64(it.Quantity)
		}
	}

	if res.CantidadVentas > 0 {
		res.TicketPromedio = decimal.NewFromInt(res.TotalVentas).
			Div(decimal.NewFromInt(int64(res.CantidadVentas))).Round(0)
	}

	for _, tp := range porTipo {
		tp.Porcentaje = decimal.Zero
		if res.TotalVentas > 0 {
			tp.Porcentaje = decimal.NewFromInt(tp.Total).Mul(decimal.NewFromInt(100)).
				Div(decimal.NewFromInt(res.TotalVentas)).Round(2)
		}
		res.PorTipoPago = append(res.PorTipoPago, *tp)
	}
	sort.Slice(res.PorTipoPago, func(i, j int) bool {
		if res.PorTipoPago[i].Total != res.PorTipoPago[j].Total {
			return res.PorTipoPago[i].Total > res.PorTipoPago[j].Total
		}
		return res.PorTipoPago[i].Tipo < res.PorTipoPago[j].Tipo
	})

	for _, pv := range porProducto {
		res.TopProductos = append(res.TopProductos, *pv)
	}
	sort.Slice(res.TopProductos, func(i, j int) bool {
		a, b := res.TopProductos[i], res.TopProductos[j]
		if a.Cantidad != b.Cantidad {
			return a.Cantidad > b.Cantidad
		}
		return a.Nombre < b.Nombre
	})
	if len(res.TopProductos) > topProductosN {
		res.TopProductos = res.TopProductos[:topProductosN]
	}

	for _, vd := range porDia {
		res.PorDia = append(res.PorDia, *vd)
	}
	sort.Slice(res.PorDia, func(i, j int) bool { return res.PorDia[i].Fecha < res.PorDia[j].Fecha })

	return res
}

// ── Export ────────────────────────────────────────────────────────────────────

var columnasExport = []string{
	"id", "fecha", "cliente", "rut", "telefono", "estado", "tipo_pago", "referencia_pago", "items", "total", "nota",
}

func filaExport(p dto.Pedido) []string {
	return []string{
		p.ID,
		p.CreatedAt.In(time.Local).Format("2006-01-02 15:04"),
		p.ClientName,
		p.ClientRut,
		p.ClientPhone,
		p.Status,
		p.PaymentType,
		p.PaymentRef,
		resumenItems(p.Items),
		strconv.FormatInt(p.Total, 10),
		p.Note,
	}
}

func resumenItems(items []dto.ItemPedido) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%dx %s", it.Quantity, it.Name)
	}
	return out
}

func (s *analyticsService) ExportCSV(ctx context.Context, f dto.AnalyticsFilter, w io.Writer) error {
	pedidos, _, _, err := s.cargar(ctx, f)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columnasExport); err != nil {
		return err
	}
	for _, p := range pedidos {
		if err := cw.Write(filaExport(p)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *analyticsService) ExportXLSX(ctx context.Context, f dto.AnalyticsFilter, w io.Writer) error {
	pedidos, _, _, err := s.cargar(ctx, f)
	if err != nil {
		return err
	}
	res := Resumir(pedidos)

	x := excelize.NewFile()
	defer x.Close()

	if err := x.SetSheetName("Sheet1", hojaPedidos); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	for i, col := range columnasExport {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		x.SetCellValue(hojaPedidos, cell, col)
	}
	for r, p := range pedidos {
		fila := filaExport(p)
		for c, v := range fila {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if c == 9 {
				x.SetCellValue(hojaPedidos, cell, p.Total)
				continue
			}
			x.SetCellValue(hojaPedidos, cell, v)
		}
	}

	if _, err := x.NewSheet(hojaResumen); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	x.SetCellValue(hojaResumen, "A1", "Total ventas")
	x.SetCellValue(hojaResumen, "B1", res.TotalVentas)
	x.SetCellValue(hojaResumen, "A2", "Cantidad ventas")
	x.SetCellValue(hojaResumen, "B2", res.CantidadVentas)
	x.SetCellValue(hojaResumen, "A3", "Ticket promedio")
	x.SetCellValue(hojaResumen, "B3", res.TicketPromedio.IntPart())
	x.SetCellValue(hojaResumen, "A5", "Tipo de pago")
	x.SetCellValue(hojaResumen, "B5", "Cantidad")
	x.SetCellValue(hojaResumen, "C5", "Total")
	x.SetCellValue(hojaResumen, "D5", "%")
	for i, tp := range res.PorTipoPago {
		row := strconv.Itoa(i + 6)
		x.SetCellValue(hojaResumen, "A"+row, tp.Tipo)
		x.SetCellValue(hojaResumen, "B"+row, tp.Cantidad)
		x.SetCellValue(hojaResumen, "C"+row, tp.Total)
		x.SetCellValue(hojaResumen, "D"+row, tp.Porcentaje.InexactFloat64())
	}

	if err := x.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
