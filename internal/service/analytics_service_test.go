package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"oishi/internal/dto"
	"oishi/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

func pedidoResumen(status, tipo string, total int64, dia time.Time, items ...dto.ItemPedido) dto.Pedido {
	return dto.Pedido{ID: uuid.NewString(), Status: status, PaymentType: tipo, Total: total, CreatedAt: dia, Items: items}
}

func TestResumir(t *testing.T) {
	d1 := time.Date(2024, 6, 1, 13, 0, 0, 0, time.Local)
	d2 := time.Date(2024, 6, 2, 20, 0, 0, 0, time.Local)
	roll := dto.ItemPedido{Name: "Roll A", Price: 5000, Quantity: 2}
	te := dto.ItemPedido{Name: "Té", Price: 1000, Quantity: 1}

	res := Resumir([]dto.Pedido{
		pedidoResumen(model.EstadoCompletado, model.TipoPagoEfectivo, 10000, d2, roll),
		pedidoResumen(model.EstadoRetirado, model.TipoPagoOnline, 11000, d1, roll, te),
		pedidoResumen(model.EstadoRetirado, model.TipoPagoEfectivo, 1000, d1, te),
		pedidoResumen(model.EstadoPendiente, model.TipoPagoEfectivo, 99000, d1, roll),
		pedidoResumen(model.EstadoCancelado, model.TipoPagoTarjeta, 5000, d2, roll),
	})

	assert.Equal(t, int64(22000), res.TotalVentas)
	assert.Equal(t, 3, res.CantidadVentas)
	assert.True(t, decimal.NewFromInt(7333).Equal(res.TicketPromedio), res.TicketPromedio.String())
	assert.Equal(t, map[string]int{
		model.EstadoCompletado: 1,
		model.EstadoRetirado:   2,
		model.EstadoPendiente:  1,
		model.EstadoCancelado:  1,
	}, res.PorEstado)

	require.Len(t, res.PorTipoPago, 2)
	// Equal totals fall back to the payment type name
	assert.Equal(t, model.TipoPagoEfectivo, res.PorTipoPago[0].Tipo)
	assert.Equal(t, 2, res.PorTipoPago[0].Cantidad)
	assert.Equal(t, model.TipoPagoOnline, res.PorTipoPago[1].Tipo)
	assert.True(t, decimal.RequireFromString("50").Equal(res.PorTipoPago[1].Porcentaje))

	require.Len(t, res.TopProductos, 2)
	assert.Equal(t, dto.ProductoVendido{Nombre: "Roll A", Cantidad: 4, Total: 20000}, res.TopProductos[0])
	assert.Equal(t, dto.ProductoVendido{Nombre: "Té", Cantidad: 2, Total: 2000}, res.TopProductos[1])

	require.Len(t, res.PorDia, 2)
	assert.Equal(t, "2024-06-01", res.PorDia[0].Fecha)
	assert.Equal(t, int64(12000), res.PorDia[0].Total)
	assert.Equal(t, "2024-06-02", res.PorDia[1].Fecha)
}

func TestResumir_Vacio(t *testing.T) {
	res := Resumir(nil)
	assert.Zero(t, res.TotalVentas)
	assert.True(t, res.TicketPromedio.IsZero())
	assert.NotNil(t, res.PorTipoPago)
	assert.NotNil(t, res.TopProductos)
}

func analyticsFixture(t *testing.T, now time.Time) (*analyticsService, *memPedidoRepo) {
	t.Helper()
	pedidos := newMemPedidoRepo()
	items, err := json.Marshal([]model.ItemPedido{{ID: "1", Name: "Roll A", Price: 6000, Quantity: 2}})
	require.NoError(t, err)
	for _, dias := range []int{0, 3, 45} {
		pedidos.put(&model.Pedido{
			ID:          uuid.New(),
			ClientName:  "Ana",
			Items:       datatypes.JSON(items),
			Total:       12000,
			PaymentType: model.TipoPagoEfectivo,
			Status:      model.EstadoRetirado,
			CreatedAt:   now.AddDate(0, 0, -dias),
		})
	}
	svc := NewAnalyticsService(pedidos, newMemClienteRepo()).(*analyticsService)
	svc.now = func() time.Time { return now }
	return svc, pedidos
}

func TestAnalytics_RangoPorDefecto(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.Local)
	svc, _ := analyticsFixture(t, now)

	res, err := svc.Resumen(context.Background(), dto.AnalyticsFilter{})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", res.Desde)
	assert.Equal(t, "2024-06-30", res.Hasta)
	assert.Equal(t, 2, res.CantidadVentas)
	assert.Equal(t, int64(24000), res.TotalVentas)
}

func TestAnalytics_RangoInvalido(t *testing.T) {
	svc, _ := analyticsFixture(t, time.Now())
	_, err := svc.Resumen(context.Background(), dto.AnalyticsFilter{Desde: "2024-06-10", Hasta: "2024-06-01"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAnalytics_ExportCSV(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.Local)
	svc, _ := analyticsFixture(t, now)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), dto.AnalyticsFilter{}, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, columnasExport, rows[0])
	assert.Equal(t, "2x Roll A", rows[1][8])
	assert.Equal(t, "12000", rows[1][9])
}

func TestAnalytics_ExportXLSX(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.Local)
	svc, _ := analyticsFixture(t, now)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportXLSX(context.Background(), dto.AnalyticsFilter{}, &buf))

	x, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer x.Close()

	assert.Equal(t, []string{hojaPedidos, hojaResumen}, x.GetSheetList())
	rows, err := x.GetRows(hojaPedidos)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	total, err := x.GetCellValue(hojaResumen, "B1")
	require.NoError(t, err)
	assert.Equal(t, "24000", total)
}
