package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"oishi/internal/dto"
	"oishi/internal/handler"
	"oishi/internal/middleware"
	"oishi/internal/model"
	"oishi/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeCajaSvc struct {
	err         error
	gotOperador uuid.UUID
	gotMov      dto.MovimientoRequest
	gotCierre   dto.CerrarCajaRequest
	gotFiltro   dto.HistorialCajaFilter
}

func (f *fakeCajaSvc) Abrir(_ context.Context, operadorID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error) {
	f.gotOperador = operadorID
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SesionCajaResponse{ID: uuid.NewString(), OpenedBy: operadorID.String(), MontoInicial: req.MontoInicial, MontoEsperado: req.MontoInicial, Estado: model.SesionAbierta}, nil
}

func (f *fakeCajaSvc) RegistrarMovimiento(_ context.Context, req dto.MovimientoRequest) (*dto.MovimientoResponse, error) {
	f.gotMov = req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.MovimientoResponse{ID: uuid.NewString(), ShiftID: req.SesionCajaID, Tipo: req.Tipo, Monto: req.Monto, MetodoPago: req.MetodoPago}, nil
}

func (f *fakeCajaSvc) Cerrar(_ context.Context, req dto.CerrarCajaRequest) (*dto.ReporteCajaResponse, error) {
	f.gotCierre = req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ReporteCajaResponse{
		Sesion:   dto.SesionCajaResponse{ID: req.SesionCajaID, Estado: model.SesionCerrada},
		Varianza: &dto.VarianzaResponse{Monto: -1000, Clasificacion: "faltante"},
	}, nil
}

func (f *fakeCajaSvc) Activa(context.Context) (*dto.ReporteCajaResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ReporteCajaResponse{}, nil
}

func (f *fakeCajaSvc) Historial(_ context.Context, filter dto.HistorialCajaFilter) (*dto.SesionCajaListResponse, error) {
	f.gotFiltro = filter
	return &dto.SesionCajaListResponse{Data: []dto.SesionCajaResponse{}, Page: filter.Page, Limit: filter.Limit}, nil
}

func (f *fakeCajaSvc) ObtenerReporte(_ context.Context, id uuid.UUID) (*dto.ReporteCajaResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ReporteCajaResponse{Sesion: dto.SesionCajaResponse{ID: id.String()}}, nil
}

func (f *fakeCajaSvc) RegistrarVentaTx(*gorm.DB, *model.Pedido) (*model.MovimientoCaja, error) {
	return nil, nil
}

// cajaRouter injects claims for userID directly; an empty userID means no session.
func cajaRouter(svc service.CajaService, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.ClaimsKey, &service.Claims{UserID: userID, Username: "caja", Rol: service.RolStaff})
		}
		c.Next()
	})
	h := handler.NewCajaHandler(svc)
	r.POST("/caja/abrir", h.Abrir)
	r.POST("/caja/movimiento", h.RegistrarMovimiento)
	r.POST("/caja/cerrar", h.Cerrar)
	r.GET("/caja/activa", h.Activa)
	r.GET("/caja/historial", h.Historial)
	r.GET("/caja/:id/reporte", h.ObtenerReporte)
	return r
}

func TestCajaAbrir(t *testing.T) {
	operador := uuid.New()
	svc := &fakeCajaSvc{}
	r := cajaRouter(svc, operador.String())

	w := doJSON(r, http.MethodPost, "/caja/abrir", dto.AbrirCajaRequest{MontoInicial: 50000}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, operador, svc.gotOperador)

	var resp dto.SesionCajaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(50000), resp.MontoEsperado)

	w = doJSON(r, http.MethodPost, "/caja/abrir", map[string]int64{"monto_inicial": -1}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCajaAbrir_Errors(t *testing.T) {
	w := doJSON(cajaRouter(&fakeCajaSvc{}, ""), http.MethodPost, "/caja/abrir", dto.AbrirCajaRequest{}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(cajaRouter(&fakeCajaSvc{}, "no-uuid"), http.MethodPost, "/caja/abrir", dto.AbrirCajaRequest{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	busy := &fakeCajaSvc{err: &service.ConflictError{Msg: "ya existe una caja abierta"}}
	w = doJSON(cajaRouter(busy, uuid.NewString()), http.MethodPost, "/caja/abrir", dto.AbrirCajaRequest{}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ya existe una caja abierta")
}

func TestCajaMovimiento(t *testing.T) {
	sesion := uuid.NewString()
	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"cash income", map[string]any{"sesion_caja_id": sesion, "tipo": "income", "metodo_pago": "cash", "monto": 10000, "descripcion": "Cambio"}, http.StatusCreated},
		{"card expense", map[string]any{"sesion_caja_id": sesion, "tipo": "expense", "metodo_pago": "card", "monto": 3000, "descripcion": "Gas"}, http.StatusCreated},
		{"sale by hand", map[string]any{"sesion_caja_id": sesion, "tipo": "sale", "metodo_pago": "cash", "monto": 3000, "descripcion": "x"}, http.StatusUnprocessableEntity},
		{"unknown method", map[string]any{"sesion_caja_id": sesion, "tipo": "income", "metodo_pago": "cheque", "monto": 3000, "descripcion": "x"}, http.StatusUnprocessableEntity},
		{"bad shift id", map[string]any{"sesion_caja_id": "abc", "tipo": "income", "metodo_pago": "cash", "monto": 3000, "descripcion": "x"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeCajaSvc{}
			w := doJSON(cajaRouter(svc, uuid.NewString()), http.MethodPost, "/caja/movimiento", tc.body, "")
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			if tc.want == http.StatusCreated {
				assert.Equal(t, sesion, svc.gotMov.SesionCajaID)
			}
		})
	}
}

func TestCajaMovimiento_ServiceValidation(t *testing.T) {
	svc := &fakeCajaSvc{err: &service.ValidationError{Msg: "Movimiento inválido", Fields: map[string]string{"monto": "debe ser mayor a 0"}}}
	body := map[string]any{"sesion_caja_id": uuid.NewString(), "tipo": "income", "metodo_pago": "cash", "monto": 0, "descripcion": "x"}

	w := doJSON(cajaRouter(svc, uuid.NewString()), http.MethodPost, "/caja/movimiento", body, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "monto")
}

func TestCajaCerrar(t *testing.T) {
	svc := &fakeCajaSvc{}
	r := cajaRouter(svc, uuid.NewString())
	sesion := uuid.NewString()

	w := doJSON(r, http.MethodPost, "/caja/cerrar", dto.CerrarCajaRequest{SesionCajaID: sesion, MontoReal: 56000}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(56000), svc.gotCierre.MontoReal)

	var rep dto.ReporteCajaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	require.NotNil(t, rep.Varianza)
	assert.Equal(t, "faltante", rep.Varianza.Clasificacion)

	w = doJSON(r, http.MethodPost, "/caja/cerrar", map[string]any{"monto_real": 1}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCajaConsultas(t *testing.T) {
	svc := &fakeCajaSvc{}
	r := cajaRouter(svc, uuid.NewString())

	w := doJSON(r, http.MethodGet, "/caja/activa", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/caja/historial", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.gotFiltro.Page)
	assert.Equal(t, 20, svc.gotFiltro.Limit)

	w = doJSON(r, http.MethodGet, "/caja/historial?limit=500", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(r, http.MethodGet, "/caja/no-uuid/reporte", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	none := &fakeCajaSvc{err: &service.NotFoundError{Recurso: "caja abierta"}}
	w = doJSON(cajaRouter(none, uuid.NewString()), http.MethodGet, "/caja/activa", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
