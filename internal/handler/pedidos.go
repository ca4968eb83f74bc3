package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"oishi/internal/apierror"
	"oishi/internal/dto"
	"oishi/internal/service"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 10 << 20

type PedidoHandler struct {
	svc       service.PedidoService
	lifecycle service.LifecycleService
}

func NewPedidoHandler(svc service.PedidoService, lifecycle service.LifecycleService) *PedidoHandler {
	return &PedidoHandler{svc: svc, lifecycle: lifecycle}
}

// bindPedido reads an order draft either as a JSON body or as multipart with
// a "pedido" JSON field plus an optional "comprobante" file.
func bindPedido(c *gin.Context) (*dto.CrearPedidoRequest, *service.Archivo, bool) {
	var req dto.CrearPedidoRequest
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if !bindAndValidate(c, &req) {
			return nil, nil, false
		}
		return &req, nil, true
	}

	raw := c.PostForm("pedido")
	if raw == "" {
		c.JSON(http.StatusBadRequest, apierror.New("Campo 'pedido' requerido"))
		return nil, nil, false
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return nil, nil, false
	}
	if !validateStruct(c, &req) {
		return nil, nil, false
	}
	archivo, err := readArchivo(c, "comprobante", maxUploadBytes)
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	return &req, archivo, true
}

// Checkout godoc
// @Summary Crea un pedido desde la tienda
// @Description Re-precia el carrito con el menú vigente. Pago online exige comprobante.
// @Tags pedidos
// @Accept json,mpfd
// @Produce json
// @Param pedido formData string false "Pedido en JSON (multipart)"
// @Param comprobante formData file false "Comprobante de transferencia"
// @Success 201 {object} dto.CheckoutResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Failure 502 {object} apierror.APIError
// @Router /v1/pedidos [post]
func (h *PedidoHandler) Checkout(c *gin.Context) {
	req, archivo, ok := bindPedido(c)
	if !ok {
		return
	}
	resp, err := h.svc.Checkout(c.Request.Context(), *req, archivo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CrearManual godoc
// @Summary Ingreso manual de un pedido por el personal
// @Tags pedidos
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Success 201 {object} dto.Pedido
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/pedidos/manual [post]
func (h *PedidoHandler) CrearManual(c *gin.Context) {
	req, archivo, ok := bindPedido(c)
	if !ok {
		return
	}
	p, err := h.svc.Crear(c.Request.Context(), *req, archivo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Listar godoc
// @Summary Lista pedidos, más recientes primero
// @Tags pedidos
// @Produce json
// @Security BearerAuth
// @Param estado query []string false "Estados" collectionFormat(multi)
// @Param desde query string false "YYYY-MM-DD"
// @Param hasta query string false "YYYY-MM-DD"
// @Param page query int false "Página"
// @Param limit query int false "Tamaño de página"
// @Success 200 {object} dto.PedidoListResponse
// @Router /v1/pedidos [get]
func (h *PedidoHandler) Listar(c *gin.Context) {
	var filter dto.PedidoFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Obtener godoc
// @Summary Obtiene un pedido
// @Tags pedidos
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del pedido"
// @Success 200 {object} dto.Pedido
// @Failure 404 {object} apierror.APIError
// @Router /v1/pedidos/{id} [get]
func (h *PedidoHandler) Obtener(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CambiarEstado godoc
// @Summary Mueve un pedido en el tablero
// @Description Completar o entregar registra la venta en la caja abierta.
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del pedido"
// @Param body body dto.CambiarEstadoRequest true "Nuevo estado"
// @Success 200 {object} dto.Pedido
// @Failure 409 {object} apierror.APIError
// @Router /v1/pedidos/{id}/estado [patch]
func (h *PedidoHandler) CambiarEstado(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.CambiarEstadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	p, err := h.lifecycle.CambiarEstado(c.Request.Context(), id, req.Estado)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// AdjuntarComprobante godoc
// @Summary Adjunta un comprobante de pago a un pedido existente
// @Tags pedidos
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del pedido"
// @Param comprobante formData file true "Comprobante"
// @Success 200 {object} dto.ComprobanteResponse
// @Failure 502 {object} apierror.APIError
// @Router /v1/pedidos/{id}/comprobante [post]
func (h *PedidoHandler) AdjuntarComprobante(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	archivo, err := readArchivo(c, "comprobante", maxUploadBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	if archivo == nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"comprobante": "required"}))
		return
	}
	url, err := h.svc.AdjuntarComprobante(c.Request.Context(), id, *archivo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ComprobanteResponse{URL: url})
}

// Purgar godoc
// @Summary Elimina pedidos en bloque
// @Description Requiere reingresar las credenciales de un administrador.
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.PurgarPedidosRequest true "Credenciales y fecha límite"
// @Success 200 {object} dto.PurgarPedidosResponse
// @Failure 401 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Router /v1/pedidos [delete]
func (h *PedidoHandler) Purgar(c *gin.Context) {
	var req dto.PurgarPedidosRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Purgar(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
