package handler

import (
	"net/http"

	"oishi/internal/dto"
	"oishi/internal/service"

	"github.com/gin-gonic/gin"
)

type ClienteHandler struct{ svc service.ClienteService }

func NewClienteHandler(svc service.ClienteService) *ClienteHandler { return &ClienteHandler{svc: svc} }

// Listar godoc
// @Summary Lista clientes por monto gastado
// @Tags clientes
// @Produce json
// @Security BearerAuth
// @Param q query string false "Nombre, RUT o teléfono"
// @Success 200 {object} dto.ClienteListResponse
// @Router /v1/clientes [get]
func (h *ClienteHandler) Listar(c *gin.Context) {
	var filter dto.ClienteFilter
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
// @Summary Obtiene un cliente
// @Tags clientes
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del cliente"
// @Success 200 {object} dto.ClienteResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/clientes/{id} [get]
func (h *ClienteHandler) Obtener(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Historial godoc
// @Summary Pedidos de un cliente
// @Tags clientes
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del cliente"
// @Success 200 {array} dto.Pedido
// @Router /v1/clientes/{id}/historial [get]
func (h *ClienteHandler) Historial(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Historial(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
