package handler

import (
	"net/http"

	"oishi/internal/apierror"
	"oishi/internal/dto"
	"oishi/internal/service"

	"github.com/gin-gonic/gin"
)

const maxImagenBytes = 5 << 20

type ProductosHandler struct{ svc service.ProductoService }

func NewProductosHandler(svc service.ProductoService) *ProductosHandler {
	return &ProductosHandler{svc: svc}
}

// Menu godoc
// @Summary Menú público agrupado por categoría
// @Tags menu
// @Produce json
// @Success 200 {array} dto.MenuCategoria
// @Router /v1/menu [get]
func (h *ProductosHandler) Menu(c *gin.Context) {
	menu, err := h.svc.Menu(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=60")
	c.JSON(http.StatusOK, menu)
}

func (h *ProductosHandler) Crear(c *gin.Context) {
	var req dto.CrearProductoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ProductosHandler) Listar(c *gin.Context) {
	var filter dto.ProductoFilter
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

func (h *ProductosHandler) ObtenerPorID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerPorID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductosHandler) Actualizar(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarProductoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Actualizar(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductosHandler) Desactivar(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Desactivar(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubirImagen POST /v1/productos/:id/imagen (multipart "imagen")
func (h *ProductosHandler) SubirImagen(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	archivo, err := readArchivo(c, "imagen", maxImagenBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	if archivo == nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"imagen": "required"}))
		return
	}
	resp, err := h.svc.SubirImagen(c.Request.Context(), id, *archivo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
