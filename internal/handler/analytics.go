package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"oishi/internal/dto"
	"oishi/internal/service"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct{ svc service.AnalyticsService }

func NewAnalyticsHandler(svc service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// Resumen godoc
// @Summary Ventas, ticket promedio y productos más vendidos
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Param desde query string false "YYYY-MM-DD (por defecto hace 30 días)"
// @Param hasta query string false "YYYY-MM-DD (por defecto hoy)"
// @Success 200 {object} dto.ResumenResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/analytics/resumen [get]
func (h *AnalyticsHandler) Resumen(c *gin.Context) {
	var f dto.AnalyticsFilter
	if !bindQuery(c, &f) {
		return
	}
	resp, err := h.svc.Resumen(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExportCSV GET /v1/analytics/export.csv
func (h *AnalyticsHandler) ExportCSV(c *gin.Context) {
	var f dto.AnalyticsFilter
	if !bindQuery(c, &f) {
		return
	}
	// Buffered so a failure can still produce a JSON error
	var buf bytes.Buffer
	if err := h.svc.ExportCSV(c.Request.Context(), f, &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", attachment("csv"))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportXLSX GET /v1/analytics/export.xlsx
func (h *AnalyticsHandler) ExportXLSX(c *gin.Context) {
	var f dto.AnalyticsFilter
	if !bindQuery(c, &f) {
		return
	}
	var buf bytes.Buffer
	if err := h.svc.ExportXLSX(c.Request.Context(), f, &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", attachment("xlsx"))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func attachment(ext string) string {
	return fmt.Sprintf("attachment; filename=pedidos-%s.%s", time.Now().Format("20060102"), ext)
}
