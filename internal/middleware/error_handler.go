package middleware

import (
	"errors"
	"net/http"
	"time"

	"oishi/internal/apierror"
	"oishi/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AbortWithError writes the envelope for a service error and aborts.
// Unknown errors become a generic 500; the cause is only logged.
func AbortWithError(c *gin.Context, err error) {
	status, body := Translate(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Str("request_id", c.GetString(RequestIDKey)).
			Str("path", c.FullPath()).
			Str("method", c.Request.Method).
			Err(err).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

// Translate maps the service error taxonomy to a status and JSON body.
func Translate(err error) (int, any) {
	var (
		validation *service.ValidationError
		conflict   *service.ConflictError
		transition *service.TransitionError
		notFound   *service.NotFoundError
		upload     *service.UploadError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, apierror.NewValidationMsg(validation.Msg, validation.Fields)
	case errors.As(err, &conflict), errors.As(err, &transition):
		return http.StatusConflict, apierror.New(err.Error())
	case errors.As(err, &notFound):
		return http.StatusNotFound, apierror.New(err.Error())
	case errors.As(err, &upload):
		log.Warn().Err(err).Msg("upload failed")
		return http.StatusBadGateway, apierror.New("No se pudo subir el archivo. Intente nuevamente.")
	case errors.Is(err, service.ErrCredenciales):
		return http.StatusUnauthorized, apierror.New(err.Error())
	case errors.Is(err, service.ErrPermisos):
		return http.StatusForbidden, apierror.New(err.Error())
	default:
		return http.StatusInternalServerError, apierror.New("Error interno del servidor")
	}
}

// ErrorHandler turns errors attached with c.Error into a response when the
// handler did not write one. Stack traces never reach the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		AbortWithError(c, c.Errors.Last().Err)
	}
}

// Recovery handles panics and converts them into 500 responses.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", c.GetString(RequestIDKey)).
					Str("path", c.Request.URL.Path).
					Interface("panic", r).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
			}
		}()
		c.Next()
	}
}

// Logger logs each request with method, path, status, latency, and request_id.
// The realtime stream is long lived and logged once at close like any other.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.
			Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
