package handler

import (
	"net/http"

	"oishi/internal/apierror"
	"oishi/internal/dto"
	"oishi/internal/middleware"
	"oishi/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthHandler struct{ svc service.AuthService }

func NewAuthHandler(svc service.AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// Login godoc
// @Summary Login de usuario
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "Credenciales"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me returns the session behind the bearer token. The back office calls it
// before opening realtime subscriptions.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, apierror.New("Sesión requerida"))
		return
	}
	c.JSON(http.StatusOK, dto.UsuarioResponse{
		ID:       claims.UserID,
		Username: claims.Username,
		Rol:      claims.Rol,
		Activo:   true,
	})
}

// ── Usuarios Handler ─────────────────────────────────────────────────────────

type UsuariosHandler struct{ svc service.AuthService }

func NewUsuariosHandler(svc service.AuthService) *UsuariosHandler {
	return &UsuariosHandler{svc: svc}
}

// Guardar POST /v1/usuarios (admin): creates the account or resets it
func (h *UsuariosHandler) Guardar(c *gin.Context) {
	var req dto.GuardarUsuarioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	u, err := h.svc.GuardarUsuario(c.Request.Context(), req.Username, req.Nombre, req.Password, req.Rol)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.MapUsuario(u))
}

// Listar GET /v1/usuarios (admin)
func (h *UsuariosHandler) Listar(c *gin.Context) {
	list, err := h.svc.ListarUsuarios(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Desactivar DELETE /v1/usuarios/:id (admin)
func (h *UsuariosHandler) Desactivar(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, apierror.New("Sesión requerida"))
		return
	}
	actor, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apierror.New("Sesión requerida"))
		return
	}
	if err := h.svc.DesactivarUsuario(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
