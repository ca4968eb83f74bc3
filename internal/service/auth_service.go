package service

import (
	"context"
	"errors"
	"time"

	"oishi/internal/config"
	"oishi/internal/dto"
	"oishi/internal/model"
	"oishi/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Roles.
const (
	RolAdmin = "admin"
	RolStaff = "staff"
)

const bcryptCost = 12

// Claims are the custom claims embedded in every access and refresh token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Rol      string `json:"rol"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	// ValidarToken parses and verifies a token, returning its claims.
	ValidarToken(token string) (*Claims, error)
	// VerificarCredenciales re-checks a username/password pair before
	// destructive admin actions.
	VerificarCredenciales(ctx context.Context, username, password string) (*model.Usuario, error)
	// GuardarUsuario creates the user or resets its password, name and role.
	GuardarUsuario(ctx context.Context, username, nombre, password, rol string) (*model.Usuario, error)
	ListarUsuarios(ctx context.Context) ([]dto.UsuarioResponse, error)
	// DesactivarUsuario blocks login for id. An admin cannot deactivate itself.
	DesactivarUsuario(ctx context.Context, actorID, id uuid.UUID) error
}

type authService struct {
	repo repository.UsuarioRepository
	cfg  *config.Config
}

func NewAuthService(repo repository.UsuarioRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.VerificarCredenciales(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	return s.emitir(user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	claims, err := s.ValidarToken(refreshToken)
	if err != nil {
		return nil, ErrCredenciales
	}
	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrCredenciales
	}
	user, err := s.repo.FindByID(ctx, uid)
	if err != nil || !user.Activo {
		return nil, ErrCredenciales
	}
	return s.emitir(user)
}

func (s *authService) ValidarToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.New("token inválido o expirado")
	}
	return claims, nil
}

func (s *authService) VerificarCredenciales(ctx context.Context, username, password string) (*model.Usuario, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrCredenciales
		}
		return nil, persistErr("buscar usuario", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrCredenciales
	}
	return user, nil
}

func (s *authService) GuardarUsuario(ctx context.Context, username, nombre, password, rol string) (*model.Usuario, error) {
	if rol != RolAdmin && rol != RolStaff {
		return nil, newValidation("Rol inválido", map[string]string{"rol": "debe ser admin o staff"})
	}
	if len(password) < 8 {
		return nil, newValidation("Contraseña inválida", map[string]string{"password": "mínimo 8 caracteres"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindAnyByUsername(ctx, username)
	switch {
	case err == nil:
		user.Nombre = nombre
		user.PasswordHash = string(hash)
		user.Rol = rol
		user.Activo = true
		if err := s.repo.Update(ctx, user); err != nil {
			return nil, persistErr("actualizar usuario", err)
		}
		return user, nil
	case repository.IsNotFound(err):
		user = &model.Usuario{
			ID:           uuid.New(),
			Username:     username,
			Nombre:       nombre,
			PasswordHash: string(hash),
			Rol:          rol,
			Activo:       true,
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, persistErr("crear usuario", err)
		}
		return user, nil
	default:
		return nil, persistErr("buscar usuario", err)
	}
}

func (s *authService) emitir(user *model.Usuario) (*dto.LoginResponse, error) {
	access, err := s.generateToken(user, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refresh, err := s.generateToken(user, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         MapUsuario(user),
	}, nil
}

// MapUsuario converts an account to its public form. The hash never leaves the service.
func MapUsuario(u *model.Usuario) dto.UsuarioResponse {
	return dto.UsuarioResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Nombre:   u.Nombre,
		Rol:      u.Rol,
		Activo:   u.Activo,
	}
}

func (s *authService) ListarUsuarios(ctx context.Context) ([]dto.UsuarioResponse, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, persistErr("listar usuarios", err)
	}
	out := make([]dto.UsuarioResponse, 0, len(list))
	for i := range list {
		out = append(out, MapUsuario(&list[i]))
	}
	return out, nil
}

func (s *authService) DesactivarUsuario(ctx context.Context, actorID, id uuid.UUID) error {
	if actorID == id {
		return &ConflictError{Msg: "no puedes desactivar tu propia cuenta"}
	}
	if err := s.repo.SetActivo(ctx, id, false); err != nil {
		if repository.IsNotFound(err) {
			return &NotFoundError{Recurso: "usuario"}
		}
		return persistErr("desactivar usuario", err)
	}
	return nil
}

func (s *authService) generateToken(user *model.Usuario, duration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		Rol:      user.Rol,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
