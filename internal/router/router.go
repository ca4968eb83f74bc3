package router

import (
	"context"
	"strings"
	"time"

	"oishi/internal/config"
	"oishi/internal/handler"
	"oishi/internal/infra"
	"oishi/internal/middleware"
	"oishi/internal/realtime"
	"oishi/internal/repository"
	"oishi/internal/service"
	"oishi/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the connections built by the composition root.
type Deps struct {
	DB    *gorm.DB
	RDB   *redis.Client
	Store infra.BlobStore
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis/Blob store
// ctx bounds background helpers such as the rate limiter purge.
func New(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	loginLimiter := middleware.LoginLimiter()
	checkoutLimiter := middleware.CheckoutLimiter()
	apiLimiter := middleware.APILimiter()
	middleware.StartPurge(ctx, loginLimiter, checkoutLimiter, apiLimiter)

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())

	// ── Infrastructure ───────────────────────────────────────────────────────
	db, rdb := deps.DB, deps.RDB
	publisher := realtime.NewPublisher(rdb)
	guard := infra.NewGuard(rdb, time.Duration(cfg.InFlightTTLSecs)*time.Second)
	dispatcher := worker.NewDispatcher(rdb)

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	productoRepo := repository.NewProductoRepository(db)
	categoriaRepo := repository.NewCategoriaRepository(db)
	pedidoRepo := repository.NewPedidoRepository(db)
	clienteRepo := repository.NewClienteRepository(db)
	cajaRepo := repository.NewCajaRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(usuarioRepo, cfg)
	productoSvc := service.NewProductoService(productoRepo, categoriaRepo, deps.Store, rdb)
	categoriaSvc := service.NewCategoriaService(categoriaRepo, productoSvc)
	clienteSvc := service.NewClienteService(clienteRepo, pedidoRepo)
	cajaSvc := service.NewCajaService(cajaRepo, guard, publisher)
	lifecycleSvc := service.NewLifecycleService(pedidoRepo, cajaSvc, publisher)
	pedidoSvc := service.NewPedidoService(pedidoRepo, clienteSvc, productoRepo, deps.Store, guard, publisher, dispatcher, authSvc, cfg)
	analyticsSvc := service.NewAnalyticsService(pedidoRepo, clienteRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usuariosH := handler.NewUsuariosHandler(authSvc)
	productosH := handler.NewProductosHandler(productoSvc)
	categoriasH := handler.NewCategoriasHandler(categoriaSvc)
	pedidosH := handler.NewPedidoHandler(pedidoSvc, lifecycleSvc)
	clientesH := handler.NewClienteHandler(clienteSvc)
	cajaH := handler.NewCajaHandler(cajaSvc)
	analyticsH := handler.NewAnalyticsHandler(analyticsSvc)
	realtimeH := handler.NewRealtimeHandler(rdb)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	var breaker handler.BreakerState
	if b, ok := deps.Store.(handler.BreakerState); ok {
		breaker = b
	}
	r.GET("/health", handler.Health(db, rdb, breaker))
	if strings.EqualFold(cfg.StorageProvider, infra.StorageProviderLocal) || cfg.StorageProvider == "" {
		r.Static(infra.LocalRoute, cfg.LocalStoragePath)
	}

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), authH.Login)
		auth.POST("/refresh", loginLimiter.Middleware(), authH.Refresh)
	}

	// Storefront
	r.GET("/v1/menu", productosH.Menu)
	r.GET("/v1/categorias", categoriasH.Listar)
	r.POST("/v1/pedidos", checkoutLimiter.Middleware(), pedidosH.Checkout)

	// Back office: every staff role
	jwtMW := middleware.JWTAuth(authSvc)
	v1 := r.Group("/v1", jwtMW, apiLimiter.Middleware())
	{
		v1.GET("/auth/me", authH.Me)

		pedidos := v1.Group("/pedidos")
		{
			pedidos.GET("", pedidosH.Listar)
			pedidos.POST("/manual", pedidosH.CrearManual)
			pedidos.GET("/:id", pedidosH.Obtener)
			pedidos.PATCH("/:id/estado", pedidosH.CambiarEstado)
			pedidos.POST("/:id/comprobante", pedidosH.AdjuntarComprobante)
			// Credentials are re-checked in the service as well
			pedidos.DELETE("", middleware.RequireRole(service.RolAdmin), pedidosH.Purgar)
		}

		clientes := v1.Group("/clientes")
		{
			clientes.GET("", clientesH.Listar)
			clientes.GET("/:id", clientesH.Obtener)
			clientes.GET("/:id/historial", clientesH.Historial)
		}

		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", cajaH.Abrir)
			caja.POST("/movimiento", cajaH.RegistrarMovimiento)
			caja.POST("/cerrar", cajaH.Cerrar)
			caja.GET("/activa", cajaH.Activa)
			caja.GET("/historial", cajaH.Historial)
			caja.GET("/:id/reporte", cajaH.ObtenerReporte)
		}

		// Availability toggles are staff work; catalog edits are admin only
		v1.GET("/productos", productosH.Listar)
		v1.GET("/productos/:id", productosH.ObtenerPorID)
		v1.PUT("/productos/:id", productosH.Actualizar)
		prods := v1.Group("/productos", middleware.RequireRole(service.RolAdmin))
		{
			prods.POST("", productosH.Crear)
			prods.DELETE("/:id", productosH.Desactivar)
			prods.POST("/:id/imagen", productosH.SubirImagen)
		}

		categorias := v1.Group("/categorias", middleware.RequireRole(service.RolAdmin))
		{
			categorias.POST("", categoriasH.Crear)
			categorias.PUT("/:id", categoriasH.Actualizar)
			categorias.DELETE("/:id", categoriasH.Desactivar)
		}

		analytics := v1.Group("/analytics", middleware.RequireRole(service.RolAdmin))
		{
			analytics.GET("/resumen", analyticsH.Resumen)
			analytics.GET("/export.csv", analyticsH.ExportCSV)
			analytics.GET("/export.xlsx", analyticsH.ExportXLSX)
		}

		v1.GET("/realtime/stream", realtimeH.Stream)

		usuarios := v1.Group("/usuarios", middleware.RequireRole(service.RolAdmin))
		{
			usuarios.GET("", usuariosH.Listar)
			usuarios.POST("", usuariosH.Guardar)
			usuarios.DELETE("/:id", usuariosH.Desactivar)
		}
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
