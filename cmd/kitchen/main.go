// Terminal kitchen display. Shows pending, active and completed orders in
// three columns and moves them forward from stdin commands.
//
//	a <id>   advance (pending→active→completed→picked_up)
//	x <id>   cancel a pending order
//	c        cash movements of the open shift
//	r        reload
//	q        quit
//
// <id> is any unique prefix of the order id.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"oishi/internal/board"
	"oishi/internal/config"
	"oishi/internal/dto"
	"oishi/internal/infra"
	"oishi/internal/model"
	"oishi/internal/realtime"
	"oishi/internal/repository"
	"oishi/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// lifecycleWriter persists board moves through the order lifecycle.
type lifecycleWriter struct {
	svc service.LifecycleService
}

func (w lifecycleWriter) CambiarEstado(ctx context.Context, id, estado string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	_, err = w.svc.CambiarEstado(ctx, uid, estado)
	return err
}

// repoLoader reads the three board columns from Postgres.
type repoLoader struct {
	repo repository.PedidoRepository
}

func (l repoLoader) Cargar(ctx context.Context) ([]dto.Pedido, error) {
	rows, _, err := l.repo.List(ctx, repository.PedidoQuery{Estados: board.Columnas})
	if err != nil {
		return nil, err
	}
	out := make([]dto.Pedido, len(rows))
	for i := range rows {
		out[i] = service.PedidoDesdeModelo(&rows[i])
	}
	return out, nil
}

var siguiente = map[string]string{
	model.EstadoPendiente:  model.EstadoActivo,
	model.EstadoActivo:     model.EstadoCompletado,
	model.EstadoCompletado: model.EstadoRetirado,
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).Level(zerolog.InfoLevel)

	username := flag.String("username", os.Getenv("KITCHEN_USER"), "staff login; defaults to $KITCHEN_USER")
	password := flag.String("password", os.Getenv("KITCHEN_PASSWORD"), "staff password; defaults to $KITCHEN_PASSWORD")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auth := service.NewAuthService(repository.NewUsuarioRepository(db), cfg)
	sesion, err := auth.Login(ctx, dto.LoginRequest{Username: *username, Password: *password})
	if err != nil {
		log.Fatal().Err(err).Msg("login failed")
	}
	token := sesion.AccessToken

	publisher := realtime.NewPublisher(rdb)
	pedidoRepo := repository.NewPedidoRepository(db)
	cajaSvc := service.NewCajaService(repository.NewCajaRepository(db), infra.NewGuard(rdb, time.Duration(cfg.InFlightTTLSecs)*time.Second), publisher)
	lifecycle := service.NewLifecycleService(pedidoRepo, cajaSvc, publisher)

	b := board.New(lifecycleWriter{svc: lifecycle}, repoLoader{repo: pedidoRepo})
	if err := b.Reload(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load orders")
	}

	refresh := make(chan struct{}, 1)
	listener := realtime.NewListener(rdb, func(context.Context) error {
		_, err := auth.ValidarToken(token)
		return err
	})
	sub, err := listener.SubscribeWhenAuthenticated(ctx, 5*time.Second, realtime.TablaPedidos, realtime.Filter{}, func(realtime.Event) {
		select {
		case refresh <- struct{}{}:
		default:
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("realtime subscription failed")
	}
	defer sub.Close()

	caja := newCajaFeed(cajaSvc.Activa, func(ctx context.Context, table string, f realtime.Filter, fn func(realtime.Event)) (io.Closer, error) {
		s, err := listener.Subscribe(ctx, table, f, fn)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	caja.sync(ctx)
	defer caja.close()

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	render(os.Stdout, b)
	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh:
			caja.sync(ctx)
			if err := b.Reload(ctx); err != nil {
				log.Warn().Err(err).Msg("reload failed")
				continue
			}
			render(os.Stdout, b)
		case line, ok := <-lines:
			if !ok {
				return
			}
			switch line {
			case "c":
				caja.sync(ctx)
				renderCaja(os.Stdout, caja.items())
				continue
			case "r":
				caja.sync(ctx)
			}
			if quit := run(ctx, b, line); quit {
				return
			}
			render(os.Stdout, b)
		}
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- strings.TrimSpace(sc.Text())
	}
}

// run executes one command line and reports whether the display should exit.
func run(ctx context.Context, b *board.Board, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "q":
		return true
	case "r":
		if err := b.Reload(ctx); err != nil {
			log.Warn().Err(err).Msg("reload failed")
		}
	case "a", "x":
		if len(fields) < 2 {
			log.Warn().Msg("falta el id del pedido")
			return false
		}
		p, err := buscar(b, fields[1])
		if err != nil {
			log.Warn().Err(err).Msg("pedido")
			return false
		}
		destino := siguiente[p.Status]
		if fields[0] == "x" {
			destino = model.EstadoCancelado
		}
		if err := b.Move(ctx, p.ID, destino); err != nil {
			log.Warn().Err(err).Str("pedido", infra.ShortID(p.ID)).Str("estado", destino).Msg("no se pudo mover el pedido")
		}
	default:
		log.Warn().Str("cmd", fields[0]).Msg("comando desconocido (a, x, c, r, q)")
	}
	return false
}

// buscar resolves an id prefix against the orders on the board.
func buscar(b *board.Board, prefix string) (dto.Pedido, error) {
	prefix = strings.ToLower(prefix)
	var found []dto.Pedido
	cols := b.Columns()
	for _, col := range board.Columnas {
		for _, p := range cols[col] {
			if strings.HasPrefix(p.ID, prefix) {
				found = append(found, p)
			}
		}
	}
	switch len(found) {
	case 0:
		return dto.Pedido{}, board.ErrNoEncontrado
	case 1:
		return found[0], nil
	default:
		return dto.Pedido{}, errors.New("el prefijo coincide con más de un pedido")
	}
}

var titulos = map[string]string{
	model.EstadoPendiente:  "PENDIENTES",
	model.EstadoActivo:     "EN PREPARACIÓN",
	model.EstadoCompletado: "LISTOS",
}

func render(w io.Writer, b *board.Board) {
	cols := b.Columns()
	fmt.Fprint(w, "\033[H\033[2J")
	for _, estado := range board.Columnas {
		fmt.Fprintf(w, "── %s (%d) ──\n", titulos[estado], len(cols[estado]))
		for _, p := range cols[estado] {
			fmt.Fprintf(w, "  #%s  %s  %s  %s\n", infra.ShortID(p.ID), p.CreatedAt.Local().Format("15:04"), p.ClientName, infra.FormatCLP(p.Total))
			for _, it := range p.Items {
				fmt.Fprintf(w, "      %d × %s\n", it.Quantity, it.Name)
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprint(w, "> ")
}

func renderCaja(w io.Writer, items []dto.MovimientoResponse) {
	fmt.Fprintf(w, "── MOVIMIENTOS DE CAJA (%d) ──\n", len(items))
	for _, m := range items {
		fmt.Fprintf(w, "  %s  %-8s %-7s %10s  %s\n", m.CreatedAt.Local().Format("15:04"), m.Tipo, m.MetodoPago, infra.FormatCLP(m.Monto), m.Descripcion)
	}
	fmt.Fprint(w, "> ")
}
