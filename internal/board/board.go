// Package board keeps the kitchen kanban state in memory. Moves are applied
// locally first and rolled back when the backend rejects them.
package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"oishi/internal/dto"
	"oishi/internal/model"

	"github.com/rs/zerolog/log"
)

// Columnas are the statuses shown on the board, in display order.
var Columnas = []string{model.EstadoPendiente, model.EstadoActivo, model.EstadoCompletado}

var (
	ErrNoEncontrado = errors.New("pedido no está en el tablero")
	ErrEnMovimiento = errors.New("pedido con un cambio en curso")
	ErrTransicion   = errors.New("transición no permitida")
)

// StatusWriter persists a status change. service.LifecycleService satisfies it
// through an adapter in cmd/kitchen.
type StatusWriter interface {
	CambiarEstado(ctx context.Context, id, estado string) error
}

// Loader fetches the orders currently on the board.
type Loader interface {
	Cargar(ctx context.Context) ([]dto.Pedido, error)
}

type Board struct {
	mu       sync.Mutex
	pedidos  map[string]dto.Pedido
	inflight map[string]bool
	// gen counts reloads; a rollback only applies when none ran during the write
	gen      uint64
	writer   StatusWriter
	loader   Loader
}

func New(writer StatusWriter, loader Loader) *Board {
	return &Board{
		pedidos:  map[string]dto.Pedido{},
		inflight: map[string]bool{},
		writer:   writer,
		loader:   loader,
	}
}

// Reload replaces the local state with the loader's view. Orders that left the
// board columns are dropped.
func (b *Board) Reload(ctx context.Context) error {
	if b.loader == nil {
		return nil
	}
	list, err := b.loader.Cargar(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	b.pedidos = make(map[string]dto.Pedido, len(list))
	for _, p := range list {
		if enTablero(p.Status) {
			b.pedidos[p.ID] = p
		}
	}
	return nil
}

// Move validates the transition, applies it locally, persists it and restores
// the prior snapshot when persisting fails. A Reload during the write wins over
// the snapshot. The error is returned either way.
func (b *Board) Move(ctx context.Context, id, estado string) error {
	b.mu.Lock()
	prev, ok := b.pedidos[id]
	if !ok {
		b.mu.Unlock()
		return ErrNoEncontrado
	}
	if b.inflight[id] {
		b.mu.Unlock()
		return ErrEnMovimiento
	}
	if !model.TransicionPermitida(prev.Status, estado) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s → %s", ErrTransicion, prev.Status, estado)
	}
	b.inflight[id] = true
	b.apply(id, prev, estado)
	gen := b.gen
	b.mu.Unlock()

	err := b.writer.CambiarEstado(ctx, id, estado)

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inflight, id)
	if err != nil {
		if b.gen == gen {
			b.pedidos[id] = prev
		}
		log.Warn().Err(err).Str("pedido_id", id).Str("estado", estado).Msg("board: move rolled back")
		return err
	}
	return nil
}

func (b *Board) apply(id string, p dto.Pedido, estado string) {
	p.Status = estado
	if enTablero(estado) {
		b.pedidos[id] = p
		return
	}
	// picked_up and canceled leave the board but stay restorable via prev
	delete(b.pedidos, id)
}

// Columns returns the orders grouped by status, oldest first.
func (b *Board) Columns() map[string][]dto.Pedido {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string][]dto.Pedido, len(Columnas))
	for _, c := range Columnas {
		out[c] = []dto.Pedido{}
	}
	for _, p := range b.pedidos {
		out[p.Status] = append(out[p.Status], p)
	}
	for _, col := range out {
		sort.Slice(col, func(i, j int) bool { return col[i].CreatedAt.Before(col[j].CreatedAt) })
	}
	return out
}

// Get returns the local copy of an order.
func (b *Board) Get(id string) (dto.Pedido, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pedidos[id]
	return p, ok
}

func enTablero(estado string) bool {
	for _, c := range Columnas {
		if c == estado {
			return true
		}
	}
	return false
}
