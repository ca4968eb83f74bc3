package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"oishi/internal/dto"
	"oishi/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	err   error
	calls []string
	block chan struct{}
}

func (w *fakeWriter) CambiarEstado(_ context.Context, id, estado string) error {
	w.calls = append(w.calls, id+":"+estado)
	if w.block != nil {
		<-w.block
	}
	return w.err
}

type fakeLoader struct{ pedidos []dto.Pedido }

func (l *fakeLoader) set(ps ...dto.Pedido) { l.pedidos = ps }

func (l *fakeLoader) Cargar(context.Context) ([]dto.Pedido, error) { return l.pedidos, nil }

func nuevoBoard(t *testing.T, w StatusWriter) *Board {
	t.Helper()
	now := time.Now()
	loader := &fakeLoader{pedidos: []dto.Pedido{
		{ID: "a", Status: model.EstadoPendiente, CreatedAt: now},
		{ID: "b", Status: model.EstadoActivo, CreatedAt: now.Add(-time.Minute)},
		{ID: "c", Status: model.EstadoRetirado, CreatedAt: now},
	}}
	b := New(w, loader)
	require.NoError(t, b.Reload(context.Background()))
	return b
}

func TestReload_DropsTerminalOrders(t *testing.T) {
	b := nuevoBoard(t, &fakeWriter{})
	cols := b.Columns()

	assert.Len(t, cols[model.EstadoPendiente], 1)
	assert.Len(t, cols[model.EstadoActivo], 1)
	assert.Empty(t, cols[model.EstadoCompletado])
	_, ok := b.Get("c")
	assert.False(t, ok)
}

func TestMove_Success(t *testing.T) {
	w := &fakeWriter{}
	b := nuevoBoard(t, w)

	require.NoError(t, b.Move(context.Background(), "a", model.EstadoActivo))

	p, _ := b.Get("a")
	assert.Equal(t, model.EstadoActivo, p.Status)
	assert.Equal(t, []string{"a:active"}, w.calls)
}

func TestMove_RollsBackOnFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("db down")}
	b := nuevoBoard(t, w)

	err := b.Move(context.Background(), "b", model.EstadoCompletado)
	require.Error(t, err)

	p, ok := b.Get("b")
	require.True(t, ok)
	assert.Equal(t, model.EstadoActivo, p.Status)
}

func TestMove_TerminalRollbackRestoresCard(t *testing.T) {
	w := &fakeWriter{err: errors.New("db down")}
	b := nuevoBoard(t, w)

	require.Error(t, b.Move(context.Background(), "a", model.EstadoCancelado))

	p, ok := b.Get("a")
	require.True(t, ok)
	assert.Equal(t, model.EstadoPendiente, p.Status)
}

func TestMove_RejectsInvalidTransitionWithoutWriting(t *testing.T) {
	w := &fakeWriter{}
	b := nuevoBoard(t, w)

	err := b.Move(context.Background(), "a", model.EstadoCompletado)
	assert.ErrorIs(t, err, ErrTransicion)
	assert.Empty(t, w.calls)
}

func TestMove_UnknownOrder(t *testing.T) {
	b := nuevoBoard(t, &fakeWriter{})
	assert.ErrorIs(t, b.Move(context.Background(), "zz", model.EstadoActivo), ErrNoEncontrado)
}

func TestMove_RejectsSecondMoveWhileInFlight(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	b := nuevoBoard(t, w)

	done := make(chan error)
	go func() { done <- b.Move(context.Background(), "a", model.EstadoActivo) }()

	require.Eventually(t, func() bool {
		p, _ := b.Get("a")
		return p.Status == model.EstadoActivo
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, b.Move(context.Background(), "a", model.EstadoCompletado), ErrEnMovimiento)

	close(w.block)
	require.NoError(t, <-done)
}

func TestMove_FailedWriteKeepsNewerReload(t *testing.T) {
	tests := []struct {
		name      string
		recargado []dto.Pedido
		want      string
	}{
		{"moved elsewhere", []dto.Pedido{{ID: "a", Status: model.EstadoActivo}}, model.EstadoActivo},
		{"canceled elsewhere", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := &fakeWriter{err: errors.New("db down"), block: make(chan struct{})}
			loader := &fakeLoader{pedidos: []dto.Pedido{{ID: "a", Status: model.EstadoPendiente}}}
			b := New(w, loader)
			require.NoError(t, b.Reload(context.Background()))

			done := make(chan error)
			go func() { done <- b.Move(context.Background(), "a", model.EstadoCancelado) }()
			require.Eventually(t, func() bool {
				_, ok := b.Get("a")
				return !ok
			}, time.Second, 5*time.Millisecond)

			loader.set(tc.recargado...)
			require.NoError(t, b.Reload(context.Background()))
			close(w.block)
			require.Error(t, <-done)

			p, ok := b.Get("a")
			assert.Equal(t, tc.want != "", ok)
			assert.Equal(t, tc.want, p.Status)
		})
	}
}
