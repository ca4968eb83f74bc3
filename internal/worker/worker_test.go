package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"oishi/internal/infra"
	"oishi/internal/model"
	"oishi/internal/realtime"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type countingHandler struct {
	failures int
	calls    int
}

func (h *countingHandler) Process(context.Context, json.RawMessage) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

type memPedidos struct {
	pedidos map[uuid.UUID]*model.Pedido
}

func (m *memPedidos) FindByID(_ context.Context, id uuid.UUID) (*model.Pedido, error) {
	p, ok := m.pedidos[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *p
	return &cp, nil
}

func (m *memPedidos) UpdateTicketURL(_ context.Context, id uuid.UUID, url string) error {
	p, ok := m.pedidos[id]
	if !ok {
		return errors.New("not found")
	}
	p.TicketURL = &url
	return nil
}

type memNotif struct{ events []realtime.Event }

func (n *memNotif) Publish(_ context.Context, ev realtime.Event) { n.events = append(n.events, ev) }

type memSender struct {
	to, subject, body, name string
	pdf                     []byte
}

func (s *memSender) Send(to, subject, body string, pdf []byte, name string) error {
	s.to, s.subject, s.body, s.pdf, s.name = to, subject, body, pdf, name
	return nil
}

func pedidoDemo() *model.Pedido {
	return &model.Pedido{
		ID:          uuid.New(),
		ClientName:  "Ana",
		ClientRut:   "12345678-9",
		ClientPhone: "+56912345678",
		Items:       datatypes.JSON(`[{"id":"p1","name":"Roll A","price":5000,"quantity":2}]`),
		Total:       10000,
		PaymentType: model.TipoPagoEfectivo,
		PaymentRef:  model.RefPagoLocal,
		Note:        "sin sésamo",
		Status:      model.EstadoPendiente,
		CreatedAt:   time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC),
	}
}

func payload(t *testing.T, id uuid.UUID) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(PedidoPayload{PedidoID: id})
	require.NoError(t, err)
	return b
}

// ── pool ──────────────────────────────────────────────────────────────────────

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(int) error {
		attempts++
		if attempts < 3 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_ReturnsLastError(t *testing.T) {
	err := withRetry(context.Background(), 2, time.Millisecond, func(a int) error {
		return errors.New("fail " + string(rune('0'+a)))
	})
	assert.EqualError(t, err, "fail 1")
}

func TestWithRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, 3, time.Hour, func(int) error { return errors.New("boom") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolProcess_RetriesThenSucceeds(t *testing.T) {
	p := NewPool(nil)
	p.backoff = time.Millisecond
	h := &countingHandler{failures: 2}
	p.Register(QueueTicket, h)

	ok := p.process(context.Background(), QueueTicket, `{"type":"ticket","payload":{}}`)
	assert.True(t, ok)
	assert.Equal(t, 3, h.calls)
}

func TestPoolProcess_ExhaustedGoesToDLQ(t *testing.T) {
	p := NewPool(nil)
	p.backoff = time.Millisecond
	h := &countingHandler{failures: 10}
	p.Register(QueueEmail, h)

	ok := p.process(context.Background(), QueueEmail, `{"type":"email","payload":{}}`)
	assert.False(t, ok)
	assert.Equal(t, maxAttempts, h.calls)
}

func TestPoolProcess_MalformedJob(t *testing.T) {
	p := NewPool(nil)
	h := &countingHandler{}
	p.Register(QueueTicket, h)

	assert.False(t, p.process(context.Background(), QueueTicket, `not json`))
	assert.Zero(t, h.calls)
}

func TestPoolRun_BacksOffWhenRedisIsDown(t *testing.T) {
	p := NewPool(nil)
	p.popBackoff = 20 * time.Millisecond
	p.Register(QueueTicket, &countingHandler{})
	var pops atomic.Int32
	p.pop = func(context.Context, time.Duration, ...string) ([]string, error) {
		pops.Add(1)
		return nil, errors.New("dial tcp: connection refused")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() { p.run(ctx, 0); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	assert.LessOrEqual(t, pops.Load(), int32(7))
	assert.GreaterOrEqual(t, pops.Load(), int32(1))
}

func TestPoolRun_ProcessesJobsBetweenPollTimeouts(t *testing.T) {
	p := NewPool(nil)
	h := &countingHandler{}
	p.Register(QueueTicket, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var pops atomic.Int32
	p.pop = func(context.Context, time.Duration, ...string) ([]string, error) {
		switch pops.Add(1) {
		case 1:
			return nil, redis.Nil
		case 2:
			return []string{QueueTicket, `{"type":"ticket","payload":{}}`}, nil
		default:
			cancel()
			return nil, context.Canceled
		}
	}

	p.run(ctx, 0)
	assert.Equal(t, 1, h.calls)
	assert.Equal(t, int32(3), pops.Load())
}

func TestDispatcher_WithoutRedisFails(t *testing.T) {
	d := NewDispatcher(nil)
	assert.Error(t, d.EnqueueTicket(context.Background(), uuid.New()))
}

// ── ticket worker ─────────────────────────────────────────────────────────────

func TestTicketWorker_StoresPDFAndURL(t *testing.T) {
	dir := t.TempDir()
	store, err := infra.NewLocalStore(dir, "http://localhost:8000/uploads")
	require.NoError(t, err)

	ped := pedidoDemo()
	repo := &memPedidos{pedidos: map[uuid.UUID]*model.Pedido{ped.ID: ped}}
	notif := &memNotif{}
	w := NewTicketWorker(repo, store, notif, "Oishi", 80)

	require.NoError(t, w.Process(context.Background(), payload(t, ped.ID)))

	require.NotNil(t, repo.pedidos[ped.ID].TicketURL)
	url := *repo.pedidos[ped.ID].TicketURL
	assert.True(t, strings.HasPrefix(url, "http://localhost:8000/uploads/tickets/2026/03/"))

	b, err := os.ReadFile(filepath.Join(dir, "tickets", "2026", "03", ped.ID.String()+".pdf"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "%PDF"))

	require.Len(t, notif.events, 1)
	assert.Equal(t, realtime.Update, notif.events[0].Type)
}

func TestTicketWorker_UnknownOrder(t *testing.T) {
	store, err := infra.NewLocalStore(t.TempDir(), "http://x")
	require.NoError(t, err)
	w := NewTicketWorker(&memPedidos{pedidos: map[uuid.UUID]*model.Pedido{}}, store, nil, "Oishi", 80)

	assert.Error(t, w.Process(context.Background(), payload(t, uuid.New())))
}

func TestTicketWorker_BadPayload(t *testing.T) {
	w := NewTicketWorker(&memPedidos{}, nil, nil, "Oishi", 80)
	assert.Error(t, w.Process(context.Background(), json.RawMessage(`{}`)))
}

// ── email worker ──────────────────────────────────────────────────────────────

func TestEmailWorker_SendsSummaryWithTicket(t *testing.T) {
	ped := pedidoDemo()
	repo := &memPedidos{pedidos: map[uuid.UUID]*model.Pedido{ped.ID: ped}}
	sender := &memSender{}
	w := NewEmailWorker(sender, repo, "cocina@oishi.cl", "Oishi", 80)

	require.NoError(t, w.Process(context.Background(), payload(t, ped.ID)))

	assert.Equal(t, "cocina@oishi.cl", sender.to)
	assert.Contains(t, sender.subject, "Ana")
	assert.Contains(t, sender.body, "2 x Roll A")
	assert.Contains(t, sender.body, "$10.000")
	assert.Contains(t, sender.body, "sin sésamo")
	assert.NotEmpty(t, sender.pdf)
	assert.True(t, strings.HasSuffix(sender.name, ".pdf"))
}

func TestEmailWorker_NoRecipientIsNoop(t *testing.T) {
	sender := &memSender{}
	w := NewEmailWorker(sender, &memPedidos{}, "", "Oishi", 80)

	require.NoError(t, w.Process(context.Background(), payload(t, uuid.New())))
	assert.Empty(t, sender.to)
}
