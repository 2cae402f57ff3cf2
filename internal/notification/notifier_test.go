package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"remitflow/internal/payment"
	"remitflow/internal/transfer/models"
	"remitflow/pkg/platform/circuit"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (d *recordingDispatcher) Name() string { return "recording" }

func (d *recordingDispatcher) Dispatch(_ context.Context, msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.msgs = append(d.msgs, msg)
	return nil
}

func (d *recordingDispatcher) sent() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Message(nil), d.msgs...)
}

type warning struct {
	sessionID string
	code      payment.ErrorCode
}

type recordingSink struct {
	mu       sync.Mutex
	warnings []warning
}

func (s *recordingSink) AddWarning(_ context.Context, sessionID string, code payment.ErrorCode, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, warning{sessionID: sessionID, code: code})
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.warnings)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func domesticRecord(email string) models.TransferRecord {
	return models.TransferRecord{
		Category:       models.CategoryDomestic,
		Amount:         decimal.RequireFromString("50.00"),
		SourceCurrency: "USD",
		Recipient:      models.Recipient{Name: "Ana Reyes", Email: email},
		ReceiptEmail:   "",
	}
}

func runNotifier(t *testing.T, n *Notifier) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = n.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestNotify_DispatchesReceipt(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	n := New(dispatcher, quietLogger())
	runNotifier(t, n)

	require.NoError(t, n.Notify(context.Background(), "sess-1", domesticRecord("ana@example.com"), "REF-1"))

	require.Eventually(t, func() bool { return len(dispatcher.sent()) == 1 }, time.Second, 5*time.Millisecond)
	msg := dispatcher.sent()[0]
	assert.Equal(t, "sess-1", msg.SessionID)
	assert.Equal(t, "ana@example.com", msg.RecipientAddress)
	assert.Equal(t, "REF-1", msg.SettlementReference)
	assert.Equal(t, "50.00 USD to Ana Reyes", msg.TransferSummary)
}

func TestNotify_PrefersReceiptEmail(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	n := New(dispatcher, quietLogger())
	runNotifier(t, n)

	rec := domesticRecord("ana@example.com")
	rec.ReceiptEmail = "sender@example.com"
	require.NoError(t, n.Notify(context.Background(), "sess-1", rec, "REF-1"))

	require.Eventually(t, func() bool { return len(dispatcher.sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "sender@example.com", dispatcher.sent()[0].RecipientAddress)
}

func TestNotify_SkipsWithoutAddress(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	n := New(dispatcher, quietLogger())

	require.NoError(t, n.Notify(context.Background(), "sess-1", domesticRecord(""), "REF-1"))
	assert.Empty(t, n.queue)
}

func TestNotify_QueueFull(t *testing.T) {
	n := New(&recordingDispatcher{}, quietLogger(), WithBuffer(1))
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, "sess-1", domesticRecord("a@example.com"), "REF-1"))
	err := n.Notify(ctx, "sess-2", domesticRecord("b@example.com"), "REF-2")
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestDispatchFailure_RecordsWarning(t *testing.T) {
	dispatcher := &recordingDispatcher{err: errors.New("smtp down")}
	sink := &recordingSink{}
	n := New(dispatcher, quietLogger())
	n.SetWarningSink(sink)
	runNotifier(t, n)

	require.NoError(t, n.Notify(context.Background(), "sess-9", domesticRecord("ana@example.com"), "REF-9"))

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, warning{sessionID: "sess-9", code: payment.CodeNotificationDispatchFailed}, sink.warnings[0])
}

func TestOpenBreaker_SkipsDispatch(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	sink := &recordingSink{}
	breaker := circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))
	breaker.RecordFailure()
	n := New(dispatcher, quietLogger(), WithBreaker(breaker))
	n.SetWarningSink(sink)
	runNotifier(t, n)

	require.NoError(t, n.Notify(context.Background(), "sess-1", domesticRecord("ana@example.com"), "REF-1"))

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, dispatcher.sent())
}

func TestSummarize_CrossBorderIncludesRouting(t *testing.T) {
	rec := models.TransferRecord{
		Category:       models.CategoryCrossBorder,
		Amount:         decimal.RequireFromString("120.5"),
		SourceCurrency: "EUR",
		Routing:        &models.Routing{DestinationCountry: "PH", DeliveryMethod: models.DeliveryCashPickup},
		Recipient:      models.Recipient{Name: "Jo"},
	}
	assert.Equal(t, "120.50 EUR to Jo (PH, cash_pickup)", Summarize(rec))
}

func TestHTTPDispatcher(t *testing.T) {
	var got httpPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "REF-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	d := NewHTTPDispatcher(server.URL, time.Second)
	err := d.Dispatch(context.Background(), Message{
		RecipientAddress:    "ana@example.com",
		TransferSummary:     "50.00 USD to Ana Reyes",
		SettlementReference: "REF-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", got.RecipientAddress)
	assert.Equal(t, "REF-1", got.SettlementReference)
}

func TestHTTPDispatcher_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewHTTPDispatcher(server.URL, time.Second).Dispatch(context.Background(), Message{})
	assert.Error(t, err)
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func TestKafkaDispatcher(t *testing.T) {
	producer := &fakeProducer{}
	d := &KafkaDispatcher{topic: "transfer-receipts", producer: producer}

	require.NoError(t, d.Dispatch(context.Background(), Message{SessionID: "sess-1", SettlementReference: "REF-1"}))
	require.Len(t, producer.records, 1)
	assert.Equal(t, "transfer-receipts", producer.records[0].Topic)
	assert.Equal(t, []byte("sess-1"), producer.records[0].Key)

	var msg Message
	require.NoError(t, json.Unmarshal(producer.records[0].Value, &msg))
	assert.Equal(t, "REF-1", msg.SettlementReference)

	producer.err = errors.New("broker unavailable")
	assert.Error(t, d.Dispatch(context.Background(), Message{SessionID: "sess-2"}))
}
