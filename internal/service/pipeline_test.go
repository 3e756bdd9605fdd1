package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/ai"
	"github.com/raaihank/asset-privacy/internal/funds"
	"github.com/raaihank/asset-privacy/internal/masking"
	"github.com/raaihank/asset-privacy/internal/privacy"
	"github.com/raaihank/asset-privacy/internal/records"
	"github.com/raaihank/asset-privacy/internal/websocket"
)

type recordedEvent struct {
	Type websocket.EventType
	Data interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Broadcast(eventType websocket.EventType, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{eventType, data})
}

func (r *recorder) last() recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return recordedEvent{}
	}
	return r.events[len(r.events)-1]
}

type fakeCompleter struct {
	prompt   ai.Prompt
	response func(ai.Prompt) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt ai.Prompt) (string, error) {
	f.prompt = prompt
	return f.response(prompt)
}

func newTestPipeline(t *testing.T, completer ai.Completer, fundNames ...string) (*Pipeline, *recorder) {
	t.Helper()
	registry, err := funds.NewRegistry(context.Background(), funds.NewMemoryStore(),
		funds.Options{Defaults: fundNames}, zap.NewNop())
	require.NoError(t, err)

	events := &recorder{}
	p := New(Options{
		Engine:    privacy.NewEngine(masking.Default(), registry),
		Records:   records.NewMemoryStore(),
		Completer: completer,
		Model:     "test-model",
		Events:    events,
		Logger:    zap.NewNop(),
	})
	return p, events
}

func TestProcessText(t *testing.T) {
	p, events := newTestPipeline(t, nil, "MasterFund1")
	ctx := context.Background()

	record, err := p.ProcessText(ctx, "/tmp/q3.txt", "MasterFund1 allocation: $2,500,000 (50%)")
	require.NoError(t, err)
	assert.Equal(t, "q3.txt", record.InputFile)
	assert.Equal(t, "Fund001 allocation: NUM_000000 (NUM_000001)", record.MaskedText)

	stored, err := p.Record(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.MaskedText, stored.MaskedText)

	ev := events.last()
	assert.Equal(t, websocket.EventTypeRecordProcessed, ev.Type)
	payload, ok := ev.Data.(websocket.RecordEvent)
	require.True(t, ok)
	assert.Equal(t, record.ID, payload.RecordID)
	assert.Equal(t, 2, payload.TotalMaskedValues)
	assert.Equal(t, 1, payload.TotalObfuscatedFunds)
}

func TestProcessUploadRejectsBinary(t *testing.T) {
	p, events := newTestPipeline(t, nil)

	_, err := p.ProcessUpload(context.Background(), "blob.bin", []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, privacy.ErrInputRejected)
	assert.Empty(t, events.events)
}

func TestDecrypt(t *testing.T) {
	p, events := newTestPipeline(t, nil, "MasterFund1")
	ctx := context.Background()

	record, err := p.ProcessText(ctx, "doc.txt", "MasterFund1 allocation: $2,500,000 (50%)")
	require.NoError(t, err)

	t.Run("inline record", func(t *testing.T) {
		result, err := p.Decrypt(ctx, "| Fund001 | NUM_000000 | NUM_000001 |", record)
		require.NoError(t, err)
		assert.Equal(t, "| MasterFund1 | $2,500,000 | 50% |", result.Text)
		assert.True(t, result.Complete())

		ev := events.last()
		assert.Equal(t, websocket.EventTypeRecordDecrypted, ev.Type)
		assert.Equal(t, websocket.DecryptEvent{RecordID: record.ID, Requested: 3, Resolved: 3}, ev.Data)
	})

	t.Run("stored record falls back to masked text", func(t *testing.T) {
		result, err := p.DecryptStored(ctx, record.ID, "")
		require.NoError(t, err)
		assert.Equal(t, record.OriginalText, result.Text)
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := p.DecryptStored(ctx, "missing", "x")
		assert.ErrorIs(t, err, privacy.ErrRecordNotFound)
	})

	t.Run("inconsistent inline record", func(t *testing.T) {
		bad := *record
		bad.MaskingInfo.MaskedValues = map[string]masking.MaskEntry{
			"NUM_000000": {Token: "NUM_000009", Original: "1"},
		}
		_, err := p.Decrypt(ctx, "NUM_000000", &bad)
		assert.ErrorIs(t, err, privacy.ErrInvalidRecord)
	})
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches response", func(t *testing.T) {
		completer := &fakeCompleter{response: func(ai.Prompt) (string, error) {
			return "| Fund001 | NUM_000000 |", nil
		}}
		p, events := newTestPipeline(t, completer, "MasterFund1")

		record, err := p.ProcessText(ctx, "doc.txt", "MasterFund1 holds $10")
		require.NoError(t, err)

		completed, err := p.Complete(ctx, record.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "| Fund001 | NUM_000000 |", completed.AIResponse)
		require.NotNil(t, completed.AIResponseAt)
		assert.True(t, strings.HasSuffix(completer.prompt.User, "Fund001 holds NUM_000000\n"))
		assert.NotContains(t, completer.prompt.User, "MasterFund1")

		stored, err := p.Record(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, completed.AIResponse, stored.AIResponse)

		ev := events.last()
		assert.Equal(t, websocket.EventTypeAICompleted, ev.Type)

		result, err := p.DecryptStored(ctx, record.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "| MasterFund1 | $10 |", result.Text)
	})

	t.Run("provider failure leaves record untouched", func(t *testing.T) {
		completer := &fakeCompleter{response: func(ai.Prompt) (string, error) {
			return "", errors.New("connection refused")
		}}
		p, _ := newTestPipeline(t, completer)

		record, err := p.ProcessText(ctx, "doc.txt", "Total 100")
		require.NoError(t, err)

		_, err = p.Complete(ctx, record.ID, "")
		assert.ErrorIs(t, err, privacy.ErrExternalCall)

		stored, err := p.Record(ctx, record.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.AIResponse)
	})

	t.Run("not configured", func(t *testing.T) {
		p, _ := newTestPipeline(t, nil)
		assert.False(t, p.AIConfigured())

		_, err := p.Complete(ctx, "any", "")
		assert.ErrorIs(t, err, ErrAIUnavailable)
		assert.ErrorIs(t, err, privacy.ErrExternalCall)
	})
}

func TestFundMutations(t *testing.T) {
	p, events := newTestPipeline(t, nil, "AlphaFund")
	ctx := context.Background()

	m, err := p.AddFund(ctx, "BetaFund")
	require.NoError(t, err)
	assert.Equal(t, funds.StatusAdded, m.Status)
	assert.Equal(t, websocket.RegistryEvent{
		Action: "add", Status: "added", Placeholder: "Fund002", FundCount: 2,
	}, events.last().Data)

	before := len(events.events)
	m, err = p.AddFund(ctx, "betafund")
	require.NoError(t, err)
	assert.Equal(t, funds.StatusAlreadyPresent, m.Status)
	assert.Len(t, events.events, before)

	m, err = p.RemoveFund(ctx, "AlphaFund")
	require.NoError(t, err)
	assert.Equal(t, funds.StatusRemoved, m.Status)
	assert.Equal(t, []string{"BetaFund"}, p.ListFunds().Names)
}
