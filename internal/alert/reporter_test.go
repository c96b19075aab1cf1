package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"teamup/internal/botchan"
	"teamup/internal/domain"
	logx "teamup/pkg/logx"
)

type opsReader struct {
	ops []domain.Recipient
}

func (r opsReader) Recipient(context.Context, int64) (domain.Recipient, error) {
	return domain.Recipient{}, domain.ErrNotFound
}
func (r opsReader) RecipientByTelegram(context.Context, int64) (domain.Recipient, error) {
	return domain.Recipient{}, domain.ErrNotFound
}
func (r opsReader) Game(context.Context, int64) (domain.GameView, error) {
	return domain.GameView{}, domain.ErrNotFound
}
func (r opsReader) Locality(context.Context, int64) (domain.Locality, error) {
	return domain.Locality{}, domain.ErrNotFound
}
func (r opsReader) Localities(context.Context) ([]domain.Locality, error) { return nil, nil }
func (r opsReader) UpcomingGames(context.Context, int64, time.Duration) ([]domain.GameView, error) {
	return nil, nil
}
func (r opsReader) Operators(context.Context) ([]domain.Recipient, error) { return r.ops, nil }
func (r opsReader) ListingAudience(context.Context, domain.ListingView) ([]int64, error) {
	return nil, nil
}

type countingMessenger struct {
	mu    sync.Mutex
	chats []int64
	texts []string
}

func (m *countingMessenger) Send(_ context.Context, chatID int64, text string, _ [][]botchan.Button) (botchan.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats = append(m.chats, chatID)
	m.texts = append(m.texts, text)
	return botchan.MessageRef{ChatID: chatID, MessageID: len(m.chats)}, nil
}

func (m *countingMessenger) Edit(context.Context, botchan.MessageRef, string, [][]botchan.Button) error {
	return nil
}
func (m *countingMessenger) Delete(context.Context, botchan.MessageRef) error { return nil }
func (m *countingMessenger) Pin(context.Context, botchan.MessageRef) error    { return nil }
func (m *countingMessenger) AnswerCallback(context.Context, string, string) error {
	return nil
}

func (m *countingMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chats)
}

func newReporter(enabled bool, ops ...domain.Recipient) (*Reporter, *countingMessenger, *time.Time) {
	m := &countingMessenger{}
	r := NewReporter(m, opsReader{ops: ops}, enabled, logx.Nop())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, m, &now
}

func TestReportFansOutToOperators(t *testing.T) {
	t.Parallel()

	r, m, _ := newReporter(true,
		domain.Recipient{ID: 1, TelegramID: 100, Operator: true},
		domain.Recipient{ID: 2, TelegramID: 200, Operator: true},
		domain.Recipient{ID: 3, Operator: true}, // no bot identity
	)

	r.Report(errors.New("db connection lost"), "storage")

	if m.count() != 2 {
		t.Fatalf("sends = %d, want 2 (operator without telegram skipped)", m.count())
	}
	for _, text := range m.texts {
		if !strings.Contains(text, "storage: db connection lost") {
			t.Fatalf("report text missing context/error: %q", text)
		}
		if !strings.HasPrefix(text, "🚨") {
			t.Fatalf("report text missing marker: %q", text)
		}
	}
}

func TestReportCooldown(t *testing.T) {
	t.Parallel()

	r, m, now := newReporter(true, domain.Recipient{ID: 1, TelegramID: 100, Operator: true})

	r.Report(errors.New("first"), "")
	r.Report(errors.New("second"), "")
	if m.count() != 1 {
		t.Fatalf("sends = %d, want 1 (second report inside cooldown dropped)", m.count())
	}

	*now = now.Add(61 * time.Second)
	r.Report(errors.New("third"), "")
	if m.count() != 2 {
		t.Fatalf("sends = %d, want 2 after cooldown", m.count())
	}
}

func TestReportDisabledOrNil(t *testing.T) {
	t.Parallel()

	r, m, _ := newReporter(false, domain.Recipient{ID: 1, TelegramID: 100, Operator: true})
	r.Report(errors.New("boom"), "")
	if m.count() != 0 {
		t.Fatalf("disabled reporter must not send")
	}

	r2, m2, _ := newReporter(true, domain.Recipient{ID: 1, TelegramID: 100, Operator: true})
	r2.Report(nil, "ctx")
	if m2.count() != 0 {
		t.Fatalf("nil error must not send")
	}
}

func TestReportRedactsCredentials(t *testing.T) {
	t.Parallel()

	r, m, _ := newReporter(true, domain.Recipient{ID: 1, TelegramID: 100, Operator: true})
	r.Report(errors.New("auth failed: token=abc123 password: hunter2"), "")

	if m.count() != 1 {
		t.Fatalf("sends = %d, want 1", m.count())
	}
	text := m.texts[0]
	if strings.Contains(text, "abc123") || strings.Contains(text, "hunter2") {
		t.Fatalf("credentials leaked: %q", text)
	}
	if !strings.Contains(text, "[redacted]") {
		t.Fatalf("placeholder missing: %q", text)
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, leak string }{
		{"password=secret1", "secret1"},
		{"api_key: zxcv", "zxcv"},
		{"Authorization: Bearer eyJhbGciOi.payload", "eyJhbGciOi"},
		{"bot 123456789:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA failed", "123456789:AAAA"},
	}
	for _, tc := range tests {
		got := Redact(tc.in)
		if strings.Contains(got, tc.leak) {
			t.Fatalf("Redact(%q) = %q, leaked %q", tc.in, got, tc.leak)
		}
	}
	if got := Redact("plain error, nothing sensitive"); got != "plain error, nothing sensitive" {
		t.Fatalf("Redact mangled innocuous text: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", maxReportLen+100)
	got := truncate(long, maxReportLen)
	if len(got) != maxReportLen {
		t.Fatalf("len = %d, want %d", len(got), maxReportLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated text missing ellipsis")
	}
}
