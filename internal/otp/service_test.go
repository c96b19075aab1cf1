package otp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"teamup/internal/botchan"
	"teamup/internal/storage"
	logx "teamup/pkg/logx"
)

type sentMsg struct {
	chatID int64
	text   string
	ref    botchan.MessageRef
}

type fakeMessenger struct {
	nextID  int
	sent    []sentMsg
	deleted []botchan.MessageRef
	sendErr map[int]error // keyed by 1-based send ordinal
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, text string, _ [][]botchan.Button) (botchan.MessageRef, error) {
	if err := f.sendErr[len(f.sent)+1]; err != nil {
		return botchan.MessageRef{}, err
	}
	f.nextID++
	ref := botchan.MessageRef{ChatID: chatID, MessageID: f.nextID}
	f.sent = append(f.sent, sentMsg{chatID: chatID, text: text, ref: ref})
	return ref, nil
}

func (f *fakeMessenger) Edit(context.Context, botchan.MessageRef, string, [][]botchan.Button) error {
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, ref botchan.MessageRef) error {
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeMessenger) Pin(context.Context, botchan.MessageRef) error { return nil }
func (f *fakeMessenger) AnswerCallback(context.Context, string, string) error {
	return nil
}

// lastCode digs the issued code out of the fake transcript.
func lastCode(t *testing.T, f *fakeMessenger) string {
	t.Helper()
	for i := len(f.sent) - 1; i >= 0; i-- {
		text := f.sent[i].text
		if strings.HasPrefix(text, "<code>") {
			return strings.TrimSuffix(strings.TrimPrefix(text, "<code>"), "</code>")
		}
	}
	t.Fatalf("no code message in transcript: %+v", f.sent)
	return ""
}

func newService(t *testing.T) (*Service, *fakeMessenger, *time.Time) {
	t.Helper()
	f := &fakeMessenger{sendErr: map[int]error{}}
	s := NewService(storage.NewMemory(), f, logx.Nop())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, f, &now
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, f, _ := newService(t)

	if err := s.Issue(ctx, 77, 500); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(f.sent) != 2 {
		t.Fatalf("sent %d messages, want prompt + code", len(f.sent))
	}

	code := lastCode(t, f)
	if len(code) != 6 {
		t.Fatalf("code %q, want 6 digits", code)
	}

	id, ok, err := s.Verify(ctx, code)
	if err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}
	if id != 77 {
		t.Fatalf("telegram id = %d, want 77", id)
	}
	if len(f.deleted) != 2 {
		t.Fatalf("deleted %d messages, want prompt and code cleaned up", len(f.deleted))
	}

	// Consumed codes cannot be replayed.
	if _, ok, err := s.Verify(ctx, code); err != nil || ok {
		t.Fatalf("replayed code: ok=%v err=%v, want ok=false", ok, err)
	}
}

func TestVerifyUnknownCode(t *testing.T) {
	t.Parallel()

	s, _, _ := newService(t)
	id, ok, err := s.Verify(context.Background(), "000000")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok || id != 0 {
		t.Fatalf("unknown code: id=%d ok=%v, want 0/false", id, ok)
	}
}

func TestIssueCooldown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _, now := newService(t)

	if err := s.Issue(ctx, 77, 500); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := s.Issue(ctx, 77, 500); !errors.Is(err, ErrCooldown) {
		t.Fatalf("err = %v, want ErrCooldown", err)
	}
	// Another identity is not affected.
	if err := s.Issue(ctx, 78, 501); err != nil {
		t.Fatalf("Issue other identity: %v", err)
	}

	*now = now.Add(issueWindow + time.Second)
	if err := s.Issue(ctx, 77, 500); err != nil {
		t.Fatalf("Issue after cooldown: %v", err)
	}
}

func TestReissueInvalidatesPriorCode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, f, now := newService(t)

	if err := s.Issue(ctx, 77, 500); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	first := lastCode(t, f)

	*now = now.Add(issueWindow + time.Second)
	if err := s.Issue(ctx, 77, 500); err != nil {
		t.Fatalf("reissue: %v", err)
	}
	second := lastCode(t, f)

	if _, ok, _ := s.Verify(ctx, first); ok {
		t.Fatalf("first code must be dead after reissue")
	}
	if _, ok, err := s.Verify(ctx, second); err != nil || !ok {
		t.Fatalf("second code: ok=%v err=%v", ok, err)
	}
	// The stale prompt and code messages were removed from the chat.
	if len(f.deleted) < 2 {
		t.Fatalf("stale conversation messages not cleaned up: %+v", f.deleted)
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, f, now := newService(t)

	if err := s.Issue(ctx, 77, 500); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	code := lastCode(t, f)

	*now = now.Add(codeTTL + time.Second)
	if _, ok, err := s.Verify(ctx, code); err != nil || ok {
		t.Fatalf("expired code: ok=%v err=%v, want ok=false", ok, err)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, f, now := newService(t)

	if err := s.Issue(ctx, 77, 500); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	code := lastCode(t, f)

	// Not yet expired: sweep keeps the record.
	s.Sweep(ctx)
	if len(f.deleted) != 0 {
		t.Fatalf("sweep deleted live messages: %+v", f.deleted)
	}

	*now = now.Add(codeTTL + time.Second)
	s.Sweep(ctx)
	if len(f.deleted) != 2 {
		t.Fatalf("deleted %d messages, want 2", len(f.deleted))
	}

	*now = now.Add(-codeTTL) // back inside the original TTL
	if _, ok, _ := s.Verify(ctx, code); ok {
		t.Fatalf("swept record must be gone even inside its original TTL")
	}
}

func TestIssueRollsBackPromptOnCodeSendFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, f, _ := newService(t)
	f.sendErr[2] = errors.New("telegram: 429")

	if err := s.Issue(ctx, 77, 500); err == nil {
		t.Fatalf("expected send failure to propagate")
	}
	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages, want only the prompt", len(f.sent))
	}
	if len(f.deleted) != 1 || f.deleted[0] != f.sent[0].ref {
		t.Fatalf("prompt not rolled back: deleted=%+v", f.deleted)
	}
	// No half-issued record remains.
	delete(f.sendErr, 2)
	if err := s.Issue(ctx, 77, 500); err != nil {
		t.Fatalf("Issue after rollback: %v", err)
	}
}
