package pinned

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"teamup/internal/botchan"
	"teamup/internal/domain"
	"teamup/internal/locality"
	"teamup/internal/storage"
	logx "teamup/pkg/logx"
)

type pinReader struct {
	localities []domain.Locality
	games      map[int64][]domain.GameView
	listErr    error
}

func (r *pinReader) Localities(context.Context) ([]domain.Locality, error) {
	return r.localities, r.listErr
}
func (r *pinReader) UpcomingGames(_ context.Context, localityID int64, _ time.Duration) ([]domain.GameView, error) {
	return r.games[localityID], nil
}
func (r *pinReader) Locality(_ context.Context, id int64) (domain.Locality, error) {
	for _, l := range r.localities {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Locality{}, domain.ErrNotFound
}
func (r *pinReader) Recipient(context.Context, int64) (domain.Recipient, error) {
	return domain.Recipient{}, domain.ErrNotFound
}
func (r *pinReader) RecipientByTelegram(context.Context, int64) (domain.Recipient, error) {
	return domain.Recipient{}, domain.ErrNotFound
}
func (r *pinReader) Game(context.Context, int64) (domain.GameView, error) {
	return domain.GameView{}, domain.ErrNotFound
}
func (r *pinReader) Operators(context.Context) ([]domain.Recipient, error) { return nil, nil }
func (r *pinReader) ListingAudience(context.Context, domain.ListingView) ([]int64, error) {
	return nil, nil
}

type pinMessenger struct {
	editErr error
	nextID  int

	edits  []string
	sends  []string
	pinned []botchan.MessageRef
}

func (m *pinMessenger) Send(_ context.Context, chatID int64, text string, _ [][]botchan.Button) (botchan.MessageRef, error) {
	m.nextID++
	m.sends = append(m.sends, text)
	return botchan.MessageRef{ChatID: chatID, MessageID: m.nextID}, nil
}

func (m *pinMessenger) Edit(_ context.Context, _ botchan.MessageRef, text string, _ [][]botchan.Button) error {
	if m.editErr != nil {
		return m.editErr
	}
	m.edits = append(m.edits, text)
	return nil
}

func (m *pinMessenger) Delete(context.Context, botchan.MessageRef) error { return nil }

func (m *pinMessenger) Pin(_ context.Context, ref botchan.MessageRef) error {
	m.pinned = append(m.pinned, ref)
	return nil
}

func (m *pinMessenger) AnswerCallback(context.Context, string, string) error { return nil }

func newPinFixture(t *testing.T) (*Refresher, *pinReader, *pinMessenger, storage.Store) {
	t.Helper()
	starts := time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)
	reader := &pinReader{
		localities: []domain.Locality{
			{ID: 1, Name: "Berlin", Timezone: "UTC", ChatID: 500},
			{ID: 2, Name: "Draft", Timezone: "UTC"}, // no chat yet
		},
		games: map[int64][]domain.GameView{
			1: {
				{ID: 10, Title: "Friday Cup", LocalityID: 1, StartsAt: starts},
				{ID: 11, Title: "Late Kickabout", LocalityID: 1, StartsAt: starts.Add(2 * time.Hour)},
			},
		},
	}
	store := storage.NewMemory()
	msgr := &pinMessenger{}
	cache := locality.NewCache(reader, logx.Nop())
	return NewRefresher(reader, store, msgr, cache, logx.Nop()), reader, msgr, store
}

func TestRefreshSendsAndPinsFirstTime(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _, msgr, store := newPinFixture(t)

	r.Refresh(ctx)

	if len(msgr.sends) != 1 {
		t.Fatalf("sends = %d, want 1 (chatless locality skipped)", len(msgr.sends))
	}
	if len(msgr.pinned) != 1 || msgr.pinned[0].ChatID != 500 {
		t.Fatalf("pinned = %+v, want one pin in chat 500", msgr.pinned)
	}

	text := msgr.sends[0]
	for _, want := range []string{"<b>Today&#39;s games</b>", "• Friday Cup", "• Late Kickabout", "18:00"} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary %q missing %q", text, want)
		}
	}

	ref, ok, err := store.GetPinnedRef(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("GetPinnedRef = %v, %v, %v; want stored ref", ref, ok, err)
	}
	if ref.ChatID != 500 || ref.MessageID != msgr.pinned[0].MessageID {
		t.Fatalf("stored ref = %+v, want the pinned message", ref)
	}
}

func TestRefreshEditsInPlace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _, msgr, store := newPinFixture(t)

	if err := store.PutPinnedRef(ctx, storage.PinnedRef{LocalityID: 1, ChatID: 500, MessageID: 42}); err != nil {
		t.Fatalf("PutPinnedRef: %v", err)
	}

	r.Refresh(ctx)

	if len(msgr.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(msgr.edits))
	}
	if len(msgr.sends) != 0 {
		t.Fatalf("sends = %d, want 0 when the edit succeeds", len(msgr.sends))
	}
}

func TestRefreshFallsBackWhenEditFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _, msgr, store := newPinFixture(t)
	msgr.editErr = errors.New("message to edit not found")

	if err := store.PutPinnedRef(ctx, storage.PinnedRef{LocalityID: 1, ChatID: 500, MessageID: 42}); err != nil {
		t.Fatalf("PutPinnedRef: %v", err)
	}

	r.Refresh(ctx)

	if len(msgr.sends) != 1 || len(msgr.pinned) != 1 {
		t.Fatalf("sends = %d, pins = %d, want 1/1 after edit failure", len(msgr.sends), len(msgr.pinned))
	}
	ref, ok, err := store.GetPinnedRef(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("GetPinnedRef after fallback: %v, %v, %v", ref, ok, err)
	}
	if ref.MessageID == 42 {
		t.Fatalf("stored ref still points at the dead message")
	}
}

func TestRefreshEmptySchedule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, reader, msgr, _ := newPinFixture(t)
	reader.games = nil

	r.Refresh(ctx)

	if len(msgr.sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(msgr.sends))
	}
	if !strings.Contains(msgr.sends[0], "No upcoming games today.") {
		t.Fatalf("empty summary = %q, want the empty-state line", msgr.sends[0])
	}
}
