// Package alert escalates rare critical errors to operator chats over
// the bot channel. It is the last line of defense and therefore never
// raises: internal failures are logged and swallowed.
package alert

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"teamup/internal/botchan"
	"teamup/internal/domain"
	logx "teamup/pkg/logx"
)

const (
	cooldown      = 60 * time.Second
	reportTimeout = 8 * time.Second
	maxReportLen  = 3500
)

type Reporter struct {
	msgr   botchan.Messenger
	reader domain.Reader
	log    logx.Logger

	// enabled is false outside production-like environments.
	enabled bool
	now     func() time.Time

	mu        sync.Mutex
	reporting bool
	lastDone  time.Time
}

func NewReporter(msgr botchan.Messenger, reader domain.Reader, enabled bool, log logx.Logger) *Reporter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reporter{msgr: msgr, reader: reader, enabled: enabled, log: log, now: time.Now}
}

// Report escalates err to every operator. Calls while a report is in
// flight or within the cooldown window are dropped, not queued. The send
// fan-out is bounded by a hard 8s deadline; outstanding sends past it
// are abandoned rather than blocking the caller.
func (r *Reporter) Report(err error, context_ string) {
	if err == nil || !r.enabled {
		return
	}

	r.mu.Lock()
	if r.reporting || r.now().Sub(r.lastDone) < cooldown {
		r.mu.Unlock()
		return
	}
	r.reporting = true
	r.mu.Unlock()

	text := r.format(err, context_)

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	r.deliver(ctx, text)

	r.mu.Lock()
	r.reporting = false
	r.lastDone = r.now()
	r.mu.Unlock()
}

// deliver fans text out to operator chats and waits until every send
// finished or the deadline fired. Sends still in flight at the deadline
// are abandoned to their goroutines; nothing blocks past it.
func (r *Reporter) deliver(ctx context.Context, text string) {
	ops, err := r.reader.Operators(ctx)
	if err != nil {
		r.log.Warn("operator lookup failed", logx.Err(err))
		return
	}

	var wg sync.WaitGroup
	for _, op := range ops {
		if op.TelegramID == 0 {
			continue
		}
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			if _, err := r.msgr.Send(ctx, chatID, text, nil); err != nil {
				// Partial failures are logged, never escalated further.
				r.log.Warn("alert delivery failed", logx.Int64("chat", chatID), logx.Err(err))
			}
		}(op.TelegramID)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (r *Reporter) format(err error, context_ string) string {
	var b []byte
	b = append(b, "🚨 "...)
	if context_ != "" {
		b = append(b, context_...)
		b = append(b, ": "...)
	}
	b = append(b, err.Error()...)
	b = append(b, "\n\n"...)
	b = append(b, stack(32)...)
	return truncate(Redact(string(b)), maxReportLen)
}

func stack(maxFrames int) string {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	out := ""
	for {
		fr, more := frames.Next()
		if fr.File != "" {
			out += fmt.Sprintf("%s\n  %s:%d\n", fr.Function, fr.File, fr.Line)
		}
		if !more {
			break
		}
	}
	return out
}

func truncate(s string, maxN int) string {
	if len(s) <= maxN {
		return s
	}
	return s[:maxN-3] + "..."
}
