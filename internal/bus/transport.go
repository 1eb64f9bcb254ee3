package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ytsummarizer/internal/domain"

	"github.com/google/uuid"
)

const (
	DefaultTimeout = 15 * time.Second

	subscriberBuffer = 64
)

var (
	ErrTimeout = errors.New("transcript request timed out")
	ErrStopped = errors.New("transport is stopped")
)

// RemoteError carries the message reported by the privileged side.
type RemoteError struct {
	CorrelationID string
	Message       string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Transport is the restricted side of the bridge. One dispatch loop reads the
// bus and completes entries of the pending table by correlation ID.
type Transport struct {
	bus     *Bus
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan Envelope

	inbox       <-chan Envelope
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	log         *slog.Logger
}

func NewTransport(b *Bus, timeout time.Duration, log *slog.Logger) *Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	inbox, unsubscribe := b.SubscribeLossless(subscriberBuffer)

	t := &Transport{
		bus:         b,
		timeout:     timeout,
		pending:     make(map[string]chan Envelope),
		inbox:       inbox,
		unsubscribe: unsubscribe,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		log:         log,
	}

	go t.dispatch()

	return t
}

// Send publishes one transcript request for videoID and waits for the
// correlated response, the timeout, or ctx cancellation, whichever is first.
func (t *Transport) Send(ctx context.Context, videoID string) (domain.Transcript, error) {
	correlationID := newCorrelationID()
	reply := make(chan Envelope, 1)

	t.mu.Lock()
	t.pending[correlationID] = reply
	t.mu.Unlock()

	defer t.forget(correlationID)

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	t.bus.Publish(Envelope{
		Type:          TypeRequest,
		CorrelationID: correlationID,
		VideoID:       videoID,
	})

	select {
	case msg := <-reply:
		if msg.Error != "" {
			return domain.Transcript{}, &RemoteError{
				CorrelationID: correlationID,
				Message:       msg.Error,
			}
		}

		return domain.Transcript{
			Method: domain.TranscriptMethod(msg.Method),
			Text:   msg.Text,
		}, nil

	case <-timer.C:
		t.log.WarnContext(ctx, "Transcript request timed out",
			"videoID", videoID,
			"correlationID", correlationID,
			"timeout", t.timeout)

		return domain.Transcript{}, fmt.Errorf("%w after %s", ErrTimeout, t.timeout)

	case <-ctx.Done():
		return domain.Transcript{}, ctx.Err()

	case <-t.ctx.Done():
		return domain.Transcript{}, ErrStopped
	}
}

// Pending reports how many requests are waiting for a response.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.pending)
}

func (t *Transport) Stop() {
	t.cancel()
	t.unsubscribe()
	<-t.done
}

func (t *Transport) forget(correlationID string) {
	t.mu.Lock()
	delete(t.pending, correlationID)
	t.mu.Unlock()
}

func (t *Transport) dispatch() {
	defer close(t.done)

	for {
		select {
		case <-t.ctx.Done():
			return
		case msg, ok := <-t.inbox:
			if !ok {
				return
			}

			t.deliver(msg)
		}
	}
}

func (t *Transport) deliver(msg Envelope) {
	if msg.Type != TypeResponse || msg.CorrelationID == "" {
		return
	}

	t.mu.Lock()
	reply, ok := t.pending[msg.CorrelationID]
	if ok {
		delete(t.pending, msg.CorrelationID)
	}
	t.mu.Unlock()

	if !ok {
		t.log.Debug("Response without pending request is ignored",
			"correlationID", msg.CorrelationID)

		return
	}

	reply <- msg
}

func newCorrelationID() string {
	return fmt.Sprintf("yts-%d-%s", time.Now().UnixNano(), uuid.NewString())
}
