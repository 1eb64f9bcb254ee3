package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ytsummarizer/internal/domain"
)

// Handler produces the transcript for a video on the privileged side.
type Handler func(ctx context.Context, videoID string) (domain.Transcript, error)

// Responder answers every transcript request seen on the bus with exactly one
// response carrying the same correlation ID.
type Responder struct {
	bus            *Bus
	handler        Handler
	handlerTimeout time.Duration

	inbox       <-chan Envelope
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	log         *slog.Logger
}

// NewResponder starts serving immediately. A zero handlerTimeout leaves the
// handler bounded only by Stop.
func NewResponder(b *Bus, handler Handler, handlerTimeout time.Duration, log *slog.Logger) *Responder {
	ctx, cancel := context.WithCancel(context.Background())
	inbox, unsubscribe := b.SubscribeLossless(subscriberBuffer)

	r := &Responder{
		bus:            b,
		handler:        handler,
		handlerTimeout: handlerTimeout,
		inbox:          inbox,
		unsubscribe:    unsubscribe,
		ctx:            ctx,
		cancel:         cancel,
		log:            log,
	}

	r.wg.Add(1)
	go r.serve()

	return r
}

// Stop cancels in-flight handlers and waits for them to publish.
func (r *Responder) Stop() {
	r.cancel()
	r.unsubscribe()
	r.wg.Wait()
}

func (r *Responder) serve() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-r.inbox:
			if !ok {
				return
			}

			if msg.Type != TypeRequest || msg.CorrelationID == "" {
				continue
			}

			r.wg.Add(1)
			go r.handle(msg)
		}
	}
}

func (r *Responder) handle(req Envelope) {
	defer r.wg.Done()

	ctx := r.ctx
	if r.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.handlerTimeout)
		defer cancel()
	}

	start := time.Now()
	transcript, err := r.call(ctx, req.VideoID)

	resp := Envelope{
		Type:          TypeResponse,
		CorrelationID: req.CorrelationID,
	}

	if err != nil {
		r.log.WarnContext(ctx, "Transcript extraction failed",
			"error", err,
			"videoID", req.VideoID,
			"correlationID", req.CorrelationID,
			"elapsed", time.Since(start))

		resp.Error = err.Error()
	} else {
		r.log.InfoContext(ctx, "Transcript is extracted",
			"videoID", req.VideoID,
			"correlationID", req.CorrelationID,
			"method", transcript.Method,
			"textLen", len(transcript.Text),
			"elapsed", time.Since(start))

		resp.Method = string(transcript.Method)
		resp.Text = transcript.Text
	}

	r.bus.Publish(resp)
}

func (r *Responder) call(ctx context.Context, videoID string) (transcript domain.Transcript, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transcript handler panicked: %v", p)
		}
	}()

	return r.handler(ctx, videoID)
}
