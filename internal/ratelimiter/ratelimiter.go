package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	queueSize       = 1000
)

// Sender is the subset of *bot.Bot the limiter drives.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type request struct {
	ctx      context.Context
	params   any
	call     func(ctx context.Context) (*models.Message, error)
	response chan response
}

type response struct {
	message *models.Message
	err     error
}

// RateLimiter serializes outgoing messages through one queue and keeps a
// minimum gap between messages to the same chat.
type RateLimiter struct {
	api      Sender
	queue    chan request
	lastSent map[int64]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
}

func New(api Sender, log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		api:      api,
		queue:    make(chan request, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}

	go rl.processQueue()

	return rl
}

func (rl *RateLimiter) SendMessage(
	ctx context.Context,
	params *bot.SendMessageParams,
) (*models.Message, error) {
	return rl.enqueue(ctx, params, func(ctx context.Context) (*models.Message, error) {
		return rl.api.SendMessage(ctx, params)
	})
}

func (rl *RateLimiter) EditMessageText(
	ctx context.Context,
	params *bot.EditMessageTextParams,
) (*models.Message, error) {
	return rl.enqueue(ctx, params, func(ctx context.Context) (*models.Message, error) {
		return rl.api.EditMessageText(ctx, params)
	})
}

// SendChatAction bypasses the queue; chat actions do not count as messages.
func (rl *RateLimiter) SendChatAction(ctx context.Context, params *bot.SendChatActionParams) error {
	_, err := rl.api.SendChatAction(ctx, params)
	return err
}

func (rl *RateLimiter) DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) error {
	_, err := rl.api.DeleteMessage(ctx, params)
	return err
}

func (rl *RateLimiter) AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) error {
	_, err := rl.api.AnswerCallbackQuery(ctx, params)
	return err
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
}

func (rl *RateLimiter) enqueue(
	ctx context.Context,
	params any,
	call func(ctx context.Context) (*models.Message, error),
) (*models.Message, error) {
	if err := rl.ctx.Err(); err != nil {
		return nil, err
	}

	req := request{
		ctx:      ctx,
		params:   params,
		call:     call,
		response: make(chan response, 1),
	}

	select {
	case rl.queue <- req:
	case <-rl.ctx.Done():
		return nil, rl.ctx.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-req.response:
		return resp.message, resp.err
	case <-rl.ctx.Done():
		return nil, rl.ctx.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (rl *RateLimiter) processQueue() {
	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.response <- response{err: rl.ctx.Err()}
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	if req.ctx.Err() != nil {
		req.response <- response{err: req.ctx.Err()}
		return
	}

	chatID := getChatID(req.params)

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[chatID]
	rl.mu.Unlock()

	if exists {
		delay := getDelay(chatID, lastSent)

		if delay > 0 {
			rl.log.DebugContext(req.ctx, "Rate limiting message",
				"chatID", chatID,
				"delay", delay,
				"queueLen", len(rl.queue))

			select {
			case <-time.After(delay):
			case <-rl.ctx.Done():
				req.response <- response{err: rl.ctx.Err()}
				return
			case <-req.ctx.Done():
				req.response <- response{err: req.ctx.Err()}
				return
			}
		}
	}

	message, err := req.call(req.ctx)

	rl.mu.Lock()
	rl.lastSent[chatID] = time.Now()
	rl.mu.Unlock()

	req.response <- response{
		message: message,
		err:     err,
	}
}

func getChatID(params any) int64 {
	var chatID any

	switch p := params.(type) {
	case *bot.SendMessageParams:
		chatID = p.ChatID
	case *bot.EditMessageTextParams:
		chatID = p.ChatID
	case *bot.SendChatActionParams:
		chatID = p.ChatID
	case *bot.DeleteMessageParams:
		chatID = p.ChatID
	default:
		return 0
	}

	switch id := chatID.(type) {
	case int64:
		return id
	case int:
		return int64(id)
	default:
		return 0
	}
}

func getDelay(
	chatID int64,
	lastSent time.Time,
) time.Duration {
	elapsed := time.Since(lastSent)
	rate := getRate(chatID)

	return max(rate-elapsed, 0)
}

func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
