package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ytsummarizer/internal/bot"
	"ytsummarizer/internal/bus"
	"ytsummarizer/internal/config"
	"ytsummarizer/internal/database"
	"ytsummarizer/internal/domain"
	"ytsummarizer/internal/innertube"
	"ytsummarizer/internal/scheduler"
	"ytsummarizer/internal/session"
	"ytsummarizer/internal/summarizer"
)

func main() {
	cfg := config.LoadConfig()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	methods, err := cfg.Methods()
	if err != nil {
		log.ErrorContext(ctx, "Invalid transcript methods",
			"error", err,
			"TRANSCRIPT_METHODS", cfg.TranscriptMethods)

		return
	}

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	messageBus := bus.New(log)
	defer messageBus.Close()

	youtubeClient := &http.Client{Timeout: cfg.HTTPTimeout}
	extractor := innertube.NewExtractor(
		innertube.NewWatchPageSource(youtubeClient, cfg.YouTubeBaseURL, log),
		innertube.NewClient(youtubeClient, log, innertube.WithBaseURL(cfg.YouTubeBaseURL)),
		methods,
		log,
	)

	responder := bus.NewResponder(messageBus, extractor.Extract, cfg.TranscriptTimeout, log)
	defer responder.Stop()

	transport := bus.NewTransport(messageBus, cfg.TranscriptTimeout, log)
	defer transport.Stop()

	log.InfoContext(ctx, "Transcript pipeline is initialized",
		"methods", methods,
		"timeout", cfg.TranscriptTimeout)

	llmClient := &http.Client{Timeout: cfg.LLMTimeout}
	summaryClient := summarizer.NewClient(func(settings domain.ProviderSettings) (summarizer.Provider, error) {
		return summarizer.NewProvider(settings, summarizer.WithHTTPClient(llmClient))
	}, log)

	sessions := session.NewManager(session.Config{
		CacheSize:   cfg.SessionCacheSize,
		CacheTTL:    cfg.SummaryCacheTTL,
		IdleTTL:     cfg.SessionIdleTTL,
		// One shared run covers a transcript round-trip and one LLM call.
		FlowTimeout: cfg.TranscriptTimeout + cfg.LLMTimeout,
	}, transport, db, summaryClient, log)

	botInst, err := bot.New(cfg.Token, db, sessions, cfg.AllowedUsers, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot",
			"error", err,
			"allowedUsersCount", len(cfg.AllowedUsers))

		return
	}
	log.InfoContext(ctx, "Bot is initialized",
		"allowedUsersCount", len(cfg.AllowedUsers))

	sched := scheduler.New(ctx, sessions, cfg.SweepSpec, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", sched.Spec())

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", sched.Spec(),
		"idleTTL", cfg.SessionIdleTTL)

	go func() {
		botInst.Start(ctx)
	}()
	log.InfoContext(ctx, "Bot is started")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())

	botInst.Stop()
	log.InfoContext(ctx, "Bot is stopped",
		"uptimeSeconds", time.Since(start).Seconds())
}
