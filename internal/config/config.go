package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"ytsummarizer/internal/domain"
)

type Config struct {
	Token        string     `env:"TOKEN,required,notEmpty"`
	AllowedUsers []int64    `env:"ALLOWED_USERS"`
	DBPath       string     `env:"DB_PATH"                 envDefault:"db.sqlite"`
	LogLevel     slog.Level `env:"LOG_LEVEL"               envDefault:"INFO"`

	YouTubeBaseURL    string        `env:"YOUTUBE_BASE_URL"   envDefault:"https://www.youtube.com"`
	TranscriptTimeout time.Duration `env:"TRANSCRIPT_TIMEOUT" envDefault:"15s"`
	TranscriptMethods []string      `env:"TRANSCRIPT_METHODS" envDefault:"structured-json"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT"       envDefault:"20s"`
	LLMTimeout        time.Duration `env:"LLM_TIMEOUT"        envDefault:"2m"`

	SessionIdleTTL   time.Duration `env:"SESSION_IDLE_TTL"   envDefault:"30m"`
	SessionCacheSize int           `env:"SESSION_CACHE_SIZE" envDefault:"32"`
	SummaryCacheTTL  time.Duration `env:"SUMMARY_CACHE_TTL"  envDefault:"6h"`
	SweepSpec        string        `env:"SWEEP_SPEC"         envDefault:"@every 5m"`
}

func LoadConfig() Config {
	return env.Must(env.ParseAs[Config]())
}

// Methods parses TranscriptMethods in their configured order.
func (c Config) Methods() ([]domain.TranscriptMethod, error) {
	methods := make([]domain.TranscriptMethod, 0, len(c.TranscriptMethods))

	for _, raw := range c.TranscriptMethods {
		m, err := domain.ParseTranscriptMethod(raw)
		if err != nil {
			return nil, fmt.Errorf("parse TRANSCRIPT_METHODS: %w", err)
		}

		methods = append(methods, m)
	}

	if len(methods) == 0 {
		return nil, errors.New("parse TRANSCRIPT_METHODS: no methods configured")
	}

	return methods, nil
}
