package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/CamiloRuizJ/rexeli/internal/metrics"
	"github.com/CamiloRuizJ/rexeli/internal/resilience"
)

// Config for the OpenAI client.
type Config struct {
	APIKey      string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // vision-capable, e.g. "gpt-4o"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout; long for multi-page docs
}

type Client struct {
	cfg     Config
	http    *http.Client
	exec    *resilience.Executor
	metrics *metrics.ModelMetrics
	log     *slog.Logger
}

func NewClient(cfg Config, exec *resilience.Executor, mm *metrics.ModelMetrics, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Minute
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		exec:    exec,
		metrics: mm,
		log:     logger,
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}
