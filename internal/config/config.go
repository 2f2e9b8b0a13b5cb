package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config carries every environment-driven setting for the collection
// platform. Missing values fall back to defaults with a logged warning where
// the service can still operate without them.
type Config struct {
	DatabaseURL string
	RedisURL    string
	HTTPPort    int
	APIKey      string

	TelegramBotToken string

	CoinGeckoPollSecs   int
	NewsPollSecs        int
	OnChainPollSecs     int
	DerivativesPollSecs int
	IndicatorPollSecs   int
	SentimentPollSecs   int
	FeaturePollSecs     int

	RSSFeeds     []string
	NewsMaxItems int

	OpenAIAPIKey       string
	OpenAIModel        string
	SentimentBatchSize int

	BackfillMaxHours int
	GapLookbackHours int
	RetentionDays    int

	AnomalyEnabled bool

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int

	SSHBind        string
	SSHPort        int
	SSHHostKeyPath string
}

var defaultRSSFeeds = []string{
	"https://cointelegraph.com/rss",
	"https://www.coindesk.com/arc/outboundfeeds/rss/",
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		APIKey:           strings.TrimSpace(os.Getenv("API_KEY")),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, bot disabled")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, sentiment falls back to heuristic scoring")
	}

	cfg.HTTPPort = envInt("HTTP_PORT", 8080)

	cfg.CoinGeckoPollSecs = envInt("COINGECKO_POLL_SECS", 60)
	cfg.NewsPollSecs = envInt("NEWS_POLL_SECS", 600)
	cfg.OnChainPollSecs = envInt("ONCHAIN_POLL_SECS", 900)
	cfg.DerivativesPollSecs = envInt("DERIVATIVES_POLL_SECS", 900)
	cfg.IndicatorPollSecs = envInt("INDICATOR_POLL_SECS", 900)
	cfg.SentimentPollSecs = envInt("SENTIMENT_POLL_SECS", 300)
	cfg.FeaturePollSecs = envInt("FEATURE_POLL_SECS", 1800)

	cfg.RSSFeeds = defaultRSSFeeds
	if v := strings.TrimSpace(os.Getenv("RSS_FEEDS")); v != "" {
		feeds := make([]string, 0, 4)
		for _, feed := range strings.Split(v, ",") {
			feed = strings.TrimSpace(feed)
			if feed != "" {
				feeds = append(feeds, feed)
			}
		}
		if len(feeds) > 0 {
			cfg.RSSFeeds = feeds
		}
	}
	cfg.NewsMaxItems = envInt("NEWS_MAX_ITEMS", 40)

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	cfg.SentimentBatchSize = envInt("SENTIMENT_BATCH_SIZE", 24)

	cfg.BackfillMaxHours = envInt("BACKFILL_MAX_HOURS", 168)
	cfg.GapLookbackHours = envInt("GAP_LOOKBACK_HOURS", 72)
	cfg.RetentionDays = envInt("RETENTION_DAYS", 90)

	cfg.AnomalyEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("ANOMALY_ENABLED")), "true")

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}
	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")
	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}
	cfg.MCPHTTPPort = envInt("MCP_HTTP_PORT", 8090)
	cfg.MCPRequestTimeoutSecs = envInt("MCP_REQUEST_TIMEOUT_SECS", 5)
	cfg.MCPRateLimitPerMin = envInt("MCP_RATE_LIMIT_PER_MIN", 60)

	cfg.SSHBind = strings.TrimSpace(os.Getenv("SSH_BIND"))
	if cfg.SSHBind == "" {
		cfg.SSHBind = "0.0.0.0"
	}
	cfg.SSHPort = envInt("SSH_PORT", 2222)
	cfg.SSHHostKeyPath = strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH"))
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/coinharvest_ed25519"
	}

	return cfg
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, defaulting to %d", key, v, fallback)
		return fallback
	}
	return n
}
