package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
)

type Config struct {
	// IRC connection
	IRCServer        string `env:"IRC_SERVER,required"`
	IRCPort          int    `env:"IRC_PORT" envDefault:"6697"`
	IRCNick          string `env:"IRC_NICK" envDefault:"Emul"`
	IRCUseTLS        bool   `env:"IRC_USE_TLS" envDefault:"true"`
	NickservPassword string `env:"NICKSERV_PASSWORD"`

	// Bootstrap admin, inserted only when the admins table is empty
	InitialAdmin string `env:"INITIAL_ADMIN"`

	// LLM settings
	LLMProvider   LLMProvider `env:"LLM_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey  string      `env:"GEMINI_API_KEY"`
	GeminiModel   string      `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	OpenAIAPIKey  string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string      `env:"OPENAI_BASE_URL"`
	OpenAIModel   string      `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`

	// Conversation engine
	HistoryLines  int           `env:"HISTORY_LINES" envDefault:"500"`
	MaxToolRounds int           `env:"MAX_TOOL_ROUNDS" envDefault:"2"`
	LLMTimeout    time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	ToolTimeout   time.Duration `env:"TOOL_TIMEOUT" envDefault:"20s"`

	// Interjection pacing, mean gaps are in messages
	InterjectMeanGap float64       `env:"INTERJECT_MEAN_GAP" envDefault:"50"`
	InterjectMinGap  time.Duration `env:"INTERJECT_MIN_GAP" envDefault:"2m"`
	MentionMeanGap   float64       `env:"MENTION_MEAN_GAP" envDefault:"5"`
	MentionMinGap    time.Duration `env:"MENTION_MIN_GAP" envDefault:"30s"`

	// Tools
	DownloadHookURL string `env:"DOWNLOAD_HOOK_URL"`

	// Storage
	DBPath        string `env:"DB_PATH" envDefault:"emul.sqlite"`
	AuditLogPath  string `env:"AUDIT_LOG_PATH" envDefault:"logs/interactions.jsonl"`
	RetentionDays int    `env:"LOG_RETENTION_DAYS" envDefault:"30"`
	RetentionSpec string `env:"RETENTION_SCHEDULE" envDefault:"0 4 * * *"`

	// Observability
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
