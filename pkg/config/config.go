package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Cleaners  []CleanerConfig
	Judge     JudgeConfig
	Pipeline  PipelineConfig
	Scoring   ScoringConfig
	Paths     PathsConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

// LLMConfig lists the OpenAI-compatible endpoints the cleaners and the judge
// can be routed to, keyed by provider name.
type LLMConfig struct {
	Providers  map[string]ProviderConfig
	TimeoutSec int
	MaxTokens  int
}

type ProviderConfig struct {
	BaseURL string
	APIKey  string
}

type CleanerConfig struct {
	Name        string
	Provider    string
	Model       string
	Temperature float32
	Correct     bool
}

type JudgeConfig struct {
	Provider    string
	Model       string
	Temperature float32
}

type PipelineConfig struct {
	Workers        int
	StartIndex     int
	EndIndex       int
	RequestDelayMs int
	PreClean       bool
	// PreCleanSkip names pre-cleaning rules to leave out.
	PreCleanSkip []string
	Diffs        bool
}

type ScoringConfig struct {
	ScaleMin        int
	ScaleMax        int
	ReviewThreshold float64
}

type PathsConfig struct {
	Dataset string
	Results string
	Report  string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

// Load reads configuration from path, or from the default search locations
// when path is empty. A missing default config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/ocr-eval")
	}

	v.SetEnvPrefix("OCR_EVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(config.Cleaners) == 0 {
		config.Cleaners = defaultCleaners()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks cross-field constraints viper cannot express.
func (c *Config) Validate() error {
	if c.Scoring.ScaleMin > c.Scoring.ScaleMax {
		return fmt.Errorf("scoring scale is inverted: min %d > max %d", c.Scoring.ScaleMin, c.Scoring.ScaleMax)
	}
	if c.Pipeline.StartIndex < 1 {
		return fmt.Errorf("pipeline.startIndex must be >= 1, got %d", c.Pipeline.StartIndex)
	}
	if c.Pipeline.EndIndex != 0 && c.Pipeline.StartIndex > c.Pipeline.EndIndex {
		return fmt.Errorf("pipeline.startIndex (%d) cannot be greater than pipeline.endIndex (%d)", c.Pipeline.StartIndex, c.Pipeline.EndIndex)
	}

	seen := make(map[string]bool, len(c.Cleaners))
	for _, cl := range c.Cleaners {
		if cl.Name == "" || cl.Model == "" {
			return fmt.Errorf("cleaner entries need a name and a model")
		}
		if seen[cl.Name] {
			return fmt.Errorf("duplicate cleaner name %q", cl.Name)
		}
		seen[cl.Name] = true
	}

	return nil
}

func defaultCleaners() []CleanerConfig {
	return []CleanerConfig{
		{Name: "Gemini-1.5-Flash", Provider: "gemini", Model: "gemini-1.5-flash", Temperature: 0.2, Correct: true},
		{Name: "Mistral", Provider: "groq", Model: "mistral-saba-24b", Temperature: 0.2, Correct: true},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.development", false)

	v.SetDefault("sqlite.path", "./data/ocr_eval.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlHours", 168)

	v.SetDefault("llm.providers", map[string]any{
		"openai": map[string]any{"baseURL": "https://api.openai.com/v1", "apiKey": ""},
		"gemini": map[string]any{"baseURL": "https://generativelanguage.googleapis.com/v1beta/openai", "apiKey": ""},
		"groq":   map[string]any{"baseURL": "https://api.groq.com/openai/v1", "apiKey": ""},
	})
	v.SetDefault("llm.timeoutSec", 60)
	v.SetDefault("llm.maxTokens", 4096)

	v.SetDefault("judge.provider", "gemini")
	v.SetDefault("judge.model", "gemini-1.5-flash")
	v.SetDefault("judge.temperature", 0.0)

	v.SetDefault("pipeline.workers", 2)
	v.SetDefault("pipeline.startIndex", 1)
	v.SetDefault("pipeline.endIndex", 0)
	v.SetDefault("pipeline.requestDelayMs", 1000)
	v.SetDefault("pipeline.preClean", true)
	v.SetDefault("pipeline.preCleanSkip", []string{})
	v.SetDefault("pipeline.diffs", true)

	v.SetDefault("scoring.scaleMin", 0)
	v.SetDefault("scoring.scaleMax", 5)
	v.SetDefault("scoring.reviewThreshold", 0.6)

	v.SetDefault("paths.dataset", "./dataset/subset.json")
	v.SetDefault("paths.results", "./results/full_pipeline_results.json")
	v.SetDefault("paths.report", "./results/kappa_analysis_report.txt")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("ratelimit.requestsPerMinute", 120)
}
