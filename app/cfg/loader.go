package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"rankwatch_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"rankwatch_password" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"rankwatch" description:"Database name"`

	// Application configuration
	SeedDir           string `long:"seed-dir" env:"SEED_DIR" default:"./seeds" description:"Directory containing evaluation config seed files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for task processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Scheduler interval in seconds"`
	EvalConcurrency   int    `long:"eval-concurrency" env:"EVAL_CONCURRENCY" default:"8" description:"Maximum concurrent item evaluations per sweep"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Business timezone
	TimezoneOffsetHours int `long:"tz-offset" env:"TZ_OFFSET_HOURS" default:"9" description:"Business timezone offset in hours east of UTC (9 = JST)"`

	// Search analytics source
	SearchAPIBaseURL string `long:"search-api-base-url" env:"SEARCH_API_BASE_URL" default:"https://searchconsole.googleapis.com" description:"Search analytics API base URL"`
	SearchAPIKey     string `long:"search-api-key" env:"SEARCH_API_KEY" description:"Search analytics API access token"`

	// Suggestion generation
	LLMAPIKey  string `long:"llm-api-key" env:"LLM_API_KEY" description:"LLM API key for suggestion generation"`
	LLMBaseURL string `long:"llm-base-url" env:"LLM_BASE_URL" default:"https://api.openai.com" description:"LLM API base URL"`
	LLMModel   string `long:"llm-model" env:"LLM_MODEL" default:"gpt-4o-mini" description:"LLM model for suggestion generation"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RankWatch/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:              raw.DBHost,
		DBPort:              raw.DBPort,
		DBUser:              raw.DBUser,
		DBPassword:          raw.DBPassword,
		DBName:              raw.DBName,
		SeedDir:             raw.SeedDir,
		Port:                raw.Port,
		WorkerCount:         raw.WorkerCount,
		SchedulerInterval:   raw.SchedulerInterval,
		EvalConcurrency:     raw.EvalConcurrency,
		APIAccessKey:        raw.APIAccessKey,
		TimezoneOffsetHours: raw.TimezoneOffsetHours,
		SearchAPIBaseURL:    raw.SearchAPIBaseURL,
		SearchAPIKey:        raw.SearchAPIKey,
		LLMAPIKey:           raw.LLMAPIKey,
		LLMBaseURL:          raw.LLMBaseURL,
		LLMModel:            raw.LLMModel,
		UserAgent:           raw.UserAgent,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}
