package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Application configuration
	SeedDir           string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	EvalConcurrency   int
	APIAccessKey      string

	// Business timezone offset for evaluation scheduling (hours east of UTC)
	TimezoneOffsetHours int

	// Search analytics source
	SearchAPIBaseURL string
	SearchAPIKey     string

	// Suggestion generation (LLM)
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
