package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	GeminiAPIKey string
	GeminiModel  string

	LinkBatchSize   int
	MaxLinksPerPage int
	MaxImages       int
	MaxRetries      int
	FetchTimeoutSec int
	RateIntervalMs  int
	SettleDelayMs   int
	AITextLimit     int

	// Neighborhoods is the allow-list sent to the AI escalation prompt.
	// Listings outside these neighborhoods are treated as non-matches.
	Neighborhoods []string

	SeedIfEmpty  bool
	ResetIfDone  bool
	RefineWithAI bool

	// CSVOutputPath, when set, makes the crawl stage dump the raw records
	// still awaiting processing to a CSV snapshot after each run.
	CSVOutputPath string

	ChromeBin string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "imovel_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		LinkBatchSize:   getEnvInt("LINK_BATCH_SIZE", 10),
		MaxLinksPerPage: getEnvInt("MAX_LINKS_PER_PAGE", 10),
		MaxImages:       getEnvInt("MAX_IMAGES", 15),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		FetchTimeoutSec: getEnvInt("FETCH_TIMEOUT_SEC", 15),
		RateIntervalMs:  getEnvInt("RATE_INTERVAL_MS", 1500),
		SettleDelayMs:   getEnvInt("SETTLE_DELAY_MS", 2000),
		AITextLimit:     getEnvInt("AI_TEXT_LIMIT", 12000),

		Neighborhoods: getEnvList("TARGET_NEIGHBORHOODS",
			"Centro,Jardim América,Vila Nova,Praia do Morro,Enseada Azul"),

		SeedIfEmpty:  getEnvBool("SEED_IF_EMPTY", true),
		ResetIfDone:  getEnvBool("RESET_IF_DONE", false),
		RefineWithAI: getEnvBool("REFINE_WITH_AI", true),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", ""),

		ChromeBin: getEnv("CHROME_BIN", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
