package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port      string
	UploadDir string
	OutputDir string

	// Browser tuning. The scroll/stale numbers are empirically tuned
	// against the maps results feed; change with care.
	ChromeBin      string
	SettleMs       int
	ScrollPauseMs  int
	DetailPauseMs  int
	FeedTimeoutMs  int
	NavTimeoutMs   int
	MaxScrolls     int
	StaleRounds    int
	PostcodeGapMs  int
	MaxUploadBytes int64

	PostcodesAPIBase string
	JobRetention     time.Duration
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Port:      getEnv("PORT", "5000"),
		UploadDir: getEnv("UPLOAD_DIR", "./uploads"),
		OutputDir: getEnv("OUTPUT_DIR", "./output"),

		ChromeBin:      getEnv("CHROME_BIN", ""),
		SettleMs:       getEnvInt("SETTLE_MS", 2500),
		ScrollPauseMs:  getEnvInt("SCROLL_PAUSE_MS", 1500),
		DetailPauseMs:  getEnvInt("DETAIL_PAUSE_MS", 1000),
		FeedTimeoutMs:  getEnvInt("FEED_TIMEOUT_MS", 8000),
		NavTimeoutMs:   getEnvInt("NAV_TIMEOUT_MS", 20000),
		MaxScrolls:     getEnvInt("MAX_SCROLLS", 15),
		StaleRounds:    getEnvInt("STALE_ROUNDS", 3),
		PostcodeGapMs:  getEnvInt("POSTCODE_GAP_MS", 1000),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 50)) * 1024 * 1024,

		PostcodesAPIBase: getEnv("POSTCODES_API_BASE", "https://api.postcodes.io"),
		JobRetention:     time.Duration(getEnvInt("JOB_RETENTION_MIN", 60)) * time.Minute,
	}
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
