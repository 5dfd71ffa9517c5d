package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Config struct {
	Env        string
	ServerPort string

	StorageDriver string
	DataDir       string
	SQLitePath    string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string

	JWTSecret string
	JWTTTL    time.Duration

	CORSOrigins string
	RedisAddr   string

	OpenAIKeys     []string
	OpenAIBaseURL  string
	OpenAIModel    string
	OpenAITimeout  time.Duration
	AIJudgeEnabled bool
	ChatCacheTTL   time.Duration
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	return &Config{
		Env:        getEnv("APP_ENV", "development"),
		ServerPort: getEnv("SERVER_PORT", "5000"),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageFile)),
		DataDir:       getEnv("DATA_DIR", "./data"),
		SQLitePath:    getEnv("SQLITE_PATH", "./data/memory-maze.db"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "memory_maze"),

		JWTSecret: getEnv("JWT_SECRET", "memory-maze-secret-key"),
		JWTTTL:    time.Duration(getEnvInt("JWT_TTL_HOURS", 24*7)) * time.Hour,

		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),

		OpenAIKeys:     apiKeys(),
		OpenAIBaseURL:  strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAITimeout:  time.Duration(getEnvInt("OPENAI_TIMEOUT_SECONDS", 60)) * time.Second,
		AIJudgeEnabled: getEnvBool("AI_JUDGE_ENABLED", false),
		ChatCacheTTL:   time.Duration(getEnvInt("CHAT_CACHE_TTL_MINUTES", 5)) * time.Minute,
	}, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env != "production" && c.Env != "prod"
}

// PostgresDSN builds the DSN for the postgres storage driver.
func (c *Config) PostgresDSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=disable"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := strings.TrimSpace(getEnv(key, ""))
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultValue
	}
	return i
}

func getEnvBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(getEnv(key, ""))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// apiKeys prefers the OPENAI_API_KEYS list over the single OPENAI_API_KEY.
func apiKeys() []string {
	if keys := splitKeys(getEnv("OPENAI_API_KEYS", "")); len(keys) > 0 {
		return keys
	}
	return splitKeys(getEnv("OPENAI_API_KEY", ""))
}

// splitKeys accepts a single key or a comma-separated list.
func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
