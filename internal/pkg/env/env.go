package env

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// loaded .env wins over the process environment
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvDuration parses values like "24h" or "90s". Invalid or non-positive
// values fall back to def.
func GetEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func GetEnvInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(GetEnv(key, "")))
	if err != nil {
		return def
	}
	return v
}

func GetEnvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(GetEnv(key, "")))
	if err != nil {
		return def
	}
	return b
}

// SetupEnvFile loads the first .env found. A missing file is only fatal
// outside of containers, where every setting comes from the environment.
func SetupEnvFile() {
	envFiles := []string{
		".env",
		"../../.env", // from cmd/subsportal
		"../../../.env",
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return
		}
	}
	Env = map[string]string{}

	if os.Getenv("APP_ENV") == "" {
		panic("No .env file found in any of the expected locations")
	}
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
