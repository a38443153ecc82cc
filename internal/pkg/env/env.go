// Package env reads settings from the project .env file, falling back to
// the process environment.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// The server runs from the repo root, cmd/<name> during development, or
// one level deeper in tooling.
var envFileCandidates = []string{".env", "../../.env", "../../../.env"}

var (
	mu     sync.RWMutex
	values map[string]string
)

// SetupEnvFile loads the first .env file it finds and panics when none exists.
func SetupEnvFile() {
	for _, path := range envFileCandidates {
		m, err := godotenv.Read(path)
		if err != nil {
			continue
		}
		Use(m)
		return
	}
	panic(fmt.Sprintf("no .env file found (tried %s)", strings.Join(envFileCandidates, ", ")))
}

// Use replaces the file values and returns a func that restores the old ones.
func Use(m map[string]string) (restore func()) {
	mu.Lock()
	prev := values
	values = m
	mu.Unlock()
	return func() {
		mu.Lock()
		values = prev
		mu.Unlock()
	}
}

// GetEnv returns the .env value for key, then the OS value, then def.
// Empty OS values count as unset.
func GetEnv(key, def string) string {
	mu.RLock()
	v, ok := values[key]
	mu.RUnlock()
	if ok {
		return v
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func GetEnvInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(GetEnv(key, "")))
	if err != nil {
		return def
	}
	return n
}

func GetEnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(GetEnv(key, ""))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}

// PublicURL is the external base URL without a trailing slash.
func PublicURL() string {
	if base := strings.TrimRight(GetEnv("PUBLIC_DOMAIN", ""), "/"); base != "" {
		return base
	}
	return "http://" + GetEnv("APP_HOST", "localhost") + ":" + GetEnv("APP_PORT", "4000")
}
