package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// AppEnv returns APP_ENV, defaulting to "local"
func AppEnv() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	return "local"
}

// ConfigPath returns configs/config.<APP_ENV>.yaml
func ConfigPath() string {
	return fmt.Sprintf("configs/config.%s.yaml", AppEnv())
}

// LoadDotEnv loads .env.<APP_ENV>, .env.local and .env in that priority.
// godotenv never overwrites variables that are already set, so the OS
// environment wins, then the earlier files in the list.
func LoadDotEnv() []string {
	candidates := []string{".env." + AppEnv(), ".env.local", ".env"}
	var loaded []string
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}
