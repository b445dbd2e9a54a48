// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string
	Driver        string
	DatabaseURL   string
	DBPath        string
	PublicDir     string
	UploadDir     string
	Production    bool
	RedisURL      string
	BcryptCost    int
	AdminPassword string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:          ":" + getEnv("PORT", "3000"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBPath:        getEnv("DB_PATH", "forum.db"),
		PublicDir:     getEnv("PUBLIC_DIR", "public"),
		RedisURL:      os.Getenv("REDIS_URL"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		Production:    os.Getenv("APP_ENV") == "production",
		BcryptCost:    10,
	}
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.PublicDir+"/uploads")

	cfg.Driver = os.Getenv("DATABASE_DRIVER")
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
		if cfg.DatabaseURL != "" {
			cfg.Driver = "postgres"
		}
	}
	if cfg.Driver != "sqlite" && cfg.Driver != "postgres" {
		return nil, fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", cfg.Driver)
	}
	if cfg.Driver == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}

	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil || cost < 4 || cost > 31 {
			return nil, fmt.Errorf("invalid BCRYPT_COST %q", v)
		}
		cfg.BcryptCost = cost
	}
	return cfg, nil
}

// DSN is the connection string handed to the selected driver.
func (c *Config) DSN() string {
	if c.Driver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}
