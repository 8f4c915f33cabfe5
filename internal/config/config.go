package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string
	UpstreamURL   string
	SessionSecret string
	AllowedOrigin string
	// Production controls the Secure attribute on the guest cookie
	Production bool
}

// fileConfig mirrors Config for the optional YAML file. File values act as
// defaults; environment variables win.
type fileConfig struct {
	Port          string `yaml:"port"`
	UpstreamURL   string `yaml:"upstream_url"`
	SessionSecret string `yaml:"session_secret"`
	AllowedOrigin string `yaml:"allowed_origin"`
	Env           string `yaml:"env"`
}

func Load() Config {
	_ = godotenv.Load()
	fc := loadFile(getEnvDefault("CONFIG_FILE", "config.yaml"))

	env := getEnvDefault("APP_ENV", fc.Env)
	cfg := Config{
		Port:          getEnvDefault("PORT", defaultStr(fc.Port, "8080")),
		UpstreamURL:   strings.TrimSuffix(getEnvDefault("UPSTREAM_URL", defaultStr(fc.UpstreamURL, "http://localhost:8000/api")), "/"),
		SessionSecret: getEnvDefault("SESSION_SECRET", fc.SessionSecret),
		AllowedOrigin: getEnvDefault("ALLOWED_ORIGIN", defaultStr(fc.AllowedOrigin, "*")),
		Production:    strings.EqualFold(env, "production"),
	}
	if cfg.SessionSecret == "" {
		log.Println("warning: SESSION_SECRET is not set; guest cookies will not be protected")
	}
	return cfg
}

// loadFile reads the optional YAML config file. A missing file is fine;
// a malformed one is reported and skipped.
func loadFile(path string) fileConfig {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		log.Printf("warning: ignoring malformed config file %s: %v", path, err)
		return fileConfig{}
	}
	return fc
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultStr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
