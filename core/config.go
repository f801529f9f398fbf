package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// placeholder values shipped in sample env files
const (
	DemoSupabaseURL     = "https://demo.supabase.co"
	DemoSupabaseAnonKey = "demo-key"
)

type (
	SupabaseConfig struct {
		URL      string
		AnonKey  string
		DemoMode bool
		SiteURL  string // used to build the password reset redirect
	}

	ServerConfig struct {
		Address            string
		Host               string
		DebugHost          string
		DisableReqLogs     bool
		ShutdownTimeout    time.Duration
		SessionCookie      string
		SecureCookie       bool
		SessionIdleTimeout time.Duration
		SettleTimeout      time.Duration
	}

	DatabaseConfig struct {
		Driver     string // postgrest (default), postgres, memory
		Engine     string
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}

	RedisConfig struct {
		Address    string
		Password   string
		DB         int
		SessionTTL time.Duration
	}

	Config struct {
		AppName      string
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		WorkDir      string
		RollbarToken string
		Supabase     SupabaseConfig
		Server       ServerConfig
		Database     DatabaseConfig
		Redis        RedisConfig
	}
)

func (c DatabaseConfig) Address() string {
	if c.Port == "" {
		return c.Host
	}
	return c.Host + ":" + c.Port
}

// IsDemoMode reports whether the backend is not configured: demo flag set, values missing or placeholders.
func (c *Config) IsDemoMode() bool {
	s := c.Supabase
	return s.DemoMode ||
		s.URL == "" || s.AnonKey == "" ||
		s.URL == DemoSupabaseURL || s.AnonKey == DemoSupabaseAnonKey
}

// NewConfig loads the configuration for the current ENV (DEV (local; default), TEST, QA, PROD).
func NewConfig() *Config {
	conf := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	workDir := Getwd()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "SmartLearn")
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", env == "DEV" || env == "TEST")
	conf.SetDefault("testMode", env == "TEST")
	conf.SetDefault("rollbar.token", "")

	conf.SetDefault("supabase.url", "")
	conf.SetDefault("supabase.anonKey", "")
	conf.SetDefault("supabase.demoMode", false)
	conf.SetDefault("supabase.siteURL", "http://localhost:8000")

	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.disableReqLogs", false)
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.sessionCookie", "sl_session")
	conf.SetDefault("server.secureCookie", false)
	conf.SetDefault("server.sessionIdleTimeout", 30*time.Minute)
	conf.SetDefault("server.settleTimeout", 3*time.Second)

	conf.SetDefault("database.driver", "postgrest")
	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "postgres")
	conf.SetDefault("database.user", "postgres")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")

	conf.SetDefault("redis.address", "")
	conf.SetDefault("redis.password", "")
	conf.SetDefault("redis.db", 0)
	conf.SetDefault("redis.sessionTTL", 7*24*time.Hour)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	// SERVER_ADDRESS -> server.address
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	// the original front-end variable names
	_ = conf.BindEnv("supabase.url", "SUPABASE_URL", "VITE_SUPABASE_URL")
	_ = conf.BindEnv("supabase.anonKey", "SUPABASE_ANON_KEY", "VITE_SUPABASE_ANON_KEY")
	_ = conf.BindEnv("supabase.demoMode", "DEMO_MODE", "VITE_DEMO_MODE")
	_ = conf.BindEnv("supabase.siteURL", "SITE_URL")
	_ = conf.BindEnv("rollbar.token", "ROLLBAR_TOKEN")
	_ = conf.BindEnv("redis.address", "REDIS_ADDR", "REDIS_ADDRESS")
	_ = conf.BindEnv("database.driver", "DATABASE_DRIVER")

	return &Config{
		AppName:      conf.GetString("appName"),
		Env:          env,
		Build:        conf.GetString("build"),
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		WorkDir:      workDir,
		RollbarToken: conf.GetString("rollbar.token"),
		Supabase: SupabaseConfig{
			URL:      strings.TrimRight(conf.GetString("supabase.url"), "/"),
			AnonKey:  conf.GetString("supabase.anonKey"),
			DemoMode: conf.GetBool("supabase.demoMode"),
			SiteURL:  strings.TrimRight(conf.GetString("supabase.siteURL"), "/"),
		},
		Server: ServerConfig{
			Address:            conf.GetString("server.address"),
			Host:               conf.GetString("server.host"),
			DebugHost:          conf.GetString("server.debugHost"),
			DisableReqLogs:     conf.GetBool("server.disableReqLogs"),
			ShutdownTimeout:    conf.GetDuration("server.shutdownTimeout"),
			SessionCookie:      conf.GetString("server.sessionCookie"),
			SecureCookie:       conf.GetBool("server.secureCookie"),
			SessionIdleTimeout: conf.GetDuration("server.sessionIdleTimeout"),
			SettleTimeout:      conf.GetDuration("server.settleTimeout"),
		},
		Database: DatabaseConfig{
			Driver:     conf.GetString("database.driver"),
			Engine:     conf.GetString("database.engine"),
			Host:       conf.GetString("database.host"),
			Port:       conf.GetString("database.port"),
			Name:       conf.GetString("database.name"),
			User:       conf.GetString("database.user"),
			Password:   conf.GetString("database.password"),
			DisableTLS: conf.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Address:    conf.GetString("redis.address"),
			Password:   conf.GetString("redis.password"),
			DB:         conf.GetInt("redis.db"),
			SessionTTL: conf.GetDuration("redis.sessionTTL"),
		},
	}
}
