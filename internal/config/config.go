package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda "dev".
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr        string `yaml:"addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns int `yaml:"max_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// redis | memory
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		// Secreto simétrico (HS256). Obligatorio fuera de dev.
		Secret string `yaml:"secret"`
		// TTL corto para tokens de usuario (password / authorization_code).
		AccessTTL string `yaml:"access_ttl"`
		// TTL largo para tokens de client_credentials.
		ClientTTL  string `yaml:"client_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Auth struct {
		// Si está activo, el password grant exige un client_id registrado.
		// El comportamiento histórico era ambiguo, así que queda como
		// política explícita en vez de hardcodeado.
		RequireClientID bool `yaml:"require_client_id"`
		// Máximo de refresh sessions vivas por cuenta.
		MaxSessions int `yaml:"max_sessions"`
		Session     struct {
			CookieName string `yaml:"cookie_name"`
			Secure     bool   `yaml:"secure"`
			TTL        string `yaml:"ttl"`
		} `yaml:"session"`
	} `yaml:"auth"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
		Token struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"token"`
	} `yaml:"rate"`
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// overrides por ENV (el YAML es opcional en dev)
	if v := os.Getenv("HELLOJANE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("HELLOJANE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("HELLOJANE_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("HELLOJANE_JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.ClientTTL == "" {
		c.JWT.ClientTTL = "24h"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.Auth.MaxSessions == 0 {
		c.Auth.MaxSessions = 5
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "hj_session"
	}
	if c.Auth.Session.TTL == "" {
		c.Auth.Session.TTL = "12h"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if c.Rate.Token.Limit == 0 {
		c.Rate.Token.Limit = 30
	}
	if c.Rate.Token.Window == "" {
		c.Rate.Token.Window = "1m"
	}

	if c.App.Env != "dev" && c.JWT.Secret == "" {
		return nil, fmt.Errorf("config: jwt.secret es obligatorio en env=%s", c.App.Env)
	}

	return &c, nil
}

// MustDuration parsea un TTL del YAML; si es inválido usa el default.
// Los TTLs ya traen default en Load, así que un parse roto es un typo de config.
func MustDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
