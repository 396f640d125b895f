package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		StoreDriver: StoreJSONFile,
		Session: SessionConfig{
			JWTSecret: "secret",
			TTL:       time.Hour,
			Store:     "buntdb",
		},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"no secret", func(c *Config) { c.Session.JWTSecret = " " }, false},
		{"zero ttl", func(c *Config) { c.Session.TTL = 0 }, false},
		{"unknown store", func(c *Config) { c.Session.Store = "memcached" }, false},
		{"redis without addr", func(c *Config) { c.Session.Store = "redis" }, false},
		{"redis with addr", func(c *Config) { c.Session.Store = "redis"; c.Redis.Addr = "localhost:6379" }, true},
		{"cache without redis", func(c *Config) { c.History.CacheTTL = time.Minute }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); (err == nil) != tc.ok {
				t.Errorf("got %v", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("STORE_DRIVER", "JSONFILE")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SESSION_TTL", "2h")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoreDriver != StoreJSONFile || cfg.Session.JWTSecret != "s3cret" || cfg.Session.TTL != 2*time.Hour {
		t.Errorf("got %+v", cfg)
	}
	if cfg.MQ.Driver != "none" || cfg.MQ.LedgerChannel != "ledger.transactions" {
		t.Errorf("got mq %+v", cfg.MQ)
	}

	t.Setenv("STORE_DRIVER", "sqlite")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected an error for an unknown store driver")
	}
}
