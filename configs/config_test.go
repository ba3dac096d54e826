package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLayersFilesAndEnv(t *testing.T) {
	t.Setenv("STOREFRONT_DATABASE__DSN", "file-from-env.db")
	t.Setenv("STOREFRONT_ORDERS__MAX_PAGE_SIZE", "25")

	cfg, err := Load(".", "dev")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file-from-env.db", cfg.Database.DSN)
	assert.Equal(t, 25, cfg.Orders.MaxPageSize)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, time.Hour, cfg.Security.TTL)
	assert.Equal(t, 5*time.Second, cfg.Cache.InvalidationWindow)
	assert.Equal(t, "storefront.events", cfg.Rabbit.Exchange)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadMissingEnvFileFallsBackToBase(t *testing.T) {
	dir := t.TempDir()
	base := []byte("app:\n  http_addr: \":8080\"\ndatabase:\n  driver: sqlite\nsecurity:\n  jwt_secret: s\norders:\n  max_page_size: 10\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), base, 0o600))

	cfg, err := Load(dir, "nope")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)

	_, err = Load(t.TempDir(), "dev")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.App.HTTPAddr = ":8080"
		c.Database.Driver = "mysql"
		c.Database.DSN = "u:p@tcp(db:3306)/x"
		c.Security.JWTSecret = "s"
		c.Orders.MaxPageSize = 50
		return c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"no addr":        func(c *Config) { c.App.HTTPAddr = "" },
		"bad driver":     func(c *Config) { c.Database.Driver = "postgres" },
		"mysql no dsn":   func(c *Config) { c.Database.DSN = "" },
		"no key":         func(c *Config) { c.Security.JWTSecret = "" },
		"page size":      func(c *Config) { c.Orders.MaxPageSize = 0 },
		"redis no addr":  func(c *Config) { c.Redis.Enabled = true },
		"kafka no topic": func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = []string{"k:9092"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
