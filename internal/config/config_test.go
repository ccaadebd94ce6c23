package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func TestDefaults(t *testing.T) {
	cfg := fromViper(newTestViper())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Catalog.MaxCategoriesPerProduct)
	assert.Equal(t, "products", cfg.Bus.ProductsChannel)
	assert.Equal(t, time.Hour, cfg.Cache.ProductsTTL)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CATALOG_MAX_CATEGORIES_PER_PRODUCT", "3")
	t.Setenv("CACHE_PRODUCTS_TTL", "90s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DB_DRIVER", "Memory")
	t.Setenv("REDIS_ENABLED", "false")

	cfg := fromViper(newTestViper())

	assert.Equal(t, 3, cfg.Catalog.MaxCategoriesPerProduct)
	assert.Equal(t, 90*time.Second, cfg.Cache.ProductsTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled)
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Database: "catalog", Schema: "public"}
	assert.Equal(t, "postgres://u:p@db:5432/catalog?sslmode=disable&search_path=public", db.DSN())

	db.URL = "postgres://override"
	assert.Equal(t, "postgres://override", db.DSN())
}
