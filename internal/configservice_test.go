package internal

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/ctxhelper"
	"github.com/derWhity/whispqr/internal/models"
)

func configContext() context.Context {
	return ctxhelper.WithLogger(context.Background(), nullLogger())
}

func TestApplyEnvironment(t *testing.T) {
	conf, err := models.GetDefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	env := map[string]string{
		"WHISPQR_LISTEN_ADDRESS":  ":8080",
		"WHISPQR_STORAGE_DRIVER":  "postgres",
		"WHISPQR_STORAGE_DSN":     " postgres://whispqr@db/whispqr ",
		"WHISPQR_EVENT_TTL_HOURS": "24",
		"WHISPQR_FEED_BROKER":     "redis",
		"WHISPQR_REDIS_DB":        "3",
		"WHISPQR_AUTH_SECRET":     "s3cret",
		"UNRELATED":               "ignored",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	if err := applyEnvironment(conf, lookup); err != nil {
		t.Fatal(err)
	}
	if conf.ListenAddress != ":8080" || conf.Storage.Driver != models.DriverPostgres {
		t.Errorf("unexpected overrides: %+v", conf)
	}
	if conf.Storage.DSN != "postgres://whispqr@db/whispqr" {
		t.Errorf("DSN has not been trimmed: %q", conf.Storage.DSN)
	}
	if conf.EventTTLHours != 24 || conf.Feed.RedisDB != 3 || conf.Feed.Broker != models.BrokerRedis {
		t.Errorf("unexpected numeric overrides: %+v", conf)
	}
	if conf.Auth.HMACSecret != "s3cret" {
		t.Errorf("secret not applied")
	}
	// Untouched values keep their defaults
	if conf.Feed.RedisChannel != "whispqr:feed" || conf.LogLevel != "info" {
		t.Errorf("defaults have been overwritten: %+v", conf)
	}
}

func TestApplyEnvironment_IllegalNumbers(t *testing.T) {
	for _, name := range []string{"WHISPQR_EVENT_TTL_HOURS", "WHISPQR_REDIS_DB"} {
		conf, _ := models.GetDefaultConfig()
		lookup := func(n string) (string, bool) {
			if n == name {
				return "many", true
			}
			return "", false
		}
		if err := applyEnvironment(conf, lookup); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestConfigService_WriteAndLoad(t *testing.T) {
	ctx := configContext()
	file := filepath.Join(t.TempDir(), "config.json")
	cs := NewConfigService(file)
	if err := cs.Load(ctx); err == nil {
		t.Fatal("loading a missing file should fail")
	}
	if err := cs.Write(ctx); err != nil {
		t.Fatal(err)
	}

	loaded := NewConfigService(file)
	if err := loaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if loaded.GetConfig(ctx) != cs.GetConfig(ctx) {
		t.Fatalf("configuration changed on the round trip:\n%+v\n%+v", loaded.GetConfig(ctx), cs.GetConfig(ctx))
	}
}

func TestConfigService_EnvFile(t *testing.T) {
	ctx := configContext()
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("WHISPQR_MONGO_DATABASE=fromfile\nWHISPQR_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// The process environment wins over the file
	t.Setenv("WHISPQR_LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("WHISPQR_MONGO_DATABASE") })

	cs := NewConfigService(filepath.Join(dir, "config.json"))
	if err := cs.ApplyEnvironment(ctx, filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatal(err)
	}
	conf := cs.GetConfig(ctx)
	if conf.Storage.MongoDatabase != "fromfile" {
		t.Errorf("value from the env file not applied: %q", conf.Storage.MongoDatabase)
	}
	if conf.LogLevel != "warn" {
		t.Errorf("process environment should win, got %q", conf.LogLevel)
	}
}
