package main

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mindcare/mindcare/internal/config"
	"github.com/mindcare/mindcare/internal/platform/db"
	"github.com/mindcare/mindcare/internal/platform/middleware"
	"github.com/mindcare/mindcare/internal/platform/notification"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "status"},
		{"participant", "register"},
		{"participant", "deactivate"},
		{"participant", "activate"},
		{"worker"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil {
			t.Errorf("%v: %v", path, err)
			continue
		}
		if cmd.Name() != path[len(path)-1] {
			t.Errorf("%v: resolved to %q", path, cmd.Name())
		}
	}
}

func TestParticipantRegister_RequiresFlags(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"participant", "register", "--account", "a1"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected missing required flags to fail")
	}
}

func TestMigrationSource_EmbeddedByDefault(t *testing.T) {
	entries, err := fs.ReadDir(migrationSource(""), ".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			found = true
		}
	}
	if !found {
		t.Error("expected embedded .sql migrations")
	}
}

func TestMigrationSource_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "900_local.sql"), []byte("SELECT 1;"), 0o600); err != nil {
		t.Fatal(err)
	}
	src := migrationSource(dir)
	if _, err := fs.Stat(src, "900_local.sql"); err != nil {
		t.Errorf("expected override directory to be used: %v", err)
	}
	if _, err := fs.Stat(src, "001_scheduling.sql"); err == nil {
		t.Error("did not expect embedded migrations in override source")
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "scheduling", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "later", Applied: false},
	})
	out := buf.String()
	if !strings.Contains(out, "2026-10-01 12:30:00") {
		t.Errorf("expected applied timestamp in output:\n%s", out)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("expected pending row in output:\n%s", out)
	}
}

func TestBuildDispatcher_InProcessWithoutRedis(t *testing.T) {
	cfg := &config.Config{NotifyWorkers: 1, NotifyQueueSize: 4, NotifyTimeout: time.Second}
	d, closeFn, err := buildDispatcher(cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if _, ok := d.(*notification.InProcessDispatcher); !ok {
		t.Errorf("expected in-process dispatcher, got %T", d)
	}
}

func TestBuildDispatcher_QueueWithRedis(t *testing.T) {
	cfg := &config.Config{RedisURL: "redis://localhost:6379/0"}
	d, closeFn, err := buildDispatcher(cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if _, ok := d.(*notification.QueueDispatcher); !ok {
		t.Errorf("expected queue dispatcher, got %T", d)
	}
}

func TestBuildDispatcher_BadRedisURL(t *testing.T) {
	cfg := &config.Config{RedisURL: "mysql://nope"}
	if _, _, err := buildDispatcher(cfg, nil, zerolog.Nop()); err == nil {
		t.Error("expected error for unsupported redis scheme")
	}
}

func TestRateLimitConfig_Defaults(t *testing.T) {
	rl := rateLimitConfig(&config.Config{})
	def := middleware.DefaultRateLimitConfig()
	if rl.RequestsPerSecond != def.RequestsPerSecond || rl.BurstSize != def.BurstSize {
		t.Errorf("expected defaults, got %+v", rl)
	}

	rl = rateLimitConfig(&config.Config{RateLimitRPS: 5, RateLimitBurst: 10})
	if rl.RequestsPerSecond != 5 || rl.BurstSize != 10 {
		t.Errorf("expected overrides, got %+v", rl)
	}
}

func TestJWTConfig_SigningKey(t *testing.T) {
	jc := jwtConfig(&config.Config{AuthIssuer: "https://id.example", AuthSigningKey: "secret"})
	if jc.Issuer != "https://id.example" || string(jc.SigningKey) != "secret" {
		t.Errorf("unexpected config: %+v", jc)
	}
	if jc := jwtConfig(&config.Config{}); jc.SigningKey != nil {
		t.Error("expected no signing key when unset")
	}
}

func TestNewLogger_ConsoleInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("development", &buf)
	logger.Info().Msg("hello")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected console output in development, got %q", buf.String())
	}

	buf.Reset()
	logger = newLogger("production", &buf)
	logger.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"service":"mindcare-server"`) {
		t.Errorf("expected JSON with service field, got %q", buf.String())
	}
}
