package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadConfig("")
	req.NoError(err)

	req.Equal("chat-delivery-service", cfg.Service.Name)
	req.Equal("memory", cfg.EventLog.Driver)
	req.Equal(int64(10000), cfg.EventLog.MaxLen)
	req.Equal(100*time.Millisecond, cfg.Hub.SendTimeout)
	req.False(cfg.Chat.BroadcastOnSend)
	req.True(cfg.Chat.SubscribeRequiresMembership)
	req.False(cfg.UsesPostgres())
	req.Equal(slog.LevelInfo, cfg.LogLevel.Level())
	req.NotEmpty(cfg.Service.ID)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	req := require.New(t)

	// Given environment overrides using the CHAT_ prefix
	t.Setenv("CHAT_EVENTLOG_DRIVER", "redis")
	t.Setenv("CHAT_HUB_SEND_TIMEOUT", "250ms")
	t.Setenv("CHAT_LOG_LEVEL", "debug")
	t.Setenv("CHAT_CHAT_BROADCAST_ON_SEND", "true")

	// When the config is loaded
	cfg, err := LoadConfig("")
	req.NoError(err)

	// Then the overrides win over defaults
	req.Equal("redis", cfg.EventLog.Driver)
	req.Equal(250*time.Millisecond, cfg.Hub.SendTimeout)
	req.Equal(slog.LevelDebug, cfg.LogLevel.Level())
	req.True(cfg.Chat.BroadcastOnSend)
}

func TestLoadConfig_File(t *testing.T) {
	req := require.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte(`
http:
  addr: ":18080"
membership:
  driver: memory
  seed:
    - group_id: g1
      user_id: u1
      username: alice
      role: OWNER
`), 0o600))

	cfg, err := LoadConfig(path)
	req.NoError(err)
	req.Equal(":18080", cfg.HTTP.Addr)
	req.Len(cfg.Membership.Seed, 1)
	req.Equal("alice", cfg.Membership.Seed[0].Username)
}

func TestLoadConfig_Invalid(t *testing.T) {
	req := require.New(t)

	t.Setenv("CHAT_EVENTLOG_DRIVER", "kafka")
	_, err := LoadConfig("")
	req.Error(err)
}

func TestValidate_PostgresMembershipNeedsDatabase(t *testing.T) {
	req := require.New(t)

	t.Setenv("CHAT_MEMBERSHIP_DRIVER", "postgres")
	_, err := LoadConfig("")
	req.ErrorContains(err, "database.url")
}

func TestParseLevel(t *testing.T) {
	req := require.New(t)

	req.Equal(slog.LevelWarn, ParseLevel("WARN"))
	req.Equal(slog.LevelInfo, ParseLevel("bogus"))
}
