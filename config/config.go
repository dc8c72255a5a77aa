package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	SourceGateway = "gateway"
	SourceAMQP    = "amqp"
)

type Config struct {
	Discord  DiscordConfig  `mapstructure:"discord"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
	Source   SourceConfig   `mapstructure:"source"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Server   ServerConfig   `mapstructure:"server"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Log      LogConfig      `mapstructure:"log"`

	// [SOURCE] Kept to watch the config file; never re-read into Config.
	v *viper.Viper
}

type DiscordConfig struct {
	Token             string        `mapstructure:"token"`
	APIURL            string        `mapstructure:"api_url"`
	GatewayURL        string        `mapstructure:"gateway_url"`
	AllowedGuildIDs   []string      `mapstructure:"allowed_guild_ids"`
	AllowedChannelIDs []string      `mapstructure:"allowed_channel_ids"`
	AllowRegistration bool          `mapstructure:"allow_registration"`
	SyncCommands      bool          `mapstructure:"sync_commands"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	StateCacheSize    int           `mapstructure:"state_cache_size"`
}

type RewardsConfig struct {
	APIServerEndpoint    string        `mapstructure:"api_server_endpoint"`
	PrivateKey           string        `mapstructure:"private_key"`
	Namespace            string        `mapstructure:"namespace"`
	DataTypePrefix       string        `mapstructure:"data_type_prefix"`
	ReportAllRoleChanges bool          `mapstructure:"report_all_role_changes"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
}

// SourceConfig selects where gateway dispatches come from: a direct gateway
// session or an AMQP relay.
type SourceConfig struct {
	Kind string `mapstructure:"kind"`
}

type AMQPConfig struct {
	URI        string `mapstructure:"uri"`
	Exchange   string `mapstructure:"exchange"`
	Queue      string `mapstructure:"queue"`
	RoutingKey string `mapstructure:"routing_key"`
	Prefetch   int    `mapstructure:"prefetch"`
}

type ServerConfig struct {
	Hostname string `mapstructure:"hostname"`
	Port     int    `mapstructure:"port"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

type DispatchConfig struct {
	MaxConcurrency int64         `mapstructure:"max_concurrency"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	DrainTimeout   time.Duration `mapstructure:"drain_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps config keys onto the environment names used by existing
// deployments.
var legacyEnv = map[string]string{
	"discord.token":               "DISCORD_TOKEN",
	"discord.allowed_guild_ids":   "DISCORD_ALLOWED_GUILD_IDS",
	"discord.allowed_channel_ids": "DISCORD_ALLOWED_CHANNEL_IDS",
	"discord.allow_registration":  "DISCORD_ALLOW_REGISTRATION",
	"rewards.api_server_endpoint": "SCRIMMAGE_API_SERVER_ENDPOINT",
	"rewards.private_key":         "SCRIMMAGE_PRIVATE_KEY",
	"rewards.namespace":           "SCRIMMAGE_NAMESPACE",
	"rewards.data_type_prefix":    "SCRIMMAGE_DATA_TYPE_PREFIX",
	"server.hostname":             "HOSTNAME",
	"server.port":                 "PORT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("discord.token", "")
	// Empty keeps the REST client on its built-in API root.
	v.SetDefault("discord.api_url", "")
	v.SetDefault("discord.gateway_url", "wss://gateway.discord.gg/?v=10&encoding=json")
	v.SetDefault("discord.allowed_guild_ids", []string{})
	v.SetDefault("discord.allowed_channel_ids", []string{})
	v.SetDefault("discord.allow_registration", false)
	v.SetDefault("discord.sync_commands", true)
	v.SetDefault("discord.request_timeout", 10*time.Second)
	v.SetDefault("discord.state_cache_size", 50_000)

	v.SetDefault("rewards.api_server_endpoint", "")
	v.SetDefault("rewards.private_key", "")
	v.SetDefault("rewards.namespace", "")
	v.SetDefault("rewards.data_type_prefix", "")
	v.SetDefault("rewards.report_all_role_changes", false)
	v.SetDefault("rewards.request_timeout", 10*time.Second)

	v.SetDefault("source.kind", SourceGateway)

	v.SetDefault("amqp.uri", "")
	v.SetDefault("amqp.exchange", "discord.gateway.events")
	v.SetDefault("amqp.queue", "discord-tracker.ingest.v1")
	v.SetDefault("amqp.routing_key", "discord.dispatch.#")
	v.SetDefault("amqp.prefetch", 50)

	v.SetDefault("server.hostname", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.grpc_port", 3001)

	v.SetDefault("dispatch.max_concurrency", 64)
	v.SetDefault("dispatch.write_timeout", 15*time.Second)
	v.SetDefault("dispatch.drain_timeout", 20*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads the optional config file and the environment.
// Environment variables win over the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Discord.AllowedGuildIDs = compact(cfg.Discord.AllowedGuildIDs)
	cfg.Discord.AllowedChannelIDs = compact(cfg.Discord.AllowedChannelIDs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	require(c.Discord.Token, "DISCORD_TOKEN")
	require(c.Rewards.APIServerEndpoint, "SCRIMMAGE_API_SERVER_ENDPOINT")
	require(c.Rewards.PrivateKey, "SCRIMMAGE_PRIVATE_KEY")
	require(c.Rewards.Namespace, "SCRIMMAGE_NAMESPACE")

	switch c.Source.Kind {
	case SourceGateway:
	case SourceAMQP:
		require(c.AMQP.URI, "AMQP_URI")
	default:
		errs = append(errs, fmt.Errorf("source.kind %q must be %q or %q", c.Source.Kind, SourceGateway, SourceAMQP))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// WatchChanges logs edits of the config file. The running configuration is
// immutable, so a change only takes effect after a restart.
func (c *Config) WatchChanges(logger *slog.Logger) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		logger.Warn("CONFIG_CHANGED_RESTART_REQUIRED", "file", e.Name, "op", e.Op.String())
	})
	c.v.WatchConfig()
}

func compact(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
