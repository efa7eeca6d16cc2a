package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. ELAMID_SERVER_ADDR.
const EnvPrefix = "ELAMID"

// Config is the daemon configuration, assembled from defaults, an optional
// YAML file, ELAMID_* environment variables and command-line flags.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Container ContainerConfig `mapstructure:"container" validate:"required"`
	Launcher  LauncherConfig  `mapstructure:"launcher"`
	Log       LogConfig       `mapstructure:"log" validate:"required"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
}

// DockerConfig selects the Docker engine endpoint. An empty Host defers to
// DOCKER_HOST, then to the first Docker socket found on disk.
type DockerConfig struct {
	Host       string `mapstructure:"host"`
	APIVersion string `mapstructure:"api_version"`
}

// ContainerConfig describes the managed container slot.
type ContainerConfig struct {
	Name        string        `mapstructure:"name" validate:"required"`
	Network     string        `mapstructure:"network" validate:"required"`
	StopTimeout time.Duration `mapstructure:"stop_timeout" validate:"gte=0"`
}

// LauncherConfig controls how concurrent /run calls are handled.
type LauncherConfig struct {
	Serialize bool `mapstructure:"serialize"`
}

// LogConfig controls the rotated log file and console output.
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gt=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// SetDefaults registers every key with its default so that environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":80")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("docker.host", "")
	v.SetDefault("docker.api_version", "")

	v.SetDefault("container.name", "myelaai")
	v.SetDefault("container.network", "host")
	v.SetDefault("container.stop_timeout", 10*time.Second)

	v.SetDefault("launcher.serialize", true)

	v.SetDefault("log.dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.compress", true)
}

// BindEnv enables ELAMID_* overrides for all dotted keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
