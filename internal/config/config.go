package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SerialConfig selects the serial port for one device. An empty Port means
// discover the device by USB VID/PID.
type SerialConfig struct {
	Port     string `mapstructure:"port"`
	BaudRate int    `mapstructure:"baudRate"`
	VID      string `mapstructure:"vid"`
	PID      string `mapstructure:"pid"`
}

// SupplyConfig configures the precision current source.
type SupplyConfig struct {
	Serial          SerialConfig  `mapstructure:"serial"`
	Mode            string        `mapstructure:"mode"`
	ResponseTimeout time.Duration `mapstructure:"responseTimeout"`
	CommandDelay    time.Duration `mapstructure:"commandDelay"`
}

// MonitorConfig configures the shunt monitor.
type MonitorConfig struct {
	Serial        SerialConfig  `mapstructure:"serial"`
	ConfigTimeout time.Duration `mapstructure:"configTimeout"`
	StreamWindow  time.Duration `mapstructure:"streamWindow"`
	ConfigSettle  time.Duration `mapstructure:"configSettle"`
}

// LumberjackConfig configures the rolling log file.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures log level and output.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// Config is the top-level configuration shared by the command-line tools.
type Config struct {
	Supply  SupplyConfig  `mapstructure:"supply"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Load reads configuration from a YAML/TOML/JSON file and HDR_-prefixed
// environment variables. If path is empty, HDR_CONFIG is consulted, then
// hdrbench.yaml in the working directory or ./configs. A missing default
// file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("HDR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("hdrbench")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("supply.serial.port", "")
	v.SetDefault("supply.serial.baudRate", 115200)
	v.SetDefault("supply.serial.vid", "0483")
	v.SetDefault("supply.serial.pid", "0064")
	v.SetDefault("supply.mode", "")
	v.SetDefault("supply.responseTimeout", "500ms")
	v.SetDefault("supply.commandDelay", "0s")

	v.SetDefault("monitor.serial.port", "")
	v.SetDefault("monitor.serial.baudRate", 115200)
	v.SetDefault("monitor.serial.vid", "0483")
	v.SetDefault("monitor.serial.pid", "5740")
	v.SetDefault("monitor.configTimeout", "150ms")
	v.SetDefault("monitor.streamWindow", "100ms")
	v.SetDefault("monitor.configSettle", "100ms")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 28)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")
}
