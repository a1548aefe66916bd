package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/weightlog/internal/backup"
	"github.com/mesh-intelligence/weightlog/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	envPrefix = "WEIGHTLOG"

	cfgKeyDataDir  = "data_dir"
	cfgKeyUnit     = "unit"
	cfgKeyLogLevel = "log_level"

	defaultUnit     = types.UnitKg
	defaultLogLevel = "warn"
)

// defaultConfigYAML is the content written to config.yaml by init.
const defaultConfigYAML = `# weightlog configuration

# Display and input unit: kg or lb
unit: kg

# debug, info, warn, or error
log_level: warn

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# S3-compatible backup target (optional)
# backup:
#   bucket:
#   region: us-east-1
#   endpoint:
#   prefix: weightlog
#   path_style: false
`

// settings is the decoded configuration.
type settings struct {
	DataDir  string        `mapstructure:"data_dir"`
	Unit     string        `mapstructure:"unit"`
	LogLevel string        `mapstructure:"log_level"`
	Backup   backup.Config `mapstructure:"backup"`
}

// loadConfig reads config.yaml from configDir using Viper. Values may be
// overridden by WEIGHTLOG_* environment variables. A missing config.yaml is
// not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyUnit, defaultUnit)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	// Keys must be known for AutomaticEnv to reach them through Unmarshal.
	v.SetDefault(cfgKeyDataDir, "")
	for _, k := range []string{"bucket", "region", "endpoint", "prefix", "access_key_id", "secret_access_key"} {
		v.SetDefault("backup."+k, "")
	}
	v.SetDefault("backup.path_style", false)

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config %s: %w", filepath.Join(configDir, configFileExt), err)
	}
	return v, nil
}

// decodeSettings unmarshals v and validates the journal-facing values.
func decodeSettings(v *viper.Viper) (settings, error) {
	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("decode config: %w", err)
	}
	s.Unit = strings.ToLower(strings.TrimSpace(s.Unit))
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	if s.Unit != types.UnitKg && s.Unit != types.UnitLb {
		return settings{}, fmt.Errorf("config unit %q: %w", s.Unit, types.ErrInvalidUnit)
	}
	if _, err := zapcore.ParseLevel(s.LogLevel); err != nil {
		return settings{}, fmt.Errorf("config log_level %q: %w", s.LogLevel, types.ErrLogLevelUnknown)
	}
	return s, nil
}

// newLogger builds a console logger writing to stderr at level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, types.ErrLogLevelUnknown)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
