package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/matter-labs/matterdb/pkg/db/pebble"
	"github.com/matter-labs/matterdb/pkg/log"
	"github.com/matter-labs/matterdb/pkg/storage"
)

const (
	keyDBPath    = "db-path"
	keyLogLevel  = "log-level"
	keyLogFormat = "log-format"
	keyCacheSize = "cache-size"
	keyNamespace = "namespace"
)

// config binds flags, MATTER_* environment variables and .env files.
type config struct {
	v *viper.Viper
}

func newConfig() *config {
	// env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.SetEnvPrefix("matter")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &config{v: v}
}

func (c *config) bind(cmd *cobra.Command) error {
	return c.v.BindPFlags(cmd.Flags())
}

func (c *config) initLogging(cmd *cobra.Command) error {
	level, err := log.ParseLogLevel(c.v.GetString(keyLogLevel))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", keyLogLevel, err)
	}
	format, err := log.ParseLoggerType(c.v.GetString(keyLogFormat))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", keyLogFormat, err)
	}
	log.Init(log.Options{LogLevel: level, Type: format, Output: cmd.ErrOrStderr()})
	return nil
}

// openDatabase opens the configured store read-only.
func (c *config) openDatabase() (*storage.Database, func(), error) {
	path := c.v.GetString(keyDBPath)
	if path == "" {
		return nil, nil, fmt.Errorf("no database path: set --%s or MATTER_DB_PATH", keyDBPath)
	}
	kv, err := pebble.NewKVStore(
		pebble.WithPath(path),
		pebble.WithReadOnly(),
		pebble.WithCacheSize(c.v.GetInt64(keyCacheSize)),
	)
	if err != nil {
		return nil, nil, err
	}
	d, err := storage.Open(kv, storage.WithLogger(log.Storage))
	if err != nil {
		_ = kv.Close()
		return nil, nil, err
	}
	log.CLI.Debug().Str("path", path).Msg("database opened")
	return d, func() { _ = kv.Close() }, nil
}
