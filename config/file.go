package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// fileConfig is the TOML layout of the optional config file. Each field
// maps onto the environment variable of the same setting.
type fileConfig struct {
	Database struct {
		URL string `toml:"url"`
	} `toml:"database"`

	HTTP struct {
		Addr                string `toml:"addr"`
		ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
	} `toml:"http"`

	Signal struct {
		ShortWindow int `toml:"short_window"`
		LongWindow  int `toml:"long_window"`
	} `toml:"signal"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`

	Redis struct {
		Addr             string `toml:"addr"`
		Password         string `toml:"password"`
		DB               int    `toml:"db"`
		Prefix           string `toml:"prefix"`
		SignalStream     string `toml:"signal_stream"`
		SignalChannel    string `toml:"signal_channel"`
		LatestTTLSeconds int    `toml:"latest_ttl_seconds"`
	} `toml:"redis"`

	Binance struct {
		APIKey    string `toml:"api_key"`
		APISecret string `toml:"api_secret"`
		Testnet   *bool  `toml:"testnet"`
	} `toml:"binance"`
}

// loadFile decodes the TOML file at path into environment-keyed values.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func loadFile(path string) (map[string]string, error) {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return fc.values(), nil
}

func (fc *fileConfig) values() map[string]string {
	out := make(map[string]string)
	str := func(key, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[key] = v
		}
	}
	num := func(key string, v int) {
		if v != 0 {
			out[key] = strconv.Itoa(v)
		}
	}

	str("DATABASE_URL", fc.Database.URL)
	str("HTTP_ADDR", fc.HTTP.Addr)
	num("READ_TIMEOUT_SECONDS", fc.HTTP.ReadTimeoutSeconds)
	num("WRITE_TIMEOUT_SECONDS", fc.HTTP.WriteTimeoutSeconds)
	num("SHORT_WINDOW", fc.Signal.ShortWindow)
	num("LONG_WINDOW", fc.Signal.LongWindow)
	str("LOG_LEVEL", fc.Log.Level)
	str("LOG_FORMAT", fc.Log.Format)
	str("REDIS_ADDR", fc.Redis.Addr)
	str("REDIS_PASSWORD", fc.Redis.Password)
	num("REDIS_DB", fc.Redis.DB)
	str("REDIS_PREFIX", fc.Redis.Prefix)
	str("REDIS_SIGNAL_STREAM", fc.Redis.SignalStream)
	str("REDIS_SIGNAL_CHANNEL", fc.Redis.SignalChannel)
	num("REDIS_LATEST_TTL_SECONDS", fc.Redis.LatestTTLSeconds)
	str("BINANCE_API_KEY", fc.Binance.APIKey)
	str("BINANCE_API_SECRET", fc.Binance.APISecret)
	if fc.Binance.Testnet != nil {
		out["IS_TESTNET"] = strconv.FormatBool(*fc.Binance.Testnet)
	}
	return out
}
