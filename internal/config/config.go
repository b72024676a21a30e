// Package config defines the mkp configuration file and its validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration. Fields come from a TOML file and are then
// overridden by MKP_* environment variables.
type Config struct {
	Database  string       `toml:"database"`
	ProgramID string       `toml:"program_id"`
	LogLevel  string       `toml:"log_level"`
	Market    MarketConfig `toml:"market"`
	Redis     RedisConfig  `toml:"redis"`
	S3        S3Config     `toml:"s3"`
	Keys      KeysConfig   `toml:"keys"`
}

// MarketConfig bounds the registry and prices its slot.
type MarketConfig struct {
	MaxItems    int    `toml:"max_items"`
	RentPerByte uint64 `toml:"rent_per_byte"`
}

// RedisConfig enables the distributed slot lock.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	TLSEnabled bool     `toml:"tls_enabled"`
	LockTTL    duration `toml:"lock_ttl"`
	KeyPrefix  string   `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters for snapshot push.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// KeysConfig locates encrypted signing keys.
type KeysConfig struct {
	Dir      string `toml:"dir"`
	Password string `toml:"password"`
}

// duration decodes TOML strings such as "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Database: "mkp.db",
		LogLevel: "info",
		Market: MarketConfig{
			MaxItems:    1024,
			RentPerByte: 1,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			LockTTL:   duration{30 * time.Second},
			KeyPrefix: "mkp:",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "mkp-snapshots",
			ForcePathStyle: true,
			Prefix:         "snapshots/",
		},
		Keys: KeysConfig{
			Dir: "keys",
		},
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Database) == "" {
		errs = append(errs, errors.New("database: must not be empty"))
	}
	if c.ProgramID != "" && !common.IsHexAddress(c.ProgramID) {
		errs = append(errs, fmt.Errorf("program_id: %q is not a hex address", c.ProgramID))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	if c.Market.MaxItems <= 0 {
		errs = append(errs, fmt.Errorf("market.max_items: must be positive, got %d", c.Market.MaxItems))
	}
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr: required when redis is enabled"))
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, errors.New("redis.lock_ttl: must be positive"))
		}
	}
	if c.S3.Bucket == "" {
		errs = append(errs, errors.New("s3.bucket: must not be empty"))
	}

	return errors.Join(errs...)
}

// Program parses ProgramID.
func (c *Config) Program() (common.Address, error) {
	if !common.IsHexAddress(c.ProgramID) {
		return common.Address{}, fmt.Errorf("program_id %q is not a hex address", c.ProgramID)
	}
	return common.HexToAddress(c.ProgramID), nil
}
