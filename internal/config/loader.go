package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults and applies MKP_*
// environment overrides. An empty path skips the file. A .env file in the
// working directory is loaded first when present. The result is not
// validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Database, "MKP_DATABASE")
	setStr(&cfg.ProgramID, "MKP_PROGRAM_ID")
	setStr(&cfg.LogLevel, "MKP_LOG_LEVEL")

	setInt(&cfg.Market.MaxItems, "MKP_MARKET_MAX_ITEMS")
	setUint64(&cfg.Market.RentPerByte, "MKP_MARKET_RENT_PER_BYTE")

	setBool(&cfg.Redis.Enabled, "MKP_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MKP_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MKP_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MKP_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MKP_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "MKP_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "MKP_REDIS_LOCK_TTL")
	setStr(&cfg.Redis.KeyPrefix, "MKP_REDIS_KEY_PREFIX")

	setStr(&cfg.S3.Endpoint, "MKP_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MKP_S3_REGION")
	setStr(&cfg.S3.Bucket, "MKP_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MKP_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MKP_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MKP_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MKP_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "MKP_S3_PREFIX")

	setStr(&cfg.Keys.Dir, "MKP_KEYS_DIR")
	setStr(&cfg.Keys.Password, "MKP_KEYS_PASSWORD")
}

// Each setter changes dst only when the variable is set and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
