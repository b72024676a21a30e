package cli

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/tungla20/Solana-MKP/internal/config"
	"github.com/tungla20/Solana-MKP/internal/host"
	"github.com/tungla20/Solana-MKP/internal/keys"
	"github.com/tungla20/Solana-MKP/internal/lock"
	lockredis "github.com/tungla20/Solana-MKP/internal/lock/redis"
	"github.com/tungla20/Solana-MKP/internal/market"
	"github.com/tungla20/Solana-MKP/internal/store"
)

// env is everything a ledger command needs, opened from config and flags.
type env struct {
	cfg    *config.Config
	store  *store.Store
	rt     *host.Runtime
	logger *slog.Logger

	closers []func() error
}

// loadConfig loads the config file and environment, then applies flag
// overrides and validates the result.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.Program != "" {
		cfg.ProgramID = o.Program
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	if verbose {
		lvl = slog.LevelDebug
	} else if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// open loads config, opens the database and builds a runtime for the
// configured program. Without a configured program the one the database
// is bound to is used.
func (o *RootOptions) open(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, o.Verbose)

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	e := &env{cfg: cfg, store: st, logger: logger, closers: []func() error{st.Close}}

	program, err := e.program(ctx)
	if err != nil {
		e.close()
		return nil, err
	}

	var locker lock.Locker
	if cfg.Redis.Enabled {
		client, err := lockredis.New(ctx, lockredis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			e.close()
			return nil, WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		e.closers = append(e.closers, client.Close)
		locker = lockredis.NewLockManager(client, cfg.Redis.KeyPrefix)
		logger.Debug("using redis slot lock", "addr", cfg.Redis.Addr)
	}

	rt, err := host.New(ctx, st, host.Options{
		Program:     program,
		MaxItems:    cfg.Market.MaxItems,
		RentPerByte: cfg.Market.RentPerByte,
		Locker:      locker,
		LockTTL:     cfg.Redis.LockTTL.Duration,
		Logger:      logger,
	})
	if err != nil {
		e.close()
		return nil, WrapExitError(ExitCommandError, "failed to start runtime", err)
	}
	e.rt = rt
	return e, nil
}

func (e *env) program(ctx context.Context) (common.Address, error) {
	if e.cfg.ProgramID != "" {
		return e.cfg.Program()
	}
	bound, err := e.store.Meta(ctx, store.MetaProgramID)
	if errors.Is(err, store.ErrNotFound) {
		return common.Address{}, NewExitError(ExitCommandError,
			"program id required: set --program, program_id or MKP_PROGRAM_ID")
	}
	if err != nil {
		return common.Address{}, WrapExitError(ExitCommandError, "failed to read database", err)
	}
	return common.HexToAddress(bound), nil
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && e.logger != nil {
			e.logger.Warn("close failed", "error", err)
		}
	}
}

// signerFlags selects the key that signs a transaction.
type signerFlags struct {
	Key    string
	KeyHex string
}

func (s *signerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.Key, "key", "k", "", "key name in the keys directory, or path to a key file")
	cmd.Flags().StringVar(&s.KeyHex, "key-hex", "", "raw hex private key (development only)")
}

// keyPath resolves a key name to a file in dir; anything that looks like
// a path is used as-is.
func keyPath(dir, name string) string {
	if name == "" {
		return ""
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.HasSuffix(name, ".json") {
		return name
	}
	return filepath.Join(dir, name+".json")
}

func (s *signerFlags) load(cfg *config.Config) (*ecdsa.PrivateKey, error) {
	key, err := keys.Load(keys.Source{
		Raw:      s.KeyHex,
		Path:     keyPath(cfg.Keys.Dir, s.Key),
		Password: cfg.Keys.Password,
	})
	if errors.Is(err, keys.ErrNoSource) {
		return nil, NewExitError(ExitCommandError, "a signing key is required: use --key or --key-hex")
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load signing key", err)
	}
	return key, nil
}

func parseAddressArg(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, NewExitError(ExitCommandError, fmt.Sprintf("%s: %q is not a hex address", name, value))
	}
	return common.HexToAddress(value), nil
}

func parseAmountArg(name, value string) (*uint256.Int, error) {
	v, err := market.ParseAmount(value)
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: %v", name, err))
	}
	return v, nil
}
