package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anvilresearch/jose-sub000/internal/config"
	"github.com/anvilresearch/jose-sub000/internal/logger"
	"github.com/anvilresearch/jose-sub000/pkg/jwa"
	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/jwk/redisstore"
	"github.com/anvilresearch/jose-sub000/pkg/jws"
	"github.com/anvilresearch/jose-sub000/pkg/provider/software"
	"github.com/anvilresearch/jose-sub000/pkg/provider/vault"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// app is the state shared by every command.
type app struct {
	jsonOutput bool
	noColor    bool
	verbose    bool

	config   *config.Config
	log      *slog.Logger
	registry *jwa.Registry
	codec    *jws.Codec
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "jose",
		Short: "Sign, decode, and verify JOSE tokens",
		Long:  "A CLI for JSON Web Signatures in every serialization (compact, flattened, general JSON, and the JWD document forms), and for generating and fingerprinting JSON Web Keys.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.noColor {
				color.NoColor = true
			}
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output as JSON")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(
		newSignCmd(a),
		newDecodeCmd(a),
		newVerifyCmd(a),
		newKeysCmd(a),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}

	log, err := logger.New(logger.Config{
		Level:  level,
		Format: cfg.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	a.config = cfg
	a.log = log
	a.registry = registry
	a.codec = jws.NewCodec(
		jws.WithRegistry(registry),
		jws.WithLogger(log),
		jws.WithCriticalHeaders(cfg.CriticalHeaders...),
	)

	log.Debug("configured",
		logger.Component("cli"),
		slog.String("provider", cfg.Provider),
	)

	return nil
}

// newRegistry binds the default algorithms to the configured provider.
func newRegistry(cfg *config.Config) (*jwa.Registry, error) {
	if cfg.Provider != config.ProviderVault {
		return jwa.Default, nil
	}

	p, err := vault.New(vault.Config{
		Address: cfg.VaultAddress,
		Token:   cfg.VaultToken,
		Mount:   cfg.VaultMount,
	}, software.New())
	if err != nil {
		return nil, err
	}

	return jwa.NewDefaultRegistry(p)
}

// setCache returns a JWK set cache backed by redis when JOSE_REDIS_ADDR is
// set, and by memory otherwise. The returned func releases the store.
func (a *app) setCache(ctx context.Context) (*jwk.SetCache, func(), error) {
	if a.config.RedisAddress == "" {
		return jwk.NewSetCache(nil, nil, a.config.JWKSRefresh, a.config.JWKSTTL), func() {}, nil
	}

	client, err := redisstore.Connect(ctx, a.config.RedisAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to JWK set store: %w", err)
	}

	store := redisstore.New(client, redisstore.DefaultPrefix)
	cache := jwk.NewSetCache(store, nil, a.config.JWKSRefresh, a.config.JWKSTTL)

	return cache, func() { _ = client.Close() }, nil
}
