package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/matt-hendrie/explain-that-code/config"
	apierrors "github.com/matt-hendrie/explain-that-code/errors"
	"github.com/matt-hendrie/explain-that-code/server"
	"github.com/matt-hendrie/explain-that-code/server/processing"
)

const (
	defaultConfigFile = "config.yaml"
	defaultEnvFile    = ".env"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "explainthat",
		Short:         "Serve LLM generated code snippets and grade explanations of them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(opts.envFile, cmd.Flags().Changed("env-file"))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", defaultConfigFile, "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", defaultEnvFile, "dotenv file loaded before configuration")

	cmd.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newPromptCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. The default file is optional.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the configuration file. A missing file is only
// tolerated when the user left --config at its default.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	if cmd.Flags().Changed("config") {
		return config.LoadFile(opts.configFile)
	}
	return config.LoadOptional(opts.configFile)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	var zc zap.Config
	if cfg.Format == "text" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	apierrors.SetLogger(logger)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("server initialization failed", zap.Error(err))
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown requested", zap.NamedError("cause", context.Cause(ctx)))
		return nil
	})

	logger.Info("starting explainthat",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
	)
	return g.Wait()
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if _, err := processing.NewBuilder(cfg.Processing.Templates); err != nil {
				return fmt.Errorf("templates: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}

func newPromptCmd(opts *rootOptions) *cobra.Command {
	var vars []string

	cmd := &cobra.Command{
		Use:   "prompt <template>",
		Short: "Render a prompt template without calling the LLM",
		Example: `  explainthat prompt generate --var language=go
  explainthat prompt grade --var code_snippet="fmt.Println(1)" --var user_explanation="prints 1"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseVars(vars)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			builder, err := processing.NewBuilder(cfg.Processing.Templates)
			if err != nil {
				return err
			}

			out, err := builder.Render(args[0], values)
			if err != nil {
				if errors.Is(err, processing.ErrUnknownTemplate) {
					return fmt.Errorf("%w (known: %s)", err, strings.Join(builder.Names(), ", "))
				}
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&vars, "var", nil, "template variable as key=value (repeatable)")
	return cmd
}

func parseVars(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: want key=value", pair)
		}
		values[key] = value
	}
	return values, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "explainthat %s\n", Version)
		},
	}
}
