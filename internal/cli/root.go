package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stardate-formula/internal/app"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	appName   = "stardate-formula"
	envPrefix = "STARDATE_FORMULA"
)

type RootConfig struct {
	ConfigFile       string
	LogLevel         string
	CacheDir         string
	StateDir         string
	Keyring          string
	HTTPTimeoutSec   int
	HTTPRetries      int
	HTTPRetryDelayMs int
}

func Execute() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	cmd := &cobra.Command{
		Use:          appName,
		Short:        "Validate, lint and install package formulae",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(viper.GetString("log_level"))
			// app and core code log through log.Ctx
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(log.Logger.WithContext(ctx))
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	flags.StringVar(&cfg.CacheDir, "cache-dir", defaultCacheDir(), "Download cache directory")
	flags.StringVar(&cfg.StateDir, "state-dir", defaultStateDir(), "Directory holding the install history")
	flags.StringVar(&cfg.Keyring, "keyring", "", "Armored OpenPGP keyring for signature checks")
	flags.IntVar(&cfg.HTTPTimeoutSec, "http-timeout", 60, "HTTP timeout in seconds (0 = default)")
	flags.IntVar(&cfg.HTTPRetries, "http-retries", 3, "Download attempts (0 = default)")
	flags.IntVar(&cfg.HTTPRetryDelayMs, "http-retry-delay-ms", 200, "Retry base delay in ms (0 = default)")
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("cache_dir", flags.Lookup("cache-dir"))
	_ = viper.BindPFlag("state_dir", flags.Lookup("state-dir"))
	_ = viper.BindPFlag("keyring", flags.Lookup("keyring"))
	_ = viper.BindPFlag("http_timeout_sec", flags.Lookup("http-timeout"))
	_ = viper.BindPFlag("http_retries", flags.Lookup("http-retries"))
	_ = viper.BindPFlag("http_retry_delay_ms", flags.Lookup("http-retry-delay-ms"))

	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newLintCommand())
	cmd.AddCommand(newFetchCommand())
	cmd.AddCommand(newInstallCommand())
	cmd.AddCommand(newTestCommand())
	cmd.AddCommand(newUninstallCommand())
	cmd.AddCommand(newChecksumCommand())
	cmd.AddCommand(newConvertCommand())
	cmd.AddCommand(newHistoryCommand())
	cmd.AddCommand(newInspectCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetDefault("test_timeout_sec", 60)

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/" + appName)
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	return nil
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: !isatty.IsTerminal(os.Stderr.Fd())})
	zerolog.DefaultContextLogger = &log.Logger
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// newAppService builds the service from the resolved configuration.  The
// download progress bar is only drawn on a terminal.
func newAppService() app.Service {
	var progress io.Writer
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		progress = os.Stderr
	}
	return app.NewService(app.Config{
		HTTPTimeoutSec:           viper.GetInt("http_timeout_sec"),
		HTTPRetries:              viper.GetInt("http_retries"),
		HTTPRetryDelayMs:         viper.GetInt("http_retry_delay_ms"),
		DependencyInstallCommand: viper.GetString("dependency_install_command"),
		Progress:                 progress,
	})
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.TempDir(), appName, "cache")
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", appName)
	}
	return filepath.Join(os.TempDir(), appName, "state")
}

func exitCodeForError(err error) int {
	code := errbuilder.CodeOf(err)
	message := errorMessage(err)
	switch code {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodeFailedPrecondition:
		switch {
		case strings.HasPrefix(message, "dependency resolution failed"):
			return 3
		case strings.HasPrefix(message, "checksum mismatch"),
			strings.HasPrefix(message, "signature verification failed"):
			return 4
		case strings.HasPrefix(message, "smoke test failed"):
			return 6
		case strings.HasPrefix(message, "lint failed"):
			return 7
		}
		return 1
	case errbuilder.CodeNotFound:
		return 5
	case errbuilder.CodeInternal:
		if strings.HasPrefix(message, "fetch failed") {
			return 5
		}
		return 1
	default:
		// cobra reports unknown subcommands as plain errors
		if strings.HasPrefix(message, "unknown command") {
			return 2
		}
		return 1
	}
}

// usageError marks argument and flag parsing failures as invalid
// arguments so they exit like any other bad input.
func usageError(err error) error {
	if err == nil {
		return nil
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(err.Error()).
		WithCause(err)
}

func checkArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageError(validate(cmd, args))
	}
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
