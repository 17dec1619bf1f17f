// Package cli implements the eoprod command line.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eoprod/eoprod/internal/config"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/utils"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// options holds the global flags.
type options struct {
	configFile string
	logLevel   string
	logFormat  string
	metrics    bool
	jsonOutput bool

	// hook lets tests adjust the app after wiring.
	hook func(*app)
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{})
}

func newRootCommand(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "eoprod",
		Short: "Inspect, subset and collocate Sentinel satellite products",
		Long: `eoprod opens Sentinel-3 and Sentinel-2 products through a registry of
format adapters, classifies their variables and derives new products by
geographic subsetting, collocation and radiance to reflectance conversion.

Products may be local directories or s3:// locations; remote products are
staged to a local directory first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "configuration file (YAML)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: DEBUG, INFO, WARN or ERROR")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format: console or json")
	pf.BoolVar(&opts.metrics, "metrics", false, "serve Prometheus metrics while the command runs")
	pf.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newResolveCommand(opts))
	rootCmd.AddCommand(newInfoCommand(opts))
	rootCmd.AddCommand(newSubsetCommand(opts))
	rootCmd.AddCommand(newCollocateCommand(opts))
	rootCmd.AddCommand(newConvertCommand(opts))
	rootCmd.AddCommand(newConfigCommand(opts))

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		var pe *errors.ProductError
		if stderrors.As(err, &pe) {
			if rec := pe.GetRecommendation(); rec != "" {
				fmt.Fprintf(rootCmd.ErrOrStderr(), "Hint: %s\n", rec)
			}
		}
		return err
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "eoprod version: %s\n", Version)
			fmt.Fprintf(out, "Git commit: %s\n", GitCommit)
			fmt.Fprintf(out, "Build date: %s\n", BuildDate)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		},
	}
}

// loadConfig applies defaults, the config file, the environment and the
// global flags, in that order.
func (o *options) loadConfig(cmd *cobra.Command) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if o.configFile != "" {
		if err := cfg.LoadFromFile(o.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Global.LogLevel = strings.ToUpper(o.logLevel)
	}
	if flags.Changed("log-format") {
		cfg.Global.LogFormat = o.logFormat
	}
	if flags.Changed("metrics") {
		cfg.Monitoring.Metrics.Enabled = o.metrics
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run wraps a command body with app setup and teardown.
func (o *options) run(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := o.loadConfig(cmd)
		if err != nil {
			return err
		}
		lc, err := cfg.LoggerConfig()
		if err != nil {
			return err
		}
		lc.OutputPaths = []string{"stderr"}
		logger, err := utils.NewLogger(lc)
		if err != nil {
			return errors.NewError(errors.ErrCodeInvalidConfig, "cannot build logger").WithCause(err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if o.hook != nil {
			o.hook(a)
		}
		defer func() {
			if cerr := a.close(context.Background()); err == nil {
				err = cerr
			}
		}()

		return fn(ctx, a, cmd, args)
	}
}
