// Package cli implements the cs2luadoc command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dejo1307/cs2luadoc/internal/config"
	"github.com/dejo1307/cs2luadoc/internal/engine"
	"github.com/dejo1307/cs2luadoc/internal/logging"
	"github.com/dejo1307/cs2luadoc/internal/symbols/csharp"
	"github.com/dejo1307/cs2luadoc/internal/symbols/dump"
)

var (
	// Version information - set via ldflags at build time
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// rootOptions holds the persistent flags and the viper instance every
// subcommand overlays onto the config file.
type rootOptions struct {
	configPath string
	verbosity  int
	jsonLog    bool
	v          *viper.Viper
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "cs2luadoc",
		Short: "Generate EmmyLua annotations from C# type metadata",
		Long: `cs2luadoc reads the types of a C# solution and writes EmmyLua annotation
files so Lua scripts calling into the C# side get completion and type checks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (default is ./cs2luadoc.yaml when present)")
	flags.CountVarP(&o.verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	flags.BoolVar(&o.jsonLog, "json-log", false, "log as JSON")
	_ = o.v.BindPFlag("log.verbosity", flags.Lookup("verbose"))
	_ = o.v.BindPFlag("log.json", flags.Lookup("json-log"))

	root.AddCommand(
		newGenerateCmd(o),
		newServeCmd(o),
		newDumpCmd(o),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		printError(root.ErrOrStderr(), err)
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	color.New(color.FgRed, color.Bold).Fprintf(w, "Error: ")
	fmt.Fprintln(w, err)
	if hint := errors.FlattenHints(err); hint != "" {
		color.New(color.FgYellow).Fprintf(w, "Hint: %s\n", hint)
	}
}

// newLogger builds the logger described by cfg.
func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	logger, err := logging.New(cfg.Log.Verbosity, cfg.Log.JSON)
	if err != nil {
		return nil, errors.Wrap(err, "creating logger")
	}
	return logger, nil
}

// newEngine returns an engine with every provider registered. The C#
// provider comes first so that directories holding both sources and dumps
// are read as sources.
func newEngine(cfg *config.Config, logger *zap.SugaredLogger, opts ...engine.Option) *engine.Engine {
	opts = append([]engine.Option{engine.WithVersion(Version)}, opts...)
	eng := engine.New(cfg, logger, opts...)
	eng.RegisterProvider(csharp.New(csharp.WithLogger(logger), csharp.WithIgnore(cfg.Ignore)))
	eng.RegisterProvider(dump.New(dump.WithLogger(logger)))
	return eng
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of cs2luadoc",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "cs2luadoc %s\n", Version)
			fmt.Fprintf(w, "Git commit: %s\n", GitCommit)
			fmt.Fprintf(w, "Build date: %s\n", BuildDate)
		},
	}
}
