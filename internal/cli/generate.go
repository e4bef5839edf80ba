package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dejo1307/cs2luadoc/internal/config"
	"github.com/dejo1307/cs2luadoc/internal/engine"
	"github.com/dejo1307/cs2luadoc/internal/watch"
)

type generateOptions struct {
	watch      bool
	noProgress bool
}

func newGenerateCmd(o *rootOptions) *cobra.Command {
	g := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [solution]",
		Short: "Write EmmyLua annotation files for a solution",
		Long: `Generate loads the types of a .sln, .csproj, source directory or symbol dump
and writes a .meta.lua stub plus one annotation file per namespace. The
output directory is deleted and recreated on every run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.v.Set("solution", args[0])
			}
			return g.run(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringP("output", "o", "", "output directory (default <solution dir>/output)")
	f.StringSlice("exclude-namespace", nil, "namespace prefixes to skip (comma separated)")
	f.StringSlice("include-namespace", nil, "namespace prefixes to keep (comma separated)")
	f.StringSlice("exclude-assembly", nil, "units to skip: exact names, prefix:X or suffix:X")
	f.StringSlice("include-assembly", nil, "units to keep: exact names or globs")
	f.BoolP("public-only", "p", false, "emit public classes only")
	f.String("class-name", "", "emit only the class with this exact name")
	f.Int("classes-per-file", config.DefaultClassesPerFile, "classes per annotation file")
	f.String("provider", "", `symbol provider: "csharp" or "dump" (default auto-detect)`)
	f.BoolVar(&g.watch, "watch", false, "regenerate whenever the sources change")
	f.BoolVar(&g.noProgress, "no-progress", false, "disable the progress bar")

	bind(o, cmd, map[string]string{
		"output.dir":                 "output",
		"filters.exclude_namespaces": "exclude-namespace",
		"filters.include_namespaces": "include-namespace",
		"assemblies.exclude":         "exclude-assembly",
		"assemblies.include":         "include-assembly",
		"filters.public_only":        "public-only",
		"filters.class_name":         "class-name",
		"output.classes_per_file":    "classes-per-file",
		"provider":                   "provider",
	})
	return cmd
}

func bind(o *rootOptions, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		_ = o.v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func (g *generateOptions) run(cmd *cobra.Command, o *rootOptions) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Solution); err != nil {
		return errors.WithHint(errors.Newf("solution path %s does not exist", cfg.Solution),
			"pass a .sln, .csproj, directory or symbol dump")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	stderr := cmd.ErrOrStderr()
	var opts []engine.Option
	if !g.noProgress {
		opts = append(opts, engine.WithProgress(progressFunc(stderr)))
	}
	eng := newEngine(cfg, logger, opts...)
	outDir := eng.OutputDir(cfg.Solution)
	printSettings(stderr, cfg, outDir)

	runOnce := func(ctx context.Context) error {
		res, err := eng.Generate(ctx, cfg.Solution)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	}

	if err := runOnce(cmd.Context()); err != nil {
		return err
	}
	if !g.watch {
		return nil
	}

	color.New(color.FgCyan).Fprintf(stderr, "Watching %s for changes (Ctrl+C to stop)\n", cfg.Solution)
	return watch.Run(cmd.Context(), cfg.Solution, func(ctx context.Context, changed []string) error {
		fmt.Fprintf(stderr, "\n%d file(s) changed, regenerating\n", len(changed))
		return runOnce(ctx)
	}, watch.WithLogger(logger), watch.WithSkipDir(outDir))
}

// progressFunc returns an engine progress callback drawing a bar on w. A new
// bar starts with every run.
func progressFunc(w io.Writer) func(done, total int) {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if done == 1 || bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription("Rendering namespaces"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
			)
		}
		_ = bar.Set(done)
	}
}

func printSettings(w io.Writer, cfg *config.Config, outDir string) {
	label := color.New(color.FgCyan)
	row := func(name, value string) {
		label.Fprintf(w, "  %-20s", name)
		fmt.Fprintln(w, value)
	}
	orAll := func(list []string) string {
		if len(list) == 0 {
			return "(all)"
		}
		return strings.Join(list, ", ")
	}
	orNone := func(list []string) string {
		if len(list) == 0 {
			return "(none)"
		}
		return strings.Join(list, ", ")
	}

	color.New(color.Bold).Fprintln(w, "cs2luadoc settings")
	row("Solution", cfg.Solution)
	row("Output", outDir)
	provider := cfg.Provider
	if provider == "" {
		provider = "(auto)"
	}
	row("Provider", provider)
	row("Include namespaces", orAll(cfg.Filters.IncludeNamespaces))
	row("Exclude namespaces", orNone(cfg.Filters.ExcludeNamespaces))
	row("Include assemblies", orAll(cfg.Assemblies.Include))
	row("Exclude assemblies", orNone(cfg.Assemblies.Exclude))
	row("Public only", fmt.Sprint(cfg.Filters.PublicOnly))
	if cfg.Filters.ClassName != "" {
		row("Class name", cfg.Filters.ClassName)
	}
	row("Classes per file", fmt.Sprint(cfg.Output.ClassesPerFile))
	fmt.Fprintln(w)
}

func printResult(w io.Writer, res *engine.Result) {
	fmt.Fprintf(w, "Units: %d  Classes: %d  Emitted: %d  Files: %d  (%s)\n",
		res.Units, res.Classes, res.Emitted, len(res.Files), res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Output: %s\n", res.OutputDir)
	color.New(color.FgGreen, color.Bold).Fprintln(w, "Build Success")
}
