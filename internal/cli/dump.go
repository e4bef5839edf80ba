package cli

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dejo1307/cs2luadoc/internal/symbols/csharp"
)

func newDumpCmd(o *rootOptions) *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "dump [solution]",
		Short: "Write the declarations read from C# sources as a symbol dump",
		Long: `Dump parses a .sln, .csproj or source directory and prints the declared
types in the symbol dump format. The dump can be edited and fed back to
generate with --provider dump.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.v.Set("solution", args[0])
			}
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			p := csharp.New(csharp.WithLogger(logger), csharp.WithIgnore(cfg.Ignore))
			f, err := p.Declarations(cmd.Context(), cfg.Solution)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(f)
			if err != nil {
				return errors.Wrap(err, "encoding symbol dump")
			}

			if outFile == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", outFile)
			}
			logger.Infow("wrote symbol dump", "file", outFile, "units", len(f.Units))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "file to write (default stdout)")
	return cmd
}
