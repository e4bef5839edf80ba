package cli

import (
	"github.com/spf13/cobra"

	"github.com/dejo1307/cs2luadoc/internal/server"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [solution]",
		Short: "Run the MCP server on stdio",
		Long: `Serve exposes generation and class queries as MCP tools over stdio. When a
solution is given or configured, its class model is built at startup so
queries work before the first generate_annotations call.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.v.Set("solution", args[0])
			}
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			eng := newEngine(cfg, logger)
			if cfg.Solution != "" {
				units, _, err := eng.Load(cmd.Context(), cfg.Solution)
				if err == nil {
					_, err = eng.Build(cmd.Context(), units)
				}
				if err != nil {
					logger.Warnw("initial load failed, waiting for generate_annotations", "solution", cfg.Solution, "error", err)
				}
			}

			return server.New(eng, cfg, logger, Version).Run(cmd.Context())
		},
	}
	return cmd
}
