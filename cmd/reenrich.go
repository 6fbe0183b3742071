package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/pipeline"
)

var (
	reenrichRecrawl bool
	reenrichAll     bool
	reenrichBelow   int
	reenrichLimit   int
)

var reenrichCmd = &cobra.Command{
	Use:   "reenrich [slug]",
	Short: "Re-run structured extraction for one program or every low-quality one",
	Args: func(cmd *cobra.Command, args []string) error {
		if reenrichAll {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "reenrich")
		if err != nil {
			return err
		}
		defer env.Close()

		if reenrichAll {
			below := reenrichBelow
			if !cmd.Flags().Changed("below") {
				below = cfg.Pipeline.BulkQualityBelow
			}
			res, err := env.Orchestrator.ReenrichBulk(ctx, pipeline.BulkOptions{QualityBelow: below, Limit: reenrichLimit})
			if err != nil {
				return eris.Wrap(err, "bulk reenrich")
			}
			zap.L().Info("bulk reenrich complete",
				zap.Int("processed", res.Processed),
				zap.Int("improved", res.Improved),
				zap.Int("errors", res.Errors),
				zap.Float64("cost_usd", res.Usage.Cost),
			)
			return printJSON(os.Stdout, res)
		}

		res, err := env.Orchestrator.Reenrich(ctx, args[0], pipeline.ReenrichOptions{Recrawl: reenrichRecrawl})
		if err != nil {
			return err
		}
		if res.CrawlError != "" {
			zap.L().Warn("recrawl failed, used stored text", zap.String("slug", res.Slug), zap.String("error", res.CrawlError))
		}
		return printJSON(os.Stdout, res)
	},
}

func init() {
	reenrichCmd.Flags().BoolVar(&reenrichRecrawl, "recrawl", false, "fetch the detail page again before extraction")
	reenrichCmd.Flags().BoolVar(&reenrichAll, "all", false, "process every enriched program below the quality threshold")
	reenrichCmd.Flags().IntVar(&reenrichBelow, "below", pipeline.DefaultBulkQualityBelow, "quality threshold for --all")
	reenrichCmd.Flags().IntVar(&reenrichLimit, "limit", 0, "max programs for --all (0 = no limit)")
	reenrichCmd.MarkFlagsMutuallyExclusive("all", "recrawl")
	rootCmd.AddCommand(reenrichCmd)
}
