package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/progress"
)

var runForce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline over every configured listing source",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Orchestrator.Run(ctx, model.RunOptions{Force: runForce, Trigger: "cli"}, progress.NewLog(nil))
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}
		return printJSON(os.Stdout, summary)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "reprocess every stage: re-screen rejected programs, re-crawl pages bypassing the cache, re-enrich, rescore and rewrite analyses and strategies")
	rootCmd.AddCommand(runCmd)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
