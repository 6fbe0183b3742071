package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	showAnalysis bool
	showStrategy bool
	showRender   bool
)

var showCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Print a program record, or its analysis or strategy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cat, err := initCatalog()
		if err != nil {
			return err
		}

		slug := args[0]
		var (
			doc  any
			body string
		)
		switch {
		case showAnalysis:
			a, err := cat.GetAnalysis(ctx, slug)
			if err != nil {
				return err
			}
			doc, body = a, a.Body
		case showStrategy:
			s, err := cat.GetStrategy(ctx, slug)
			if err != nil {
				return err
			}
			doc, body = s, s.Body
		default:
			p, err := cat.GetProgram(ctx, slug)
			if err != nil {
				return err
			}
			doc, body = p, p.Body
		}

		if showRender {
			return renderMarkdown(os.Stdout, body, 100)
		}
		return printJSON(os.Stdout, doc)
	},
}

// renderMarkdown writes a document body formatted for the terminal.
func renderMarkdown(w io.Writer, body string, width int) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("notty"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return eris.Wrap(err, "show: init renderer")
	}
	out, err := r.Render(body)
	if err != nil {
		return eris.Wrap(err, "show: render markdown")
	}
	_, err = fmt.Fprint(w, out)
	return err
}

func init() {
	showCmd.Flags().BoolVar(&showAnalysis, "analysis", false, "print the fit analysis instead of the program")
	showCmd.Flags().BoolVar(&showStrategy, "strategy", false, "print the application strategy instead of the program")
	showCmd.Flags().BoolVar(&showRender, "render", false, "render the markdown body for the terminal instead of printing JSON")
	showCmd.MarkFlagsMutuallyExclusive("analysis", "strategy")
	rootCmd.AddCommand(showCmd)
}
