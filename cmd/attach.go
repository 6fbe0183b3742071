package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/catalog"
	"github.com/sells-group/grant-cli/internal/model"
)

var attachCmd = &cobra.Command{
	Use:   "attach <slug> <file>",
	Short: "Store a local file as a program attachment",
	Long:  "Copies a file (a notice PDF, an application form) into the program's attachments. It is read on the next enrichment or reenrich of the program.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := initCatalog()
		if err != nil {
			return err
		}
		a, err := attachFile(cmd.Context(), cat, args[0], args[1])
		if err != nil {
			return err
		}
		zap.L().Info("attachment stored", zap.String("slug", args[0]), zap.String("path", a.Path))
		return printJSON(os.Stdout, a)
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}

// attachFile saves the file under the program and records it unanalyzed,
// replacing any earlier upload with the same name.
func attachFile(ctx context.Context, cat *catalog.Catalog, slug, path string) (model.Attachment, error) {
	p, err := cat.GetProgram(ctx, slug)
	if err != nil {
		return model.Attachment{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Attachment{}, eris.Wrapf(err, "read %s", path)
	}

	a, err := cat.SaveAttachment(ctx, slug, filepath.Base(path), "", data)
	if err != nil {
		return model.Attachment{}, err
	}
	catalog.AddAttachment(p, a)
	for i := range p.Attachments {
		if p.Attachments[i].Path == a.Path {
			p.Attachments[i].Analyzed = false
		}
	}
	if err := cat.PutProgram(ctx, p); err != nil {
		return model.Attachment{}, err
	}
	return a, nil
}
