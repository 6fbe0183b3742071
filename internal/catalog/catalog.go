// Package catalog maps the typed document kinds onto the raw document store.
// Every write is validated before it reaches disk.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/grant-cli/internal/docstore"
	"github.com/sells-group/grant-cli/internal/model"
)

// Catalog is the typed repository over a docstore.Store.
type Catalog struct {
	docs     *docstore.Store
	validate *validator.Validate
	now      func() time.Time
}

// New wraps a document store.
func New(docs *docstore.Store) *Catalog {
	return &Catalog{
		docs:     docs,
		validate: newValidator(documentRules()...),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Store returns the underlying document store.
func (c *Catalog) Store() *docstore.Store { return c.docs }

// GetProgram reads a program. Programs written before max_funding existed are
// migrated on read; see BackfillFunding.
func (c *Catalog) GetProgram(ctx context.Context, slug string) (*model.Program, error) {
	doc, err := c.docs.Read(ctx, model.CollectionPrograms, slug)
	if err != nil {
		return nil, err
	}
	p, err := programFromDoc(doc)
	if err != nil {
		return nil, err
	}
	if BackfillFunding(p) {
		if err := c.PutProgram(ctx, p); err != nil {
			zap.L().Warn("catalog: max_funding write-back failed",
				zap.String("slug", slug),
				zap.Error(err),
			)
		} else {
			zap.L().Debug("catalog: migrated max_funding",
				zap.String("slug", slug),
				zap.Int64("max_funding", p.MaxFunding),
			)
		}
	}
	return p, nil
}

// ListPrograms returns every program sorted by slug. Documents that do not
// decode are skipped with a warning.
func (c *Catalog) ListPrograms(ctx context.Context) ([]*model.Program, error) {
	docs, err := c.docs.List(ctx, model.CollectionPrograms)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Program, 0, len(docs))
	for _, doc := range docs {
		p, err := programFromDoc(doc)
		if err != nil {
			zap.L().Warn("catalog: skipping undecodable program",
				zap.String("slug", doc.Slug),
				zap.Error(err),
			)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// PutProgram validates and writes a program.
func (c *Catalog) PutProgram(ctx context.Context, p *model.Program) error {
	if err := c.validate.Struct(p); err != nil {
		return validationError("program", p.Slug, err)
	}
	meta, err := toMeta(p)
	if err != nil {
		return eris.Wrapf(err, "catalog: encode program %s", p.Slug)
	}
	return c.docs.Write(ctx, model.CollectionPrograms, p.Slug, meta, p.Body)
}

// ProgramExists reports whether a program document is present.
func (c *Catalog) ProgramExists(ctx context.Context, slug string) (bool, error) {
	return c.docs.Exists(ctx, model.CollectionPrograms, slug)
}

// DeleteProgram physically removes a program together with its satellites
// and attachments.
func (c *Catalog) DeleteProgram(ctx context.Context, slug string) error {
	if err := c.docs.Delete(ctx, model.CollectionPrograms, slug); err != nil {
		return err
	}
	for _, coll := range []string{model.CollectionAnalysis, model.CollectionStrategies} {
		if err := c.docs.Delete(ctx, coll, slug); err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}
	}
	return c.removeAttachments(slug)
}

func programFromDoc(doc *docstore.Document) (*model.Program, error) {
	var p model.Program
	if err := fromMeta(doc.Meta, &p); err != nil {
		return nil, eris.Wrapf(err, "catalog: decode program %s", doc.Slug)
	}
	p.Slug = doc.Slug
	p.Body = doc.Body
	return &p, nil
}

// toMeta converts a typed document into a front-matter map through its YAML tags.
func toMeta(v any) (map[string]any, error) {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{}
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// fromMeta decodes a front-matter map into a typed document.
func fromMeta(meta map[string]any, out any) error {
	raw, err := yaml.Marshal(meta)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}
