package catalog

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-cli/internal/docstore"
	"github.com/sells-group/grant-cli/internal/model"
)

// GetAnalysis reads the fit analysis for a program.
func (c *Catalog) GetAnalysis(ctx context.Context, slug string) (*model.Analysis, error) {
	var a model.Analysis
	doc, err := c.readInto(ctx, model.CollectionAnalysis, slug, &a)
	if err != nil {
		return nil, err
	}
	a.Slug, a.Body = doc.Slug, doc.Body
	return &a, nil
}

// PutAnalysis replaces the fit analysis for a program.
func (c *Catalog) PutAnalysis(ctx context.Context, a *model.Analysis) error {
	return c.writeFrom(ctx, model.CollectionAnalysis, "analysis", a.Slug, a, a.Body)
}

// GetStrategy reads the application strategy for a program.
func (c *Catalog) GetStrategy(ctx context.Context, slug string) (*model.Strategy, error) {
	var s model.Strategy
	doc, err := c.readInto(ctx, model.CollectionStrategies, slug, &s)
	if err != nil {
		return nil, err
	}
	s.Slug, s.Body = doc.Slug, doc.Body
	return &s, nil
}

// PutStrategy replaces the application strategy for a program.
func (c *Catalog) PutStrategy(ctx context.Context, s *model.Strategy) error {
	return c.writeFrom(ctx, model.CollectionStrategies, "strategy", s.Slug, s, s.Body)
}

// HasStrategy reports whether a program already has a strategy.
func (c *Catalog) HasStrategy(ctx context.Context, slug string) (bool, error) {
	return c.docs.Exists(ctx, model.CollectionStrategies, slug)
}

// GetApplication reads an application draft.
func (c *Catalog) GetApplication(ctx context.Context, slug string) (*model.Application, error) {
	var a model.Application
	doc, err := c.readInto(ctx, model.CollectionApplications, slug, &a)
	if err != nil {
		return nil, err
	}
	a.Slug, a.Body = doc.Slug, doc.Body
	return &a, nil
}

// PutApplication writes an application draft. The linked program must exist.
func (c *Catalog) PutApplication(ctx context.Context, a *model.Application) error {
	if a.Status == "" {
		a.Status = model.ApplicationDraft
	}
	if a.ProgramSlug != "" {
		ok, err := c.ProgramExists(ctx, a.ProgramSlug)
		if err != nil {
			return err
		}
		if !ok {
			return model.NotFoundf("catalog: application %s references program %s", a.Slug, a.ProgramSlug)
		}
	}
	a.UpdatedAt = c.now()
	return c.writeFrom(ctx, model.CollectionApplications, "application", a.Slug, a, a.Body)
}

func (c *Catalog) readInto(ctx context.Context, collection, slug string, out any) (*docstore.Document, error) {
	doc, err := c.docs.Read(ctx, collection, slug)
	if err != nil {
		return nil, err
	}
	if err := fromMeta(doc.Meta, out); err != nil {
		return nil, eris.Wrapf(err, "catalog: decode %s/%s", collection, slug)
	}
	return doc, nil
}

func (c *Catalog) writeFrom(ctx context.Context, collection, kind, slug string, v any, body string) error {
	if err := c.validate.Struct(v); err != nil {
		return validationError(kind, slug, err)
	}
	meta, err := toMeta(v)
	if err != nil {
		return eris.Wrapf(err, "catalog: encode %s %s", kind, slug)
	}
	return c.docs.Write(ctx, collection, slug, meta, body)
}
