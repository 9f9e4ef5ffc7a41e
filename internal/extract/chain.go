package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"thedump/internal/config"
	"thedump/internal/gcp"
	"thedump/internal/models"
	"thedump/internal/objectstore"
)

type NamedBackend struct {
	Ref     BackendRef
	Backend Backend
}

// Chain tries its backends in configured order. The first backend that
// supports the file extension and returns text wins; a backend reporting
// no extractable text hands over to the next one.
type Chain struct {
	store    objectstore.Store
	backends []NamedBackend
	closers  []io.Closer
}

func NewChain(ctx context.Context, cfg config.Config, store objectstore.Store) (*Chain, error) {
	c := &Chain{store: store}
	for _, ref := range ParseExtractorList(cfg.Extractors) {
		b, closer, err := buildBackend(ctx, ref, cfg)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
		c.backends = append(c.backends, NamedBackend{Ref: ref, Backend: b})
	}
	return c, nil
}

// NewChainFrom builds a chain from ready backends.
func NewChainFrom(store objectstore.Store, backends ...Backend) *Chain {
	c := &Chain{store: store}
	for _, b := range backends {
		c.backends = append(c.backends, NamedBackend{Ref: BackendRef{Raw: b.Name(), Name: b.Name()}, Backend: b})
	}
	return c
}

func (c *Chain) Refs() []BackendRef {
	out := make([]BackendRef, 0, len(c.backends))
	for _, b := range c.backends {
		out = append(out, b.Ref)
	}
	return out
}

// Extract returns ("", nil) when every supporting backend found no text:
// an empty transcript is a valid extraction result.
func (c *Chain) Extract(ctx context.Context, loc models.Locator) (string, error) {
	ext := loc.Ext()
	candidates := make([]NamedBackend, 0, len(c.backends))
	for _, b := range c.backends {
		if b.Backend.Supports(ext) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		slog.Debug("no extractor handles extension", "ext", ext, "object", loc.ObjectName())
		return "", models.Tag(models.ErrExtraction, models.ErrUnsupportedFormat)
	}

	data, err := objectstore.ReadAll(ctx, c.store, loc)
	if err != nil {
		return "", err
	}
	in := Input{Locator: loc, MIMEType: mimeFor(ext), Data: data}

	for _, b := range candidates {
		text, err := b.Backend.Extract(ctx, in)
		if errors.Is(err, models.ErrNoExtractableText) || (err == nil && strings.TrimSpace(text) == "") {
			slog.Debug("extractor found no text", "extractor", b.Ref.Raw, "object", loc.ObjectName())
			continue
		}
		if err != nil {
			slog.Warn("extractor failed", "extractor", b.Ref.Raw, "object", loc.ObjectName(), "error", err)
			return "", err
		}
		return text, nil
	}
	return "", nil
}

func (c *Chain) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildBackend(ctx context.Context, ref BackendRef, cfg config.Config) (Backend, io.Closer, error) {
	switch ref.Name {
	case "mock":
		return NewMockExtractor(), nil, nil
	case "pdftext":
		return NewPDFTextExtractor(), nil, nil
	case "tesseract":
		langs := cfg.TesseractLanguages
		if ref.Option != "" {
			langs = ref.Option
		}
		return NewTesseractExtractor(langs), nil, nil
	case "vertex":
		modelName := cfg.VertexModel
		if ref.Option != "" {
			modelName = ref.Option
		}
		client, err := gcp.NewVertexClient(ctx, cfg.VertexProject, cfg.VertexRegion, modelName)
		if err != nil {
			return nil, nil, fmt.Errorf("build vertex extractor: %w", err)
		}
		return NewVertexExtractor(client.TranscriberModel, gcp.TranscriberUserPrompt), client, nil
	default:
		return nil, nil, fmt.Errorf("unsupported extractor: %s", ref.Name)
	}
}
