package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"thedump/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFTextExtractor reads the embedded text layer of a PDF. Scanned PDFs
// have none, so it reports models.ErrNoExtractableText and the chain moves
// on to an OCR backend.
type PDFTextExtractor struct{}

func NewPDFTextExtractor() *PDFTextExtractor { return &PDFTextExtractor{} }

func (p *PDFTextExtractor) Name() string { return "pdftext" }

func (p *PDFTextExtractor) Supports(ext string) bool { return ext == ".pdf" }

func (p *PDFTextExtractor) Extract(ctx context.Context, in Input) (string, error) {
	_ = ctx
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(in.Data), conf); err != nil {
		slog.Debug("pdf failed validation", "object", in.Locator.ObjectName(), "error", err)
		return "", models.Tag(models.ErrExtraction, models.ErrUnsupportedFormat)
	}

	r, err := pdf.NewReader(bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", models.ErrExtraction, err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: extract pdf text: %v", models.ErrExtraction, err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("%w: read extracted text: %v", models.ErrExtraction, err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", models.ErrNoExtractableText
	}
	return text, nil
}
