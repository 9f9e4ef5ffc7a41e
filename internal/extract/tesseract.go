package extract

import (
	"context"
	"fmt"
	"strings"

	"thedump/internal/models"

	"github.com/otiai10/gosseract/v2"
)

// TesseractExtractor runs local OCR on image files.
type TesseractExtractor struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseractExtractor takes languages in tesseract's "eng+deu" form.
func NewTesseractExtractor(languages string) *TesseractExtractor {
	var langs []string
	for _, l := range strings.Split(languages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return &TesseractExtractor{languages: langs, clientFactory: gosseract.NewClient}
}

func (e *TesseractExtractor) Name() string { return "tesseract" }

func (e *TesseractExtractor) Supports(ext string) bool { return contains(imageExts, ext) }

func (e *TesseractExtractor) Extract(ctx context.Context, in Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Data); err != nil {
		return "", fmt.Errorf("%w: set image: %v", models.ErrExtraction, err)
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return "", fmt.Errorf("%w: set languages: %v", models.ErrExtraction, err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("%w: recognize text: %v", models.ErrExtraction, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", models.ErrNoExtractableText
	}
	return text, nil
}
