package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"thedump/internal/models"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot provide",
	"as a large language model",
}

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// VertexExtractor transcribes PDFs and images with a Gemini model.
type VertexExtractor struct {
	model  generator
	prompt string
}

func NewVertexExtractor(model *genai.GenerativeModel, prompt string) *VertexExtractor {
	return &VertexExtractor{model: model, prompt: prompt}
}

func (v *VertexExtractor) Name() string { return "vertex" }

func (v *VertexExtractor) Supports(ext string) bool {
	return ext == ".pdf" || contains(imageExts, ext)
}

func (v *VertexExtractor) Extract(ctx context.Context, in Input) (string, error) {
	var file genai.Part
	if in.Locator.Scheme == "gs" {
		file = genai.FileData{MIMEType: in.MIMEType, FileURI: in.Locator.String()}
	} else {
		file = genai.Blob{MIMEType: in.MIMEType, Data: in.Data}
	}

	resp, err := v.model.GenerateContent(ctx, file, genai.Text(v.prompt))
	if err != nil {
		wrapped := fmt.Errorf("%w: generate content: %v", models.ErrExtraction, err)
		switch status.Code(err) {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
			return "", models.Transient(wrapped)
		}
		return "", wrapped
	}

	text := responseText(resp)
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			slog.Warn("vertex refused transcription", "object", in.Locator.ObjectName())
			return "", fmt.Errorf("%w: model refused to transcribe %s", models.ErrExtraction, in.Locator.Filename)
		}
	}
	if text == "" {
		return "", models.ErrNoExtractableText
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimPrefix(out, "```text")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}
