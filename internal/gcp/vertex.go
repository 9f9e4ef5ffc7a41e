package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

const TranscriberSystemPrompt = "You are an OCR engine. You transcribe documents and images into plain text exactly as written."

const TranscriberUserPrompt = `Transcribe all readable text in the provided file.

Rules:
1. Output plain text only. No markdown, no commentary, no code fences.
2. Keep the reading order of the original. Separate paragraphs and table rows with newlines.
3. Do not translate, summarize or correct the text.
4. If the file contains no readable text, output nothing.`

// VertexClient holds the generative model used for transcription.
type VertexClient struct {
	TranscriberModel *genai.GenerativeModel
	baseClient       *genai.Client
}

func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}
	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(TranscriberSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "text/plain",
		Temperature:      genai.Ptr[float32](0.0),
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{TranscriberModel: model, baseClient: baseClient}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
