package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiExtractor is the concrete TextExtractor that sends receipt images to
// Gemini for OCR, logo detection and text categorization.
type GeminiExtractor struct {
	model string
}

// NewGeminiExtractor creates an extractor using the given model name.
func NewGeminiExtractor(model string) *GeminiExtractor {
	return &GeminiExtractor{model: model}
}

// extractionPayload is the strict JSON shape the model is asked to return.
type extractionPayload struct {
	RawText       string   `json:"raw_text"`
	Store         string   `json:"store"`
	CategoryPaths []string `json:"category_paths"`
}

const extractionPrompt = "You are an OCR and text-categorization service for photographed purchase receipts.\n\n" +
	"Task:\n" +
	"- Transcribe ALL text visible on the attached receipt image, preserving line breaks.\n" +
	"- If a store logo or prominent store name is clearly identifiable, report the store name; otherwise use null.\n" +
	"- Categorize the receipt text into topical taxonomy paths such as \"/Food & Drink/Restaurants\" or \"/Shopping/Groceries\".\n\n" +
	"Output STRICT JSON only (no comments, no extra text) with these fields:\n" +
	"- \"raw_text\": string (the full transcription, \"\" if unreadable)\n" +
	"- \"store\": string or null\n" +
	"- \"category_paths\": array of strings (may be empty)\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Do NOT use ```json or any Markdown.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

// Extract implements the TextExtractor interface.
func (e *GeminiExtractor) Extract(ctx context.Context, imageBytes []byte) (Extraction, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("Extract: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "image/jpeg",
						Data:     imageBytes,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return Extraction{}, fmt.Errorf("Extract: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return Extraction{}, fmt.Errorf("Extract: empty response from model")
	}

	var payload extractionPayload
	clean := stripModelFences(rawText)
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return Extraction{}, fmt.Errorf("Extract: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	return Extraction{
		RawText:       payload.RawText,
		Store:         payload.Store,
		CategoryPaths: payload.CategoryPaths,
	}, nil
}

// stripModelFences removes Markdown code fences and surrounding junk when
// the model ignores the raw-JSON instruction.
func stripModelFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost JSON object if junk remains around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
