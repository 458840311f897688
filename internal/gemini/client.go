package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/genai"
	"zarta-backend/internal/aspect"
)

// DefaultPrompt is used whenever prompt synthesis is unavailable or fails.
// Synthesis failures never fail the generation request.
const DefaultPrompt = "Professional studio fashion photograph of a model wearing the garment from the first image, styled after the second image. Soft even lighting, neutral backdrop, full-body composition, photorealistic fabric detail."

// MaxPromptLength caps both user-supplied and synthesized prompts.
const MaxPromptLength = 2000

const systemInstruction = `You are a fashion photography prompt writer. You are given two images: a garment photo and a style-reference photo. Reply with a single JSON object and nothing else:
{"prompt": "<one styling instruction for an image generation model, at most 2000 characters>", "aspect_ratio": "<W:H integer ratio, one of 1:1, 2:3, 3:2, 3:4, 4:3, 4:5, 5:4, 9:16, 16:9, 21:9, chosen to match the style-reference composition>"}`

type synthesisResult struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

// Client composes the styling instruction sent to the image provider,
// either passing the user's text through or synthesizing one with Gemini.
type Client struct {
	client     *genai.Client
	model      string
	httpClient *http.Client
}

// NewClient returns a composer. When apiKey is empty the composer is still
// usable and every synthesis falls back to DefaultPrompt.
func NewClient(apiKey, model string) *Client {
	c := &Client{
		model: model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	if apiKey == "" {
		return c
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Printf("Warning: failed to initialize Gemini client, prompt synthesis disabled: %v", err)
		return c
	}
	c.client = client
	return c
}

// Result is a composed styling instruction. Billable is true only when the
// external synthesis call actually succeeded; pass-through prompts and
// fallbacks cost nothing.
type Result struct {
	Prompt      string
	AspectRatio string
	Billable    bool
}

// Compose derives the styling instruction for one generation. A non-empty
// userPrompt is used verbatim (trimmed, clamped) with no external call.
func (c *Client) Compose(ctx context.Context, referenceURL, garmentURL, userPrompt string) Result {
	if trimmed := strings.TrimSpace(userPrompt); trimmed != "" {
		return Result{
			Prompt:      Clamp(trimmed),
			AspectRatio: aspect.DefaultRatio,
		}
	}

	result, err := c.synthesize(ctx, referenceURL, garmentURL)
	if err != nil {
		log.Printf("Warning: prompt synthesis failed, using default prompt: %v", err)
		return Result{Prompt: DefaultPrompt, AspectRatio: aspect.DefaultRatio}
	}
	return result
}

func (c *Client) synthesize(ctx context.Context, referenceURL, garmentURL string) (Result, error) {
	if c.client == nil {
		return Result{}, fmt.Errorf("gemini api key not configured")
	}

	garment, garmentMime, err := c.fetchImage(ctx, garmentURL)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch garment image: %w", err)
	}
	reference, referenceMime, err := c.fetchImage(ctx, referenceURL)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch reference image: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText("First image is the garment, second is the style reference."),
			genai.NewPartFromBytes(garment, garmentMime),
			genai.NewPartFromBytes(reference, referenceMime),
		}, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to generate prompt: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	// Some model versions wrap JSON in a code fence despite the MIME hint.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var parsed synthesisResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
		return Result{}, fmt.Errorf("failed to parse synthesis response: %w", err)
	}
	if strings.TrimSpace(parsed.Prompt) == "" {
		return Result{}, fmt.Errorf("synthesis response has empty prompt")
	}

	return Result{
		Prompt:      Clamp(strings.TrimSpace(parsed.Prompt)),
		AspectRatio: aspect.Normalize(parsed.AspectRatio),
		Billable:    true,
	}, nil
}

func (c *Client) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return data, mime, nil
}

// Clamp truncates a prompt to MaxPromptLength bytes, backing up to the
// nearest rune boundary so a multibyte character is never split.
func Clamp(prompt string) string {
	if len(prompt) <= MaxPromptLength {
		return prompt
	}
	cut := MaxPromptLength
	for cut > 0 && !utf8.RuneStart(prompt[cut]) {
		cut--
	}
	return prompt[:cut]
}
