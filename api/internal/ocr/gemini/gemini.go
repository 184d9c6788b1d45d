// Package gemini classifies product photos with Google Gemini vision.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/nfnt/resize"
	"google.golang.org/api/option"

	"resale-bot/api/internal/catalog"
	"resale-bot/api/internal/util"
)

// maxEdge caps the longer image side sent to the model.
const maxEdge = 1600

type Engine struct {
	APIKey string
	Model  string

	HTTP *http.Client
	Log  *slog.Logger
}

func New(apiKey, model string, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
		HTTP:   &http.Client{Timeout: 60 * time.Second},
		Log:    log,
	}
}

const systemPrompt = `You are the intake classifier of a resale store.
You receive one product photo and controlled value lists.
Return strictly a flat JSON object with string keys:
title, description, type, category, color, brand.
Rules:
- title: short listing title; description: one or two factual sentences.
- type, category, color, brand MUST be copied verbatim from the allowed
  lists, or be "" when no listed value applies. Never invent values.
- Output only JSON. Any text outside the JSON object is an error.`

// Classify downloads the photo, downsizes it if needed and asks the model
// for a classification constrained to the vocabulary. The raw model text is
// returned as-is; the caller's normalizer judges its shape.
func (e *Engine) Classify(ctx context.Context, imageURL string, vocab catalog.Vocabulary) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	img, err := e.fetch(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	data, mime := prepareImage(img)

	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	parts := []genai.Part{
		genai.Text(vocabPrompt(vocab)),
		&genai.Blob{MIMEType: mime, Data: data},
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			e.Log.Warn("gemini classify attempt failed", "attempt", attempt, "err", err)
			time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
			continue
		}
		txt := firstText(resp)
		if strings.TrimSpace(txt) == "" {
			return "", fmt.Errorf("gemini classify: empty response")
		}
		return txt, nil
	}
	return "", lastErr
}

func vocabPrompt(v catalog.Vocabulary) string {
	var b strings.Builder
	b.WriteString("Classify the product in the photo.\n")
	b.WriteString("Allowed type values: " + strings.Join(v.Types, ", ") + "\n")
	b.WriteString("Allowed category values: " + strings.Join(v.Categories, ", ") + "\n")
	b.WriteString("Allowed color values: " + strings.Join(v.Colors, ", ") + "\n")
	b.WriteString("Allowed brand values: " + strings.Join(v.Brands, ", ") + "\n")
	b.WriteString("Answer with the JSON object only.")
	return b.String()
}

func (e *Engine) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

// prepareImage downsizes oversized photos before upload. Undecodable bytes
// are passed through untouched and left to the model.
func prepareImage(b []byte) ([]byte, string) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return b, util.SniffImageMIME(b)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= maxEdge && bounds.Dy() <= maxEdge {
		return b, util.SniffImageMIME(b)
	}
	var w, h uint
	if bounds.Dx() >= bounds.Dy() {
		w = maxEdge
	} else {
		h = maxEdge
	}
	small := resize.Resize(w, h, img, resize.Lanczos3)
	var out bytes.Buffer
	if err := jpeg.Encode(&out, small, &jpeg.Options{Quality: 90}); err != nil {
		return b, util.SniffImageMIME(b)
	}
	return out.Bytes(), "image/jpeg"
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
