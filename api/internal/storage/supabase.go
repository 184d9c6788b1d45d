// Package storage uploads photos to a Supabase Storage bucket over its
// REST interface and hands back public URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Supabase struct {
	BaseURL string
	APIKey  string
	Bucket  string

	HTTP *http.Client
}

func NewSupabase(baseURL, apiKey, bucket string) *Supabase {
	return &Supabase{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		Bucket:  strings.TrimSpace(bucket),
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload stores the photo as {itemID}_{index}.jpg and returns its public
// URL. Object names are stable per item and index, so a retried upload
// overwrites nothing it shouldn't.
func (s *Supabase) Upload(ctx context.Context, itemID string, data []byte, index int) (string, error) {
	name := fmt.Sprintf("%s_%d.jpg", itemID, index)
	u := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.BaseURL, s.Bucket, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("supabase upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("supabase upload: status %d: %s", resp.StatusCode, string(b))
	}
	return s.PublicURL(name), nil
}

// PublicURL returns the unauthenticated download URL for an object in the
// bucket.
func (s *Supabase) PublicURL(name string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.BaseURL, s.Bucket, name)
}
