// Package catalog holds the controlled vocabularies, the classification
// normalizer and the persisted record layout for intake sessions.
package catalog

import (
	"encoding/json"

	"resale-bot/api/internal/util"
)

// Classification is a vision result reconciled against the vocabularies.
// Type, Category and Color are either empty or exact vocabulary members;
// Title and Description are free text. NeedsReview marks defects the
// normalizer itself detected (unparsable model output, or empty text fields
// when that policy is on) — the final row flag is derived by Combine.
type Classification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Color       string `json:"color"`
	Brand       string `json:"brand"`
	NeedsReview bool   `json:"-"`
}

// Normalize parses raw model text and reconciles it against the
// vocabularies. Structurally invalid text yields an all-empty
// classification flagged for review; it never returns an error.
func Normalize(raw string, v Vocabulary, flagEmptyText bool) Classification {
	var fields map[string]string
	if err := json.Unmarshal([]byte(util.StripCodeFences(raw)), &fields); err != nil {
		return Classification{NeedsReview: true}
	}
	return NormalizeFields(fields, v, flagEmptyText)
}

// NormalizeFields reconciles an already-decoded key/value mapping. Running
// it on its own output is a fixed point.
func NormalizeFields(fields map[string]string, v Vocabulary, flagEmptyText bool) Classification {
	c := Classification{
		Title:       fields["title"],
		Description: fields["description"],
		Type:        keepMember(fields["type"], v.Types),
		Category:    keepMember(fields["category"], v.Categories),
		Color:       keepMember(fields["color"], v.Colors),
		Brand:       keepMember(fields["brand"], v.Brands),
	}
	if flagEmptyText && (c.Title == "" || c.Description == "") {
		c.NeedsReview = true
	}
	return c
}

// Fields is the inverse of NormalizeFields, used to re-feed a
// classification through the normalizer.
func (c Classification) Fields() map[string]string {
	return map[string]string{
		"title":       c.Title,
		"description": c.Description,
		"type":        c.Type,
		"category":    c.Category,
		"color":       c.Color,
		"brand":       c.Brand,
	}
}

// Combine derives the review flag written to the sheet: price trouble or
// any unresolved mandatory field forces review. Brand never contributes.
func Combine(priceNeedsReview bool, c Classification) bool {
	return priceNeedsReview ||
		c.NeedsReview ||
		c.Type == "" ||
		c.Category == "" ||
		c.Color == ""
}

func keepMember(s string, list []string) string {
	if member(list, s) {
		return s
	}
	return ""
}
