package catalog_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"resale-bot/api/internal/catalog"
)

func testVocab() catalog.Vocabulary {
	return catalog.Vocabulary{
		Types:      []string{"Shoes", "Clothes", "Bags"},
		Categories: []string{"Men", "Women", "Kids"},
		Colors:     []string{"Red", "Blue", "Black"},
		Brands:     []string{"Nike", "Adidas"},
	}
}

func TestNormalizeDiscardsOutOfVocabularyValues(t *testing.T) {
	raw := `{"title":"Cap","description":"A red cap","type":"Hat","category":"Men","color":"Red","brand":"Nike"}`
	c := catalog.Normalize(raw, testVocab(), false)
	if c.Type != "" {
		t.Fatalf("type = %q, want empty (Hat is not in vocabulary)", c.Type)
	}
	if c.Category != "Men" || c.Color != "Red" || c.Brand != "Nike" {
		t.Fatalf("unexpected controlled fields: %+v", c)
	}
	if c.Title != "Cap" || c.Description != "A red cap" {
		t.Fatalf("free text fields must pass through: %+v", c)
	}
	if !catalog.Combine(false, c) {
		t.Fatal("empty type must force review")
	}
}

func TestNormalizeFullyResolved(t *testing.T) {
	raw := `{"title":"Sneakers","description":"Worn once","type":"Shoes","category":"Men","color":"Blue","brand":"Adidas"}`
	c := catalog.Normalize(raw, testVocab(), false)
	if catalog.Combine(false, c) {
		t.Fatalf("fully resolved classification must not force review: %+v", c)
	}
}

func TestNormalizeMalformedText(t *testing.T) {
	for _, raw := range []string{"not json at all", `["list"]`, "", "```json\n{broken\n```"} {
		c := catalog.Normalize(raw, testVocab(), false)
		if !c.NeedsReview {
			t.Fatalf("Normalize(%q) not flagged for review", raw)
		}
		if c.Title != "" || c.Type != "" || c.Brand != "" {
			t.Fatalf("Normalize(%q) produced fields: %+v", raw, c)
		}
	}
}

func TestNormalizeStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"type\":\"Shoes\",\"category\":\"Men\",\"color\":\"Red\"}\n```"
	c := catalog.Normalize(raw, testVocab(), false)
	if c.Type != "Shoes" {
		t.Fatalf("type = %q, want Shoes", c.Type)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := `{"title":"Bag","description":"","type":"Bags","category":"Unknown","color":"Black","brand":"NoName"}`
	first := catalog.NormalizeFields(mustFields(t, raw), testVocab(), false)
	second := catalog.NormalizeFields(first.Fields(), testVocab(), false)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalizer not a fixed point:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestEmptyTextPolicy(t *testing.T) {
	raw := `{"title":"","description":"","type":"Shoes","category":"Men","color":"Red"}`
	c := catalog.Normalize(raw, testVocab(), false)
	if c.NeedsReview {
		t.Fatal("empty title must not force review by default")
	}
	c = catalog.Normalize(raw, testVocab(), true)
	if !c.NeedsReview {
		t.Fatal("empty title must force review when the policy is on")
	}
}

func TestCombineFormula(t *testing.T) {
	full := catalog.Classification{Type: "Shoes", Category: "Men", Color: "Red"}
	if catalog.Combine(false, full) {
		t.Fatal("no inputs set, no review expected")
	}
	if !catalog.Combine(true, full) {
		t.Fatal("price review must propagate")
	}
	noBrand := full
	noBrand.Brand = ""
	if catalog.Combine(false, noBrand) {
		t.Fatal("brand emptiness must never contribute")
	}
	for _, c := range []catalog.Classification{
		{Category: "Men", Color: "Red"},
		{Type: "Shoes", Color: "Red"},
		{Type: "Shoes", Category: "Men"},
	} {
		if !catalog.Combine(false, c) {
			t.Fatalf("empty mandatory field must force review: %+v", c)
		}
	}
}

func TestRecordRow(t *testing.T) {
	fullC := int64(100000)
	discC := int64(75000)
	rec := catalog.Record{
		ItemID:          "2026-0001",
		MainPhoto:       "https://cdn.example/2026-0001_1.jpg",
		ExtraPhotos:     []string{"https://cdn.example/2026-0001_2.jpg", "https://cdn.example/2026-0001_3.jpg"},
		Title:           "Sneakers",
		Description:     "Worn once",
		Type:            "Shoes",
		Category:        "Men",
		Color:           "Blue",
		Gender:          "M",
		Brand:           "Adidas",
		Currency:        "€",
		FullCents:       &fullC,
		DiscountedCents: &discC,
	}
	row := rec.Row()
	want := []string{
		"2026-0001",
		"https://cdn.example/2026-0001_1.jpg",
		"https://cdn.example/2026-0001_2.jpg,https://cdn.example/2026-0001_3.jpg",
		"Sneakers", "Worn once", "Shoes", "Men", "Blue", "M", "Adidas", "",
		"1000.00", "750.00", "FALSE",
	}
	if !reflect.DeepEqual(row, want) {
		t.Fatalf("row mismatch:\ngot  %v\nwant %v", row, want)
	}
}

func TestRecordRowEmptyPrices(t *testing.T) {
	rec := catalog.Record{ItemID: "2026-0002", MainPhoto: "x", NeedsReview: true}
	row := rec.Row()
	if row[11] != "" || row[12] != "" {
		t.Fatalf("unset prices must render empty, got %q / %q", row[11], row[12])
	}
	if row[13] != "TRUE" {
		t.Fatalf("review flag = %q, want TRUE", row[13])
	}
	if len(row) != 14 {
		t.Fatalf("row has %d columns, want 14", len(row))
	}
}

func mustFields(t *testing.T, raw string) map[string]string {
	t.Helper()
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("fixture %q did not parse: %v", raw, err)
	}
	return m
}
