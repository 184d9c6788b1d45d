package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Record is the final persisted row for one intake session. Built once at
// save time and written exactly once.
type Record struct {
	ItemID      string
	MainPhoto   string
	ExtraPhotos []string

	Title       string
	Description string
	Type        string
	Category    string
	Color       string
	Gender      string
	Brand       string
	Supplier    string

	Currency        string
	FullCents       *int64
	DiscountedCents *int64

	NeedsReview bool
}

// Row renders the stable column layout the sheet expects:
// id, main photo, additional photos, title, description, type, category,
// color, gender, brand, supplier, full price, discounted price, review flag.
func (r Record) Row() []string {
	return []string{
		r.ItemID,
		r.MainPhoto,
		strings.Join(r.ExtraPhotos, ","),
		r.Title,
		r.Description,
		r.Type,
		r.Category,
		r.Color,
		r.Gender,
		r.Brand,
		r.Supplier,
		formatCents(r.FullCents),
		formatCents(r.DiscountedCents),
		reviewLiteral(r.NeedsReview),
	}
}

// formatCents renders minor units as a major-unit decimal string, empty
// when the price is unset.
func formatCents(c *int64) string {
	if c == nil {
		return ""
	}
	return decimal.New(*c, -2).StringFixed(2)
}

func reviewLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
