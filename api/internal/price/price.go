// Package price turns free-form operator input into integer cents.
//
// Accepted shapes: "750", "750/1000", "€1000", "750€/€1000", "-25%".
// Anything else comes back empty with NeedsReview set; Parse never fails.
package price

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Result holds one parsed price message. FullCents and DiscountedCents are
// nil when the corresponding price is unknown. When both are set,
// DiscountedCents <= FullCents (out-of-order pairs are swapped, not
// rejected).
type Result struct {
	Currency        string
	FullCents       *int64
	DiscountedCents *int64
	NeedsReview     bool
}

var (
	amountRe  = regexp.MustCompile(`([€$£])?\s*([0-9]+(?:[.,][0-9]{1,2})?)`)
	percentRe = regexp.MustCompile(`([0-9]+(?:[.,][0-9]+)?)\s*%`)
)

// Parse interprets one price message. priorFullCents is the full price
// already known for the item, needed for the percent form; pass nil when
// none was recorded yet.
//
// Forms are tried in order: percent, pair "A/B" (left = discounted,
// right = full), single amount (stored as discounted). A currency symbol
// is recorded once, left side winning over right.
func Parse(raw string, priorFullCents *int64) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{NeedsReview: true}
	}

	if strings.HasSuffix(raw, "%") || strings.HasPrefix(raw, "-") {
		return parsePercent(raw, priorFullCents)
	}

	if strings.Contains(raw, "/") {
		parts := strings.SplitN(raw, "/", 2)
		curL, left, okL := parseAmount(parts[0])
		curR, right, okR := parseAmount(parts[1])
		if !okL || !okR {
			return Result{NeedsReview: true}
		}
		discounted, full := left, right
		if discounted > full {
			discounted, full = full, discounted
		}
		cur := curL
		if cur == "" {
			cur = curR
		}
		return Result{Currency: cur, FullCents: &full, DiscountedCents: &discounted}
	}

	cur, cents, ok := parseAmount(raw)
	if !ok {
		return Result{NeedsReview: true}
	}
	return Result{Currency: cur, DiscountedCents: &cents}
}

// parsePercent computes the discounted price from a known full price.
// Without a prior full price a percentage means nothing, so the result is
// empty and flagged for review.
func parsePercent(raw string, priorFullCents *int64) Result {
	m := percentRe.FindStringSubmatch(raw)
	if m == nil || priorFullCents == nil {
		return Result{NeedsReview: true}
	}
	percent, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil {
		return Result{NeedsReview: true}
	}
	full := decimal.NewFromInt(*priorFullCents)
	discounted := full.
		Mul(decimal.NewFromInt(100).Sub(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	fullOut := *priorFullCents
	return Result{FullCents: &fullOut, DiscountedCents: &discounted}
}

// parseAmount extracts an optional currency symbol and an amount quantized
// to two decimal places, returned as integer cents. Comma decimal
// separators are normalized to periods.
func parseAmount(s string) (currency string, cents int64, ok bool) {
	m := amountRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", 0, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", "."))
	if err != nil {
		return "", 0, false
	}
	return m[1], d.Round(2).Shift(2).IntPart(), true
}
