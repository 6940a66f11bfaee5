// Package parser normalizes raw extracted values into canonical record fields.
package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/shopcrawl/shopcrawl/models"
)

var amountRe = regexp.MustCompile(`\d[\d,.]*`)

// ValidateRecord ensures the extractor captured the required fields.
// Records failing validation are dropped, not emitted.
func ValidateRecord(r *models.ProductRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("record missing name")
	}
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("record missing url for %s", r.Name)
	}
	return nil
}

// NormalizePrice converts a decorated price string ("₹1,200", "Rs. 120.50",
// "1200") into a consistent currency-prefixed display value. Input with no
// numeric run normalizes to the empty string, which is distinct from a
// parsed zero price.
func NormalizePrice(raw, symbol string) string {
	match := amountRe.FindString(raw)
	if match == "" {
		return ""
	}
	match = strings.ReplaceAll(match, ",", "")
	value, err := strconv.ParseFloat(strings.TrimSuffix(match, "."), 64)
	if err != nil {
		return ""
	}
	return symbol + formatAmount(value)
}

// FormatMinorUnits renders a price held in minor units (e.g. paise, cents)
// as a currency-prefixed major-unit string.
func FormatMinorUnits(minor int64, symbol string) string {
	return symbol + formatAmount(float64(minor)/100)
}

// PriceAmount extracts the numeric value from a normalized price string.
// The second return reports whether the string carried a numeric amount.
func PriceAmount(display string) (float64, bool) {
	match := amountRe.FindString(display)
	if match == "" {
		return 0, false
	}
	match = strings.ReplaceAll(match, ",", "")
	value, err := strconv.ParseFloat(strings.TrimSuffix(match, "."), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// StripTags reduces an HTML fragment to whitespace-collapsed plain text.
// Malformed input falls back to collapsing the raw string.
func StripTags(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return CleanText(fragment)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return CleanText(b.String())
}

// CleanText trims and collapses internal whitespace.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func formatAmount(value float64) string {
	if value == math.Trunc(value) {
		return groupDigits(strconv.FormatFloat(value, 'f', 0, 64))
	}
	formatted := strconv.FormatFloat(value, 'f', 2, 64)
	dot := strings.IndexByte(formatted, '.')
	return groupDigits(formatted[:dot]) + formatted[dot:]
}

func groupDigits(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
