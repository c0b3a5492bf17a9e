// Package scan turns raw scanner or keyboard input into the barcode and tag
// values the ledgers store. Camera and manual entry are treated the same:
// both arrive as an Event and go through Normalize.
package scan

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Event is one scan or manual entry.
type Event struct {
	Barcode string    `json:"barcode" binding:"required" example:"SKU12345"`
	At      time.Time `json:"at,omitempty"`
}

var (
	// ErrEmpty is returned when the input is blank after normalization.
	ErrEmpty = errors.New("scan value is empty")
	// ErrFormat is returned by a strict Policy for malformed values.
	ErrFormat = errors.New("scan value has an invalid format")
)

var (
	// Tags are three digits (001, 042) or four or more alphanumerics.
	tagRE = regexp.MustCompile(`^(?:\d{3}|[A-Z0-9]{4,})$`)
	// Item barcodes are four or more alphanumerics.
	barcodeRE = regexp.MustCompile(`^[A-Z0-9]{4,}$`)
)

// Normalize trims surrounding whitespace and upper-cases the value so a
// hand-typed "sku1" matches a scanned "SKU1".
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	// Casers hold state; build one per call.
	return cases.Upper(language.Und).String(s)
}

// ValidTag reports whether a normalized tag has the store tag format.
func ValidTag(tag string) bool { return tagRE.MatchString(tag) }

// ValidBarcode reports whether a normalized barcode has the item format.
func ValidBarcode(barcode string) bool { return barcodeRE.MatchString(barcode) }

// Policy normalizes and, when Strict, validates scan values.
type Policy struct {
	Strict bool
}

// Tag normalizes a tag scan.
func (p Policy) Tag(raw string) (string, error) {
	s := Normalize(raw)
	if s == "" {
		return "", ErrEmpty
	}
	if p.Strict && !ValidTag(s) {
		return "", ErrFormat
	}
	return s, nil
}

// Barcode normalizes an item scan.
func (p Policy) Barcode(raw string) (string, error) {
	s := Normalize(raw)
	if s == "" {
		return "", ErrEmpty
	}
	if p.Strict && !ValidBarcode(s) {
		return "", ErrFormat
	}
	return s, nil
}
