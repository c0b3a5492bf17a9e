// Package utils holds small helpers shared by the HTTP layer, the services
// and the CLI: page bounds and report periods.
package utils

import (
	"strconv"
	"strings"
)

// Page bounds shared by every list endpoint.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number to >= 1 and size to [1, MaxPageSize]; a size of 0
// or less means DefaultPageSize.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// ParsePage reads page and page_size query values. Blank or malformed
// values fall back to the defaults.
func ParsePage(number, size string) Page {
	return NewPage(atoi(number, 1), atoi(size, DefaultPageSize))
}

// Offset is the number of rows before the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// Pages is the number of pages needed for total rows.
func (p Page) Pages(total int64) int {
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
