// Package pack maps free-text package descriptors to integer pack sizes and
// rounds order quantities up to pack multiples.
package pack

import (
	"strings"
	"unicode"
)

// Resolver maps package descriptors to pack sizes. The fallback sizes are
// explicit policy, not silent defaults, so they live in configuration.
type Resolver struct {
	// PalletSize is the authoritative pack size for "pallet" descriptors.
	PalletSize int
	// DefaultSize is used for missing or unrecognized descriptors.
	DefaultSize int
}

// NewResolver returns a Resolver with the standard policy: pallets ship 100
// units, anything unrecognized ships as a single unit.
func NewResolver() *Resolver {
	return &Resolver{PalletSize: 100, DefaultSize: 1}
}

// Resolve maps a package descriptor to a positive pack size. Matching is
// case-insensitive, first match wins, and resolution never fails: an empty
// or unrecognized descriptor resolves to the default size.
func (r *Resolver) Resolve(descriptor string) int {
	p := strings.ToLower(descriptor)

	if i := strings.Index(p, "box of"); i >= 0 {
		if n := leadingDigits(p[i+len("box of"):]); n > 0 {
			return n
		}
		return r.defaultSize()
	}
	if strings.Contains(p, "single") {
		return 1
	}
	if strings.Contains(p, "pallet") {
		if r.PalletSize > 0 {
			return r.PalletSize
		}
		return r.defaultSize()
	}
	return r.defaultSize()
}

func (r *Resolver) defaultSize() int {
	if r.DefaultSize > 0 {
		return r.DefaultSize
	}
	return 1
}

// leadingDigits parses the first run of digits in s, skipping leading
// non-digit characters.
func leadingDigits(s string) int {
	var n int
	var seen bool
	for _, c := range s {
		if unicode.IsDigit(c) {
			n = n*10 + int(c-'0')
			seen = true
			continue
		}
		if seen {
			break
		}
	}
	if !seen {
		return 0
	}
	return n
}

// RoundUpToPack rounds qty up to the next multiple of pack. A pack size of
// one or less is a no-op.
func RoundUpToPack(qty, pack int) int {
	if pack <= 1 {
		return qty
	}
	if rem := qty % pack; rem != 0 {
		return qty + pack - rem
	}
	return qty
}
