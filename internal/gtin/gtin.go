// Package gtin builds the synthetic 13-digit product identifier that joins
// Swissmedic registration records with FOPH price-list entries.
package gtin

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Prefix is the fixed GS1 prefix for Swissmedic-registered packages.
const Prefix = "7680"

const (
	regNrWidth    = 5
	packCodeWidth = 3
)

// ErrInvalidInput marks a registration number or pack code that cannot be
// turned into an identifier. The caller decides whether to skip the record
// or abort; the builder never fabricates an identifier.
var ErrInvalidInput = eris.New("gtin: invalid identifier input")

// Build constructs the 13-character identifier from a registration number and
// a pack code: Prefix + 5-digit registration number + 3-digit pack code +
// EAN-13 check digit. Inputs are trimmed; an empty pack code means pack "000".
func Build(regNr, packCode string) (string, error) {
	reg, err := normalize(regNr, regNrWidth)
	if err != nil {
		return "", eris.Wrapf(err, "registration number %q", regNr)
	}
	if reg == "" {
		return "", eris.Wrapf(ErrInvalidInput, "empty registration number")
	}

	pack, err := normalize(packCode, packCodeWidth)
	if err != nil {
		return "", eris.Wrapf(err, "pack code %q", packCode)
	}
	if pack == "" {
		pack = strings.Repeat("0", packCodeWidth)
	}

	body := Prefix + reg + pack
	return body + string(Checksum(body)), nil
}

// Checksum computes the EAN-13 check digit over a 12-digit body: digits at
// odd positions (1-indexed) weigh 1, digits at even positions weigh 3.
// Returns 'X' if the body is not 12 digits.
func Checksum(body12 string) byte {
	if len(body12) != 12 {
		return 'X'
	}
	sum := 0
	for i := 0; i < len(body12); i++ {
		d := body12[i]
		if d < '0' || d > '9' {
			return 'X'
		}
		n := int(d - '0')
		if i%2 == 1 {
			n *= 3
		}
		sum += n
	}
	return byte('0' + (10-sum%10)%10)
}

// normalize trims the raw value and zero-pads it to width. Non-digit
// characters or an over-width value fail with ErrInvalidInput.
func normalize(raw string, width int) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", eris.Wrapf(ErrInvalidInput, "non-numeric character %q", s[i])
		}
	}
	if len(s) > width {
		return "", eris.Wrapf(ErrInvalidInput, "value wider than %d digits", width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}
