// Package ipaddr parses and orders IPv4 addresses. Every address in netscope
// is carried as an Address so that validation and ordering happen in one place.
package ipaddr

import (
	"strconv"
	"strings"

	"github.com/anstrom/netscope/internal/errors"
)

const (
	octetCount    = 4
	maxOctetValue = 255
	maxOctetLen   = 3
)

// Address is an immutable IPv4 address. The zero value is 0.0.0.0.
type Address struct {
	ordinal uint32
}

// ParseOctet parses a single dotted-quad component: one to three ASCII
// digits with a value of at most 255.
func ParseOctet(s string) (uint8, error) {
	if s == "" || len(s) > maxOctetLen {
		return 0, errors.ErrInvalidOctet(s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.ErrInvalidOctet(s)
		}
	}

	v, err := strconv.Atoi(s)
	if err != nil || v > maxOctetValue {
		return 0, errors.ErrInvalidOctet(s)
	}
	return uint8(v), nil
}

// Parse parses a dotted-quad string. It accepts exactly four valid octets.
func Parse(s string) (Address, error) {
	parts := strings.Split(s, ".")
	if len(parts) != octetCount {
		return Address{}, errors.NewValidationError(errors.CodeInvalidAddress,
			"Address must have four octets", "address", s)
	}

	var ordinal uint32
	for _, p := range parts {
		o, err := ParseOctet(p)
		if err != nil {
			return Address{}, err
		}
		ordinal = ordinal<<8 | uint32(o)
	}
	return Address{ordinal: ordinal}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromOrdinal builds an address from its 32-bit form.
func FromOrdinal(v uint32) Address {
	return Address{ordinal: v}
}

// FromOctets builds an address from four octets.
func FromOctets(o0, o1, o2, o3 uint8) Address {
	return Address{ordinal: uint32(o0)<<24 | uint32(o1)<<16 | uint32(o2)<<8 | uint32(o3)}
}

// Ordinal returns the canonical ordering key of the address.
func (a Address) Ordinal() uint32 {
	return a.ordinal
}

// Octets returns the four components, most significant first.
func (a Address) Octets() [4]uint8 {
	return [4]uint8{
		uint8(a.ordinal >> 24),
		uint8(a.ordinal >> 16),
		uint8(a.ordinal >> 8),
		uint8(a.ordinal),
	}
}

// Less reports whether a sorts before b.
func (a Address) Less(b Address) bool {
	return a.ordinal < b.ordinal
}

// String renders the dotted-quad form.
func (a Address) String() string {
	o := a.Octets()
	var b strings.Builder
	b.Grow(15)
	for i, v := range o {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(int(v)))
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
