// Package iprange turns partially typed start/end address text into a
// validated, ordered IPv4 range. Normalize is the only way callers outside
// this package obtain a Range from user input.
package iprange

import (
	"encoding/json"
	"math/bits"
	"strconv"
	"strings"

	"github.com/anstrom/netscope/internal/errors"
	"github.com/anstrom/netscope/internal/ipaddr"
)

const (
	fragmentCount  = 4
	prefixFragment = 3
	broadcastOctet = "255"
	zeroOctet      = "0"

	// Side names reported in validation errors.
	SideStart = "start"
	SideEnd   = "end"
	SideRange = "range"
)

// Range is an inclusive IPv4 range with Start <= End.
type Range struct {
	Start ipaddr.Address
	End   ipaddr.Address
}

// New validates the ordering of two already parsed addresses.
func New(start, end ipaddr.Address) (Range, error) {
	if start.Ordinal() > end.Ordinal() {
		return Range{}, errors.ErrInvertedRange(start.String(), end.String())
	}
	return Range{Start: start, End: end}, nil
}

// Normalize fills missing octets and validates both sides.
//
// Empty start fragments become 0. Empty end fragments become 0 except the
// last, which becomes 255. A wholly blank end takes the start's /24 through
// AutoSuggest before filling.
func Normalize(startRaw, endRaw string) (Range, error) {
	if strings.TrimSpace(endRaw) == "" {
		endRaw = AutoSuggest(startRaw, endRaw)
	}

	start, err := fill(SideStart, startRaw)
	if err != nil {
		return Range{}, err
	}
	end, err := fill(SideEnd, endRaw)
	if err != nil {
		return Range{}, err
	}
	return New(start, end)
}

// AutoSuggest returns the end address text to display after the user edits
// the start address. The end is rewritten to mirror the start's first three
// octets once they are all valid and the end's prefix is missing or differs.
// A user-entered last octet other than 255 is kept.
func AutoSuggest(startRaw, endRaw string) string {
	start := fragments(startRaw)
	end := fragments(endRaw)
	if start == nil {
		return endRaw
	}
	for i := 0; i < prefixFragment; i++ {
		if _, err := ipaddr.ParseOctet(start[i]); err != nil {
			return endRaw
		}
	}

	if end == nil {
		end = make([]string, fragmentCount)
	}
	applies := false
	for i := 0; i < prefixFragment; i++ {
		// start[i] is a valid octet here, so an empty end fragment differs too.
		if end[i] != start[i] {
			applies = true
		}
	}
	if !applies {
		return endRaw
	}

	suggested := make([]string, fragmentCount)
	copy(suggested, start[:prefixFragment])
	if end[3] == "" || end[3] == broadcastOctet {
		suggested[3] = broadcastOctet
	} else {
		suggested[3] = end[3]
	}
	return strings.Join(suggested, ".")
}

// fragments splits raw text into exactly four trimmed fragments, or nil when
// there are more than four.
func fragments(raw string) []string {
	parts := strings.Split(raw, ".")
	if len(parts) > fragmentCount {
		return nil
	}
	out := make([]string, fragmentCount)
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func fill(side, raw string) (ipaddr.Address, error) {
	parts := fragments(raw)
	if parts == nil {
		return ipaddr.Address{}, errors.ErrInvalidAddress(side, raw,
			errors.NewValidationError(errors.CodeInvalidAddress, "Too many octets", side, raw))
	}

	for i, p := range parts {
		if p != "" {
			continue
		}
		if side == SideEnd && i == fragmentCount-1 {
			parts[i] = broadcastOctet
		} else {
			parts[i] = zeroOctet
		}
	}

	filled := strings.Join(parts, ".")
	addr, err := ipaddr.Parse(filled)
	if err != nil {
		return ipaddr.Address{}, errors.ErrInvalidAddress(side, filled, err)
	}
	return addr, nil
}

// String renders the range as "start - end".
func (r Range) String() string {
	return r.Start.String() + " - " + r.End.String()
}

// Size returns the number of addresses in the range.
func (r Range) Size() uint64 {
	return uint64(r.End.Ordinal()) - uint64(r.Start.Ordinal()) + 1
}

// Contains reports whether a lies within the range.
func (r Range) Contains(a ipaddr.Address) bool {
	return a.Ordinal() >= r.Start.Ordinal() && a.Ordinal() <= r.End.Ordinal()
}

// Each calls fn for every address in ascending order until fn returns false.
func (r Range) Each(fn func(ipaddr.Address) bool) {
	for v := uint64(r.Start.Ordinal()); v <= uint64(r.End.Ordinal()); v++ {
		if !fn(ipaddr.FromOrdinal(uint32(v))) {
			return
		}
	}
}

// CIDRs returns the smallest list of CIDR blocks covering the range, in
// ascending order.
func (r Range) CIDRs() []string {
	var out []string
	cur := uint64(r.Start.Ordinal())
	end := uint64(r.End.Ordinal())
	for cur <= end {
		size := uint64(1) << 32
		if cur != 0 {
			size = uint64(1) << bits.TrailingZeros64(cur)
		}
		for cur+size-1 > end {
			size >>= 1
		}
		prefix := 32 - bits.TrailingZeros64(size)
		out = append(out, ipaddr.FromOrdinal(uint32(cur)).String()+"/"+strconv.Itoa(prefix))
		cur += size
	}
	return out
}

type rangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON renders the range as {"start": ..., "end": ...}.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(rangeJSON{Start: r.Start.String(), End: r.End.String()})
}

// UnmarshalJSON accepts full addresses only and revalidates ordering.
func (r *Range) UnmarshalJSON(data []byte) error {
	var raw rangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := ipaddr.Parse(raw.Start)
	if err != nil {
		return errors.ErrInvalidAddress(SideStart, raw.Start, err)
	}
	end, err := ipaddr.Parse(raw.End)
	if err != nil {
		return errors.ErrInvalidAddress(SideEnd, raw.End, err)
	}
	parsed, err := New(start, end)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
