package probe

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
)

// MACLookup finds the hardware address of an address on the local segment.
type MACLookup interface {
	LookupMAC(ctx context.Context, ip string) (string, error)
}

const incompleteMAC = "00:00:00:00:00:00"

// ARPTable reads the kernel neighbour table in /proc/net/arp format.
type ARPTable struct {
	Path string
}

// LookupMAC implements MACLookup. Unknown or incomplete entries yield "".
func (t ARPTable) LookupMAC(_ context.Context, ip string) (string, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	table, err := parseARPTable(f)
	if err != nil {
		return "", err
	}
	return table[ip], nil
}

// parseARPTable maps IP to upper-case MAC. The header line is skipped.
func parseARPTable(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		// IP address, HW type, Flags, HW address, Mask, Device
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		mac := strings.ToUpper(fields[3])
		if mac == incompleteMAC {
			continue
		}
		out[fields[0]] = mac
	}
	return out, sc.Err()
}
