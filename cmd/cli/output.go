package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/netscope/internal/history"
	"github.com/anstrom/netscope/internal/hosts"
)

const timestampLayout = "2006-01-02 15:04:05"

// displayHostsTable renders the host table.
func displayHostsTable(w io.Writer, records []hosts.Record) {
	table := tablewriter.NewWriter(w)
	table.Header("IP Address", "Hostname", "MAC", "OS", "Device", "Open Ports", "Status")

	for i := range records {
		rec := &records[i]
		_ = table.Append([]string{
			rec.IPAddress.String(),
			orDash(rec.Hostname),
			orDash(rec.MACAddress),
			orDash(rec.OS),
			orDash(string(rec.DeviceType)),
			formatPorts(rec.OpenPorts),
			rec.Liveness.String(),
		})
	}

	_ = table.Render()
}

// displayHistoryTable renders history entries, newest first.
func displayHistoryTable(w io.Writer, entries []history.Entry) {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Range", "Addresses", "Scanned At")

	for i, e := range entries {
		_ = table.Append([]string{
			strconv.Itoa(i + 1),
			e.Range.String(),
			strconv.FormatUint(e.Range.Size(), 10),
			e.Timestamp.Local().Format(timestampLayout),
		})
	}

	_ = table.Render()
}

func formatPorts(ports []int) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
