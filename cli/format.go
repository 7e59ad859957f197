package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yllada/vpn-settings/common"
	"github.com/yllada/vpn-settings/properties"
	"github.com/yllada/vpn-settings/ui"
	"github.com/yllada/vpn-settings/vpn"
	"gopkg.in/yaml.v3"
)

var (
	headerStyle  = ui.HeaderStyle
	errorStyle   = ui.ErrorStyle
	successStyle = ui.SuccessStyle
	mutedStyle   = ui.MutedStyle
	stateStyle   = ui.StateStyle
	cellStyle    = lipgloss.NewStyle()
)

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// renderTable writes header and rows as left-aligned styled columns.
func renderTable(w io.Writer, header []string, rows [][]string, styles func(row, col int) lipgloss.Style) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	line := func(cells []string, style func(col int) lipgloss.Style) {
		var b strings.Builder
		for i, cell := range cells {
			b.WriteString(cellStyle.Width(widths[i] + 2).Render(style(i).Render(cell)))
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}

	line(header, func(int) lipgloss.Style { return headerStyle })
	for r, row := range rows {
		line(row, func(c int) lipgloss.Style { return styles(r, c) })
	}
}

func renderConnections(w io.Writer, records []vpn.Record) {
	header := []string{"NAME", "TYPE", "STATE", "HOST", "AUTO-CONNECT", "CREDENTIALS", "PATH"}
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{
			rec.Name,
			rec.Type.String(),
			rec.State.String(),
			rec.Host,
			yesNo(rec.AutomaticUpDown),
			yesNo(rec.StoreCredentials),
			rec.Path,
		}
	}
	renderTable(w, header, rows, func(row, col int) lipgloss.Style {
		switch col {
		case 2:
			return stateStyle(records[row].State)
		case 6:
			return mutedStyle
		}
		return lipgloss.NewStyle()
	})
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// textKeys are always strings, whatever their value looks like.
var textKeys = map[string]bool{
	properties.KeyName:   true,
	properties.KeyHost:   true,
	properties.KeyDomain: true,
}

// parseAssignments turns key=value arguments into presentation properties.
// Dotted keys are provider properties. Outside textKeys, true/false and
// integers keep their type so that flags such as immutable stay booleans.
func parseAssignments(args []string) (properties.Map, error) {
	out := properties.Map{}
	provider := properties.Map{}

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, want key=value", arg)
		}
		switch {
		case strings.Contains(key, "."):
			provider[key] = properties.String(value)
		case key == properties.KeyType:
			typ, ok := common.ParseConnectionType(value)
			if !ok {
				return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedType, value)
			}
			out[key] = properties.Number(int64(typ))
		case textKeys[key]:
			out[key] = properties.String(value)
		default:
			out[key] = parseScalar(value)
		}
	}

	if len(provider) > 0 {
		out[properties.KeyProviderProperties] = properties.MapValue(provider)
	}
	return out, nil
}

func parseScalar(s string) properties.Value {
	switch s {
	case "true":
		return properties.Bool(true)
	case "false":
		return properties.Bool(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return properties.Number(n)
	}
	return properties.String(s)
}

// merge copies src over dst, merging provider properties key by key.
func merge(dst, src properties.Map) {
	for k, v := range src {
		if k == properties.KeyProviderProperties {
			incoming, ok := v.AsMap()
			existing, _ := dst[k].AsMap()
			if ok && existing != nil {
				merged := existing.Clone()
				for pk, pv := range incoming {
					merged[pk] = pv
				}
				dst[k] = properties.MapValue(merged)
				continue
			}
		}
		dst[k] = v
	}
}
