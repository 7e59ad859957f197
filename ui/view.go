package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/yllada/vpn-settings/vpn"
)

// Source is the part of vpn.Model the view uses.
type Source interface {
	Connections() []vpn.Record
	BestState() vpn.ConnectionState
	Populated() bool
	Subscribe(fn func(vpn.Event)) (cancel func())
	Activate(path string) error
	Deactivate(path string) error
	SetAutomatic(path string, enabled bool) error
}

// refreshMsg asks the view to re-read the source.
type refreshMsg struct{}

type view struct {
	source    Source
	table     table.Model
	records   []vpn.Record
	best      vpn.ConnectionState
	populated bool
	status    string
	err       error
}

var columns = []table.Column{
	{Title: "Name", Width: 24},
	{Title: "Type", Width: 12},
	{Title: "State", Width: 14},
	{Title: "Host", Width: 28},
	{Title: "Auto", Width: 5},
	{Title: "Creds", Width: 5},
}

func newView(source Source) *view {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(colorAccent).Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#ffffff")).Background(colorAccent)

	v := &view{
		source: source,
		table: table.New(
			table.WithColumns(columns),
			table.WithFocused(true),
			table.WithHeight(10),
			table.WithStyles(styles),
		),
	}
	v.refresh()
	return v
}

// Run shows the live connection list until the user quits or ctx ends.
func Run(ctx context.Context, source Source) error {
	p := tea.NewProgram(newView(source), tea.WithContext(ctx), tea.WithAltScreen())

	notify := make(chan struct{}, 1)
	cancel := source.Subscribe(func(vpn.Event) {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer cancel()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-notify:
				p.Send(refreshMsg{})
			case <-stop:
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return err
	}
	return nil
}

func (v *view) Init() tea.Cmd { return nil }

func (v *view) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		v.refresh()
		return v, nil

	case tea.WindowSizeMsg:
		v.table.SetHeight(max(msg.Height-6, 3))
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return v, tea.Quit
		case "enter", " ":
			v.toggleActive()
			return v, nil
		case "a":
			v.toggleAutomatic()
			return v, nil
		case "r":
			v.refresh()
			return v, nil
		}
	}

	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return v, cmd
}

func (v *view) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("VPN connections"))
	b.WriteString("  ")
	if v.populated {
		b.WriteString(StateStyle(v.best).Render(v.best.String()))
	} else {
		b.WriteString(MutedStyle.Render("waiting for connman..."))
	}
	b.WriteString("\n\n")

	if len(v.records) == 0 {
		b.WriteString(MutedStyle.Render("  No VPN connections configured."))
		b.WriteString("\n")
	} else {
		b.WriteString(v.table.View())
		b.WriteString("\n")
	}

	switch {
	case v.err != nil:
		b.WriteString(ErrorStyle.Render(" " + v.err.Error()))
	case v.status != "":
		b.WriteString(SuccessStyle.Render(" " + v.status))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter connect/disconnect • a auto-connect • r refresh • q quit"))
	return b.String()
}

func (v *view) refresh() {
	v.records = v.source.Connections()
	v.best = v.source.BestState()
	v.populated = v.source.Populated()

	rows := make([]table.Row, len(v.records))
	for i, rec := range v.records {
		rows[i] = table.Row{
			rec.Name,
			rec.Type.String(),
			rec.State.String(),
			rec.Host,
			check(rec.AutomaticUpDown),
			check(rec.StoreCredentials),
		}
	}
	v.table.SetRows(rows)
	if c := v.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		v.table.SetCursor(len(rows) - 1)
	}
}

func (v *view) selected() (vpn.Record, bool) {
	i := v.table.Cursor()
	if i < 0 || i >= len(v.records) {
		return vpn.Record{}, false
	}
	return v.records[i], true
}

func (v *view) toggleActive() {
	rec, ok := v.selected()
	if !ok {
		return
	}
	if rec.State.Rank() > vpn.StateFailure.Rank() {
		v.report(v.source.Deactivate(rec.Path), "Disconnecting "+rec.Name)
	} else {
		v.report(v.source.Activate(rec.Path), "Connecting "+rec.Name)
	}
}

func (v *view) toggleAutomatic() {
	rec, ok := v.selected()
	if !ok {
		return
	}
	enabled := !rec.AutomaticUpDown
	v.report(v.source.SetAutomatic(rec.Path, enabled), fmt.Sprintf("Automatic connection for %s %s", rec.Name, onOff(enabled)))
	v.refresh()
}

func (v *view) report(err error, status string) {
	v.err = err
	if err == nil {
		v.status = status
	} else {
		v.status = ""
	}
}

func check(b bool) string {
	if b {
		return "✓"
	}
	return ""
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
