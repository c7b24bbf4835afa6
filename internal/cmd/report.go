package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hedisam/gombox"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(16)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type report struct {
	DataMailbox int
	Capacity    int
	Sent        int64
	Received    int64
	Checksum    uint64
	Terminal    []int64
	Clock       []uint32
	Ticks       uint64
	Usage       gombox.Usage
	Invariants  error
	Elapsed     time.Duration
}

func (r *report) render() string {
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	b.WriteString(titleStyle.Render("gombox run"))
	b.WriteString("\n\n")
	row("data mailbox", fmt.Sprintf("%d (capacity %d)", r.DataMailbox, r.Capacity))
	row("messages", fmt.Sprintf("%d sent, %d received", r.Sent, r.Received))
	row("checksum", fmt.Sprintf("%#x", r.Checksum))
	row("terminals", fmt.Sprint(r.Terminal))
	row("clock", fmt.Sprint(r.Clock))
	row("ticks", fmt.Sprint(r.Ticks))
	row("mailboxes", fmt.Sprintf("%d/%d", r.Usage.Mailboxes, r.Usage.MaxMailboxes))
	row("slots", fmt.Sprintf("%d/%d", r.Usage.SlotsUsed, r.Usage.MaxSlots))
	if r.Invariants != nil {
		row("invariants", errStyle.Render(r.Invariants.Error()))
	} else {
		row("invariants", okStyle.Render("ok"))
	}
	row("elapsed", r.Elapsed.Round(time.Millisecond).String())

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
