package formatter

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/crate/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a small stylesheet built with named [lipgloss.Style] fields.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Title renders s as a heading.
func (p *Palette) Title(s string) string { return p.title.Render(s) }

// Muted renders s as secondary text.
func (p *Palette) Muted(s string) string { return p.help.Render(s) }

// Status colors a run status.
func (p *Palette) Status(status string) string {
	switch status {
	case models.RunStatusSucceeded:
		return p.ok.Render(status)
	case models.RunStatusPartial, models.RunStatusRunning:
		return p.warn.Render(status)
	case models.RunStatusFailed:
		return p.err.Render(status)
	default:
		return status
	}
}
