// Package tui renders query results for a terminal.
package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/wire"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Printer writes results either as styled, human-oriented lines or as one
// serialized node per line.
type Printer struct {
	w       io.Writer
	profile termenv.Profile
	raw     bool
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithRaw prints every result as its serialized JSON node, one per line.
func WithRaw(raw bool) PrinterOption {
	return func(p *Printer) {
		p.raw = raw
	}
}

// WithProfile overrides the detected color profile.
func WithProfile(profile termenv.Profile) PrinterOption {
	return func(p *Printer) {
		p.profile = profile
	}
}

// NewPrinter creates a printer writing to w. Colors are enabled only when w is
// a terminal.
func NewPrinter(w io.Writer, opts ...PrinterOption) *Printer {
	p := &Printer{w: w, profile: termenv.Ascii}
	if IsTerminal(w) {
		p.profile = termenv.NewOutput(w).Profile
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Print writes result.
func (p *Printer) Print(result *domain.Definition) error {
	if p.raw {
		data, err := wire.Serialize(result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.w, string(data))
		return err
	}

	switch {
	case domain.IsPending(result):
		_, err := fmt.Fprintln(p.w, p.style("… pending", "#9ca3af").Faint())
		return err
	case domain.ErrorOf(result) != nil:
		_, err := fmt.Fprintln(p.w, p.FormatError(domain.ErrorOf(result)))
		return err
	case result.Is(domain.ValueType):
		return p.printJSON(domain.ValueOf(result))
	case result.Is(domain.NilType):
		_, err := fmt.Fprintln(p.w, p.style("null", "#9ca3af"))
		return err
	}

	tree, err := wire.Encode(result)
	if err != nil {
		_, err = fmt.Fprintln(p.w, result.String())
		return err
	}
	return p.printJSON(tree)
}

// FormatError renders err as a single styled line.
func (p *Printer) FormatError(err *domain.Error) string {
	var b strings.Builder
	b.WriteString(p.style("✗ error", "#f87171").Bold().String())
	if err.Code != "" {
		b.WriteString(" ")
		b.WriteString(p.style("["+err.Code+"]", "#fbbf24").String())
	}
	b.WriteString(" ")
	b.WriteString(err.Message)
	if len(err.Path) > 0 {
		b.WriteString(p.style(" at /"+strings.Join(err.Path, "/"), "#9ca3af").String())
	}
	if len(err.RemotePath) > 0 {
		b.WriteString(p.style(" (remote /"+strings.Join(err.RemotePath, "/")+")", "#9ca3af").String())
	}
	return b.String()
}

func (p *Printer) printJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		_, err = fmt.Fprintf(p.w, "%v\n", v)
		return err
	}
	if p.profile != termenv.Ascii {
		var buf bytes.Buffer
		if json.Indent(&buf, data, "", "  ") == nil {
			data = buf.Bytes()
		}
	}
	_, err = fmt.Fprintln(p.w, p.style(string(data), "#e5e7eb"))
	return err
}

func (p *Printer) style(s, color string) termenv.Style {
	return p.profile.String(s).Foreground(p.profile.Color(color))
}
