package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Muster ASCII art banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.NewOutput(w).Profile
	lines := []struct {
		text  string
		color string
	}{
		{"  __  __           _", "#34d399"},
		{" |  \\/  |_   _ ___| |_ ___ _ __", "#2dd4bf"},
		{" | |\\/| | | | / __| __/ _ \\ '__|", "#22d3ee"},
		{" | |  | | |_| \\__ \\ ||  __/ |", "#38bdf8"},
		{" |_|  |_|\\__,_|___/\\__\\___|_|", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
