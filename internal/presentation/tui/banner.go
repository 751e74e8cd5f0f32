package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the ddt banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  ____  ____ _____ ", "#60a5fa"},
		{" |  _ \\|  _ \\_   _|", "#818cf8"},
		{" | | | | | | || |  ", "#a78bfa"},
		{" | |_| | |_| || |  ", "#c084fc"},
		{" |____/|____/ |_|  ", "#e879f9"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String(" decision pack interpreter "+version).Faint())
	fmt.Fprintln(w)
}
