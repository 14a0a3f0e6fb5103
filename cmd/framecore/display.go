package main

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/width"
)

// ── Startup display helpers ────────────────────────────────────────

var numbers = message.NewPrinter(language.English)

func printBanner(w io.Writer, name string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Fprintln(w, "\033[36;1m  │\033[0m             framecore  v0.1.0             \033[36;1m│\033[0m")
	fmt.Fprintln(w, "\033[36;1m  │\033[0m        phase-driven frame scheduler       \033[36;1m│\033[0m")
	fmt.Fprintln(w, "\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  \033[1mInstance:\033[0m %s\n\n", name)
}

// displayWidth counts terminal columns; East Asian wide runes take two.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func printSection(w io.Writer, title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Fprintf(w, "  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(w io.Writer, label string, value any) {
	s := numbers.Sprint(value)
	dotsLen := max(42-displayWidth(label)-len(s), 3)
	fmt.Fprintf(w, "  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), s)
}

func printOK(w io.Writer, msg string) {
	fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
}

func printReady(w io.Writer, msg string) {
	fmt.Fprintf(w, "  \033[32m▶\033[0m %s\n", msg)
}
