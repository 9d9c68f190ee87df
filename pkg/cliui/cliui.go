// Package cliui holds the terminal output helpers shared by portal commands:
// styles, the step spinner, aligned fields, chat response summaries and
// markdown rendering.
package cliui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/gateway/header"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")

	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	KeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	NameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	WarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const spinnerTick = 80 * time.Millisecond

// Step runs fn and prints one result line with a ✓ or ✗ and the elapsed
// time. On a terminal an animated spinner holds the line while fn runs;
// piped output gets the result line only.
func Step(w io.Writer, msg string, fn func() error) error {
	var stop func()
	if isTerminal(w) {
		stop = spin(w, msg)
	}

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	prefix := ""
	if stop != nil {
		stop()
		prefix = "\r"
	}
	fmt.Fprintf(w, "%s  %s %s %s\n",
		prefix,
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	return err
}

// spin animates the spinner on w until the returned func is called. The
// func returns after the last frame has been written.
func spin(w io.Writer, msg string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(spinnerTick)
		defer ticker.Stop()

		for frame := 0; ; frame++ {
			fmt.Fprintf(w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Field is one label/value row of PrintFields.
type Field struct {
	Label string
	Value string
}

// PrintFields writes rows with the labels padded to a common width.
func PrintFields(w io.Writer, fields ...Field) {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Label))
	}

	for _, f := range fields {
		fmt.Fprintf(w, "  %s  %s\n",
			KeyStyle.Render(fmt.Sprintf("%-*s", width, f.Label)),
			ValueStyle.Render(f.Value),
		)
	}
}

// PrintSecret shows a plaintext-once credential followed by a warning.
func PrintSecret(w io.Writer, label, secret, warning string) {
	fmt.Fprintln(w)
	PrintFields(w, Field{Label: label, Value: secret})
	fmt.Fprintf(w, "  %s\n\n", WarnStyle.Render(warning))
}

// PrintError writes an ErrorDetail as a ✗ line.
func PrintError(w io.Writer, detail gateway.ErrorDetail) {
	fmt.Fprintf(w, "  %s %s %s\n", FailMark, detail.Message, DimStyle.Render("("+detail.Code+")"))
}

// UsageLine summarizes token usage and latency, e.g.
// "12 prompt + 3 completion = 15 tokens (estimated) · 240ms".
func UsageLine(usage *gateway.Usage, estimated bool, latency *time.Duration) string {
	var parts []string
	if usage != nil {
		line := fmt.Sprintf("%d prompt + %d completion = %d tokens",
			usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
		if estimated {
			line += " (estimated)"
		}
		parts = append(parts, line)
	}
	if latency != nil {
		parts = append(parts, FormatDuration(*latency))
	}
	return strings.Join(parts, " · ")
}

// PrintMeta writes the gateway metadata headers that were present.
func PrintMeta(w io.Writer, meta header.Meta) {
	var fields []Field
	for _, f := range meta.Fields() {
		fields = append(fields, Field{Label: f.Name, Value: f.Value})
	}
	PrintFields(w, fields...)
}

// RenderMarkdown renders an assistant reply for the terminal with glamour.
// On failure the content is returned unchanged along with the error.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}
	return rendered, nil
}
