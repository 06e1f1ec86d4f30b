// Package console writes the user-facing deploy narrative.
//
// Messages for the operator go to Out (progress, checkmarks) and Err
// (failures, hints). Diagnostic detail goes to Log, a slog.Logger that is
// discarded unless verbose output was requested.
package console

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Printer prints the checkmark narrative of a run.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
	Log *slog.Logger
}

// New creates a Printer. With verbose set, debug records are written to errOut
// as text.
func New(out, errOut io.Writer, verbose bool) *Printer {
	handler := slog.DiscardHandler
	if verbose {
		handler = slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return &Printer{out: out, err: errOut, Log: slog.New(handler)}
}

// Stdio creates a Printer on the process's stdout and stderr.
func Stdio(verbose bool) *Printer {
	return New(os.Stdout, os.Stderr, verbose)
}

// Banner prints a section header preceded by a blank line.
func (p *Printer) Banner(format string, args ...any) {
	p.printf(p.out, "\n"+format+"\n", args...)
}

// Step announces the start of an operation.
func (p *Printer) Step(format string, args ...any) {
	p.printf(p.out, format+"\n", args...)
}

// Success reports a completed operation.
func (p *Printer) Success(format string, args ...any) {
	p.printf(p.out, "✓ "+format+"\n", args...)
}

// Info prints a plain line.
func (p *Printer) Info(format string, args ...any) {
	p.printf(p.out, format+"\n", args...)
}

// Warn reports a non-fatal problem.
func (p *Printer) Warn(format string, args ...any) {
	p.printf(p.err, "⚠️  "+format+"\n", args...)
}

// Failure reports a failed operation followed by indented hint lines.
func (p *Printer) Failure(message string, hints ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.err, "❌ %s\n", message)
	for _, h := range hints {
		fmt.Fprintf(p.err, "   %s\n", h)
	}
}

// Out returns the writer used for regular output.
func (p *Printer) Out() io.Writer {
	return p.out
}

func (p *Printer) printf(w io.Writer, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(w, format, args...)
}
