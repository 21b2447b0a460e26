// Package console is the user-facing output channel, distinct from the
// hclog diagnostics stream. Transformations and destinations report
// through it.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	verboseStyle  = lipgloss.NewStyle().Faint(true)
)

// Console receives user-facing migration output
type Console interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Progress(format string, args ...interface{})
	Verbose(format string, args ...interface{})
}

// Terminal writes styled output to a terminal, falling back to plain
// prefixes when the writer is not a TTY.
type Terminal struct {
	out     io.Writer
	styled  bool
	verbose bool
	mu      sync.Mutex
}

// NewTerminal creates a console writing to out
func NewTerminal(out io.Writer, verbose bool) *Terminal {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd())
	}
	return &Terminal{out: out, styled: styled, verbose: verbose}
}

func (c *Terminal) render(style lipgloss.Style, prefix, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if c.styled {
		fmt.Fprintf(c.out, "%s %s\n", style.Render(prefix+":"), msg)
		return
	}
	fmt.Fprintf(c.out, "%s: %s\n", prefix, msg)
}

// Info implements Console
func (c *Terminal) Info(format string, args ...interface{}) {
	c.render(infoStyle, "INFO", format, args...)
}

// Warn implements Console
func (c *Terminal) Warn(format string, args ...interface{}) {
	c.render(warnStyle, "WARN", format, args...)
}

// Error implements Console
func (c *Terminal) Error(format string, args ...interface{}) {
	c.render(errorStyle, "ERROR", format, args...)
}

// Progress implements Console
func (c *Terminal) Progress(format string, args ...interface{}) {
	c.render(progressStyle, "TASK", format, args...)
}

// Verbose implements Console; suppressed unless enabled
func (c *Terminal) Verbose(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.render(verboseStyle, "VERBOSE", format, args...)
}

// Message is one captured console entry
type Message struct {
	Level string
	Text  string
}

// Capturing records messages for inspection in tests
type Capturing struct {
	mu       sync.Mutex
	Messages []Message
}

// NewCapturing creates an empty capturing console
func NewCapturing() *Capturing {
	return &Capturing{}
}

func (c *Capturing) record(level, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, Message{Level: level, Text: fmt.Sprintf(format, args...)})
}

// Info implements Console
func (c *Capturing) Info(format string, args ...interface{}) { c.record("info", format, args...) }

// Warn implements Console
func (c *Capturing) Warn(format string, args ...interface{}) { c.record("warn", format, args...) }

// Error implements Console
func (c *Capturing) Error(format string, args ...interface{}) { c.record("error", format, args...) }

// Progress implements Console
func (c *Capturing) Progress(format string, args ...interface{}) {
	c.record("progress", format, args...)
}

// Verbose implements Console
func (c *Capturing) Verbose(format string, args ...interface{}) {
	c.record("verbose", format, args...)
}

// ByLevel returns captured texts at the given level
func (c *Capturing) ByLevel(level string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.Messages {
		if m.Level == level {
			out = append(out, m.Text)
		}
	}
	return out
}
