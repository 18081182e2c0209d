package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// noColor disables ANSI colors in console output.
var noColor bool

// colorize returns code unless colors are disabled.
func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

// Printer writes timestamped progress lines for humans. It implements
// workflow.Console.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, now: time.Now}
}

// stdoutIsTerminal reports whether colors make sense on stdout.
func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *Printer) line(color, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	stamp := p.now().Format("15:04:05")
	if color == "" || colorize(color) == "" {
		fmt.Fprintf(p.out, "%s %s\n", stamp, msg)
		return
	}
	fmt.Fprintf(p.out, "%s %s%s%s\n", stamp, colorize(color), msg, colorize(colorReset))
}

func (p *Printer) Info(format string, args ...any)    { p.line("", format, args...) }
func (p *Printer) Success(format string, args ...any) { p.line(colorGreen, format, args...) }
func (p *Printer) Warn(format string, args ...any)    { p.line(colorYellow, "WARNING: "+format, args...) }
func (p *Printer) Error(format string, args ...any)   { p.line(colorRed, "ERROR: "+format, args...) }
