package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

type ConsoleStyle int

const (
	StyleNormal ConsoleStyle = iota
	StyleError
	StyleWarning
	StyleSuccess
	StyleInfo
)

// Console writes operator-facing messages. Colors follow fatih/color's
// terminal detection (and NO_COLOR).
type Console struct {
	out    io.Writer
	errOut io.Writer
	styles map[ConsoleStyle]*color.Color
}

func NewConsole() *Console {
	return NewConsoleWithWriters(os.Stdout, os.Stderr)
}

func NewConsoleWithWriters(out, errOut io.Writer) *Console {
	return &Console{
		out:    out,
		errOut: errOut,
		styles: map[ConsoleStyle]*color.Color{
			StyleError:   color.New(color.FgRed, color.Bold),
			StyleWarning: color.New(color.FgYellow),
			StyleSuccess: color.New(color.FgGreen),
			StyleInfo:    color.New(color.FgBlue),
		},
	}
}

func (c *Console) formatMessage(style ConsoleStyle, message string) string {
	if col, ok := c.styles[style]; ok {
		return col.Sprint(message)
	}
	return message
}

func (c *Console) PrintError(message string) {
	fmt.Fprintln(c.errOut, c.formatMessage(StyleError, "Error: "+message))
}

func (c *Console) PrintWarning(message string) {
	fmt.Fprintln(c.errOut, c.formatMessage(StyleWarning, "Warning: "+message))
}

func (c *Console) PrintSuccess(message string) {
	fmt.Fprintln(c.out, c.formatMessage(StyleSuccess, message))
}

func (c *Console) PrintInfo(message string) {
	fmt.Fprintln(c.out, c.formatMessage(StyleInfo, message))
}

func (c *Console) FormatErrorMessage(context, cause, suggestion string) string {
	var parts []string

	if context != "" {
		parts = append(parts, context)
	}

	if cause != "" {
		parts = append(parts, fmt.Sprintf("Cause: %s", cause))
	}

	if suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", suggestion))
	}

	return strings.Join(parts, "\n")
}
