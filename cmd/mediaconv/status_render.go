package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusOK statusKind = iota
	statusWarn
	statusError
)

var statusTags = map[statusKind]struct {
	label string
	color text.Colors
}{
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"FAIL", text.Colors{text.FgRed, text.Bold}},
}

const statusLabelWidth = 22

// renderStatusLine formats "  label:   [TAG] message" with the tag colored
// when colorize is set.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag, ok := statusTags[kind]
	if !ok {
		tag = statusTags[statusError]
	}
	rendered := tag.label
	if colorize {
		rendered = tag.color.Sprint(tag.label)
	}
	line := fmt.Sprintf("  %-*s [%s]", statusLabelWidth, label+":", rendered)
	if message != "" {
		line += " " + message
	}
	return line
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

// shouldColorize reports whether writer is an interactive terminal.
func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
