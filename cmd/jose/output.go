package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("JSON encoding error: %w", err)
	}
	return nil
}

func printSection(w io.Writer, title string) {
	headerColor.Fprintln(w, title)
}

func printField(w io.Writer, label string, value any) {
	labelColor.Fprintf(w, "  %s: ", label)
	fmt.Fprintln(w, value)
}

// printIndentedJSON writes v as JSON nested under a section.
func printIndentedJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		return fmt.Errorf("JSON encoding error: %w", err)
	}
	fmt.Fprintf(w, "  %s\n", b)
	return nil
}
