package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atlas-foundry/psml-go-sdk/psml"
)

const stdinName = "<stdin>"

// readInput reads path, or standard input when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func displayName(path string) string {
	if path == "-" {
		return stdinName
	}
	return path
}

// parseAttrs turns name=value pairs into attributes, keeping their order.
func parseAttrs(pairs []string) ([]psml.Attr, error) {
	out := make([]psml.Attr, 0, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid attribute %q: want name=value", p)
		}
		out = append(out, psml.Attr{Name: name, Value: value})
	}
	return out, nil
}

func printReport(w io.Writer, name string, r psml.Report) {
	for _, line := range r.FormatErrors() {
		fmt.Fprintf(w, "%s: %s\n", name, line)
	}
	for _, line := range r.FormatWarnings() {
		fmt.Fprintf(w, "%s: warning: %s\n", name, line)
	}
	fmt.Fprintf(w, "%s: %s\n", name, r.Summary())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
