package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/atlas-foundry/psml-go-sdk/psml"
)

func fmtCmd(a *app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt <file|->",
		Short: "Print the canonical form of a PSML document",
		Long: `Parse a document into the tree model and print its canonical serialization:
XML declaration, two-space indentation, attributes in source order.

The document must be structurally legal; run 'psml validate' for a full report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			doc, err := psml.ParseDocument(body)
			if err != nil {
				return fmt.Errorf("%s: %w", displayName(args[0]), err)
			}
			if write && args[0] != "-" {
				if err := doc.DumpFile(args[0]); err != nil {
					return err
				}
				a.log.Info("Formatted document", "path", args[0], "nodes", doc.Len())
				return nil
			}
			_, err = doc.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the file")
	return cmd
}

func convertCmd(a *app) *cobra.Command {
	var (
		from, to     string
		model        string
		skipExamples bool
		rankDir      string
		list         bool
	)
	cmd := &cobra.Command{
		Use:   "convert --from <format> --to <format> <file|->",
		Short: "Convert between PSML and other formats",
		Long: `Convert a document with the built-in converter registry.

Run 'psml convert --list' for the supported from/to pairs. Text results are printed
as-is; structured results (chat messages) are printed as JSON.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "FROM\tTO\n")
				for _, d := range psml.DefaultConverterRegistry.List() {
					fmt.Fprintf(w, "%s\t%s\n", d.From, d.To)
				}
				return w.Flush()
			}
			if from == "" || to == "" {
				return fmt.Errorf("both --from and --to are required")
			}
			body, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			opts := map[string]any{"skip_examples": skipExamples}
			if model != "" {
				opts["model"] = model
			}
			if rankDir != "" {
				opts["rankdir"] = rankDir
			}
			a.log.Debug("converting", "from", from, "to", to, "input", displayName(args[0]))
			result, err := psml.DefaultConverterRegistry.Convert(cmd.Context(), from, to, body, opts)
			if err != nil {
				return err
			}
			return writeConverted(cmd, result)
		},
	}
	f := cmd.Flags()
	f.StringVar(&from, "from", "psml", "Input format")
	f.StringVar(&to, "to", "", "Output format")
	f.StringVar(&model, "model", "", "Model recorded in chat output (overrides the prompt's model attribute)")
	f.BoolVar(&skipExamples, "skip-examples", false, "Drop few-shot turns built from <example> elements")
	f.StringVar(&rankDir, "rankdir", "", "Graph direction for --to dot (TB, LR, ...)")
	f.BoolVar(&list, "list", false, "List the registered conversions")
	return cmd
}

func writeConverted(cmd *cobra.Command, result any) error {
	out := cmd.OutOrStdout()
	switch v := result.(type) {
	case string:
		_, err := fmt.Fprint(out, v)
		return err
	case []byte:
		_, err := out.Write(v)
		return err
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
}

func graphCmd(a *app) *cobra.Command {
	var r psml.GraphvizRenderer
	cmd := &cobra.Command{
		Use:   "graph <file|->",
		Short: "Render a PSML document as a Graphviz DOT graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			doc, err := psml.ParseDocument(body)
			if err != nil {
				return fmt.Errorf("%s: %w", displayName(args[0]), err)
			}
			data, err := r.Render(doc)
			if err != nil {
				return err
			}
			a.log.Debug("rendered graph", "nodes", doc.Len(), "bytes", len(data))
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&r.RankDir, "rankdir", "", "Graph direction (TB, LR, ...)")
	cmd.Flags().IntVar(&r.MaxLabel, "max-label", 0, "Truncate node content to this many runes (negative hides content)")
	return cmd
}
