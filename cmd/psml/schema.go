package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/atlas-foundry/psml-go-sdk/psml"
)

func schemaCmd(a *app) *cobra.Command {
	var (
		kind  string
		check bool
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the element registry as YAML",
		Long: `Print the built-in PSML schema: every element kind with its allowed parents and
children, content model and attributes. --kind narrows the output to one element;
--check verifies the registry is internally consistent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if check {
				if err := psml.CheckRegistry(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema %s: %d element kinds, registry consistent\n", psml.SchemaVersion, len(psml.Kinds()))
				return nil
			}
			var v any = psml.Definitions()
			if kind != "" {
				def, err := psml.DefinitionOf(psml.ElementKind(kind))
				if err != nil {
					return err
				}
				v = def
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(v); err != nil {
				return fmt.Errorf("encode schema: %w", err)
			}
			a.log.Debug("printed schema", "kind", kind)
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Only print this element kind")
	cmd.Flags().BoolVar(&check, "check", false, "Verify the registry instead of printing it")
	return cmd
}

func newCmd(a *app) *cobra.Command {
	var (
		template string
		fixture  string
		output   string
		list     bool
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a PSML document from a template or catalog fixture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if list {
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "ID\tName\tDescription\n")
				for _, f := range psml.Catalog() {
					fmt.Fprintf(w, "%s\t%s\t%s\n", f.ID, f.Name, f.Description)
				}
				return w.Flush()
			}
			body, err := starterText(template, fixture)
			if err != nil {
				return err
			}
			if output == "" {
				_, err := fmt.Fprint(out, body)
				return err
			}
			if _, err := os.Stat(output); err == nil {
				return fmt.Errorf("%s already exists", output)
			}
			if err := os.WriteFile(output, []byte(body), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			a.log.Info("Created document", "path", output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&template, "template", "t", "minimal", "Text template (minimal, standard)")
	f.StringVar(&fixture, "fixture", "", "Catalog fixture id; overrides --template")
	f.StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	f.BoolVar(&list, "list", false, "List the catalog fixtures")
	return cmd
}

// starterText renders a catalog fixture when one is named, otherwise the text template.
func starterText(template, fixture string) (string, error) {
	if fixture == "" {
		return psml.TemplateText(template)
	}
	doc, err := loadFixture(fixture)
	if err != nil {
		return "", err
	}
	return psml.Serialize(doc), nil
}

func loadFixture(id string) (*psml.Document, error) {
	f, ok := psml.FixtureByID(id)
	if !ok {
		return nil, fmt.Errorf("unknown fixture %q (see 'psml new --list')", id)
	}
	return psml.LoadFixture(f)
}
