package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/atlas-foundry/psml-go-sdk/config"
	"github.com/atlas-foundry/psml-go-sdk/psml"
	"github.com/atlas-foundry/psml-go-sdk/session"
)

func docCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Edit the session document node by node",
		Long: `Edit a PSML document kept in the session store (see session.backend in the
config). Every subcommand loads the session, applies one change and saves it back.

Node ids are printed by 'psml doc show --tree'.`,
	}
	cmd.AddCommand(
		docNewCmd(a),
		docShowCmd(a),
		docAddCmd(a),
		docSetCmd(a),
		docRmCmd(a),
		docMvCmd(a),
		docValidateCmd(a),
		docClearCmd(a),
	)
	return cmd
}

// openSession builds the configured store and a manager over it. The returned close
// function releases the store.
func (a *app) openSession() (*session.Manager, func(), error) {
	var (
		store   session.Store
		closeFn = func() {}
	)
	switch a.cfg.Session.Backend {
	case config.BackendMemory:
		store = session.NewMemoryStore()
	case config.BackendFile:
		dir, err := a.cfg.SessionDir()
		if err != nil {
			return nil, nil, err
		}
		store = session.NewFileStore(dir)
	case config.BackendRedis:
		rs, err := session.NewRedisStore(session.RedisOptions{
			Addr: a.cfg.Session.RedisAddr,
			DB:   a.cfg.Session.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		store = rs
		closeFn = func() { _ = rs.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", a.cfg.Session.Backend)
	}
	m := session.NewManager(store, session.WithKey(a.cfg.Session.Key), session.WithLogger(a.log))
	return m, closeFn, nil
}

// editSession loads the session, applies fn and saves the result.
func (a *app) editSession(ctx context.Context, fn func(s *session.Session) error) (*session.Session, error) {
	m, closeFn, err := a.openSession()
	if err != nil {
		return nil, err
	}
	defer closeFn()
	s, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := m.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (a *app) loadSession(ctx context.Context) (*session.Session, error) {
	m, closeFn, err := a.openSession()
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return m.Load(ctx)
}

func docNewCmd(a *app) *cobra.Command {
	var (
		title   string
		fixture string
		from    string
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Replace the session with a new document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc := psml.NewDocument()
			switch {
			case fixture != "" && from != "":
				return fmt.Errorf("--fixture and --from are mutually exclusive")
			case fixture != "":
				d, err := loadFixture(fixture)
				if err != nil {
					return err
				}
				doc = d
			case from != "":
				body, err := readInput(cmd, from)
				if err != nil {
					return err
				}
				d, err := psml.ParseDocument(body)
				if err != nil {
					return fmt.Errorf("%s: %w", displayName(from), err)
				}
				doc = d
			}
			m, closeFn, err := a.openSession()
			if err != nil {
				return err
			}
			defer closeFn()
			s := m.Fresh()
			s.Title = title
			s.Doc = doc
			if err := m.Save(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started session %s (%d nodes)\n", s.ID, doc.Len())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "Session title")
	f.StringVar(&fixture, "fixture", "", "Start from a catalog fixture")
	f.StringVar(&from, "from", "", "Start from a PSML file (- for stdin)")
	return cmd
}

func docShowCmd(a *app) *cobra.Command {
	var (
		tree     bool
		snapshot bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the session document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSession(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case snapshot:
				data, err := psml.SnapshotRenderer{}.Render(s.Doc)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			case tree:
				writeSessionHeader(out, s)
				writeTree(out, s.Doc)
				return nil
			default:
				_, err := s.Doc.WriteTo(out)
				return err
			}
		},
	}
	cmd.Flags().BoolVar(&tree, "tree", false, "Print node ids and kinds as an outline")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "Print the JSON snapshot")
	return cmd
}

func writeSessionHeader(w io.Writer, s *session.Session) {
	title := s.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(w, "# %s  %s  modified %s\n", title, s.ID, s.LastModified.Local().Format(time.DateTime))
}

func writeTree(w io.Writer, d *psml.Document) {
	d.Walk(func(n psml.Node, depth int) bool {
		fmt.Fprintf(w, "%s%s <%s>", strings.Repeat("  ", depth), n.ID, n.Kind)
		for _, attr := range n.Attrs {
			if attr.Name != psml.ContentAttr {
				fmt.Fprintf(w, " %s=%q", attr.Name, attr.Value)
			}
		}
		if text := d.Content(n.ID); text != "" {
			fmt.Fprintf(w, " %q", truncate(text, 40))
		}
		fmt.Fprintln(w)
		return true
	})
}

func docAddCmd(a *app) *cobra.Command {
	var (
		attrs   []string
		content string
	)
	cmd := &cobra.Command{
		Use:   "add <kind> <parent-id>",
		Short: "Append a node under a parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseAttrs(attrs)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("content") {
				patch = append(patch, psml.Attr{Name: psml.ContentAttr, Value: content})
			}
			var id psml.NodeID
			_, err = a.editSession(cmd.Context(), func(s *session.Session) error {
				id, err = s.Doc.AddNode(psml.ElementKind(args[0]), psml.NodeID(args[1]), patch...)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "Attribute as name=value (repeatable)")
	cmd.Flags().StringVar(&content, "content", "", "Text content")
	return cmd
}

func docSetCmd(a *app) *cobra.Command {
	var (
		attrs   []string
		content string
	)
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Merge attributes or text content into a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseAttrs(attrs)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("content") {
				patch = append(patch, psml.Attr{Name: psml.ContentAttr, Value: content})
			}
			if len(patch) == 0 {
				return fmt.Errorf("nothing to set: pass --attr or --content")
			}
			_, err = a.editSession(cmd.Context(), func(s *session.Session) error {
				return s.Doc.UpdateAttributes(psml.NodeID(args[0]), patch...)
			})
			return err
		},
	}
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "Attribute as name=value (repeatable)")
	cmd.Flags().StringVar(&content, "content", "", "Text content")
	return cmd
}

func docRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a node and everything below it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.editSession(cmd.Context(), func(s *session.Session) error {
				return s.Doc.RemoveNode(psml.NodeID(args[0]))
			})
			return err
		},
	}
}

func docMvCmd(a *app) *cobra.Command {
	var before bool
	cmd := &cobra.Command{
		Use:   "mv <id> <target-id>",
		Short: "Move a node next to a sibling",
		Long:  "Move a node directly after (or, with --before, before) another child of the same parent.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos := psml.After
			if before {
				pos = psml.Before
			}
			_, err := a.editSession(cmd.Context(), func(s *session.Session) error {
				return s.Doc.MoveNode(psml.NodeID(args[0]), psml.NodeID(args[1]), pos)
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&before, "before", false, "Place the node before the target")
	return cmd
}

func docValidateCmd(a *app) *cobra.Command {
	var failOnWarnings bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the session document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSession(cmd.Context())
			if err != nil {
				return err
			}
			r := a.validator(0).ValidateDocument(s.Doc)
			printReport(cmd.OutOrStdout(), "session", r)
			if !r.Valid || ((failOnWarnings || a.cfg.Validation.FailOnWarnings) && len(r.Warnings) > 0) {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnWarnings, "fail-on-warnings", false, "Fail when any warning is reported")
	return cmd
}

func docClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, closeFn, err := a.openSession()
			if err != nil {
				return err
			}
			defer closeFn()
			return m.Clear(cmd.Context())
		},
	}
}
