package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/atlas-foundry/psml-go-sdk/psml"
)

// documentPattern selects PSML files below a directory argument.
const documentPattern = "**/*.{psml,xml}"

type validateOptions struct {
	watch          bool
	asJSON         bool
	failOnWarnings bool
	maxDepth       int
}

// fileResult is one validated file; it is also the --json record.
type fileResult struct {
	File   string      `json:"file"`
	Report psml.Report `json:"report"`
}

func validateCmd(a *app) *cobra.Command {
	var opts validateOptions
	cmd := &cobra.Command{
		Use:   "validate <path|glob|->...",
		Short: "Validate PSML documents",
		Long: `Validate one or more PSML documents against the built-in schema.

Arguments may be files, directories (searched for *.psml and *.xml), doublestar
globs such as 'prompts/**/*.psml', or - for standard input. Files are validated
concurrently; the command fails when any document has errors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, args, opts)
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&opts.watch, "watch", "w", false, "Re-validate files whenever they change")
	f.BoolVar(&opts.asJSON, "json", false, "Print reports as JSON")
	f.BoolVar(&opts.failOnWarnings, "fail-on-warnings", false, "Fail when any warning is reported")
	f.IntVar(&opts.maxDepth, "max-depth", 0, "Nesting depth above which a warning is raised (default from config)")
	return cmd
}

func (a *app) validator(override int) *psml.Validator {
	depth := a.cfg.Validation.MaxDepth
	if override > 0 {
		depth = override
	}
	return psml.NewValidator(psml.WithMaxDepth(depth))
}

func (a *app) runValidate(cmd *cobra.Command, args []string, opts validateOptions) error {
	files, err := expandPaths(args)
	if err != nil {
		return err
	}
	v := a.validator(opts.maxDepth)
	failOnWarnings := opts.failOnWarnings || a.cfg.Validation.FailOnWarnings
	a.log.Debug("validating", "files", len(files), "max_depth", a.cfg.Validation.MaxDepth)

	results, err := validateFiles(cmd.Context(), cmd, v, files)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := writeResults(out, results, opts.asJSON); err != nil {
		return err
	}

	if opts.watch {
		var watched []string
		for _, f := range files {
			if f != "-" {
				watched = append(watched, f)
			}
		}
		w, err := newFileWatcher(watched, a.log)
		if err != nil {
			return err
		}
		defer w.Close()
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d file(s) for changes. Press Ctrl+C to stop.\n", len(watched))
		return w.Run(cmd.Context(), func(path string) {
			res, err := validateOne(cmd, v, path)
			if err != nil {
				a.log.Warn("re-validation failed", "file", path, "error", err)
				return
			}
			_ = writeResults(out, []fileResult{res}, opts.asJSON)
		})
	}

	invalid := 0
	for _, r := range results {
		if !r.Report.Valid || (failOnWarnings && len(r.Report.Warnings) > 0) {
			invalid++
		}
	}
	if len(results) > 1 && !opts.asJSON {
		fmt.Fprintf(out, "%d file(s) checked, %d failed\n", len(results), invalid)
	}
	if invalid > 0 {
		return errInvalid
	}
	return nil
}

// expandPaths resolves files, directories and globs into a de-duplicated file list in
// argument order.
func expandPaths(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, arg := range args {
		if arg == "-" {
			add(arg)
			continue
		}
		if strings.ContainsAny(arg, "*?[{") {
			matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match pattern: %s", arg)
			}
			for _, m := range matches {
				add(m)
			}
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(arg), documentPattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no PSML files under %s", arg)
		}
		for _, m := range matches {
			add(filepath.Join(arg, filepath.FromSlash(m)))
		}
	}
	return files, nil
}

// validateFiles validates files concurrently; results keep the input order.
func validateFiles(ctx context.Context, cmd *cobra.Command, v *psml.Validator, files []string) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range files {
		i, path := i, path // per-iteration copies; go directive is below 1.22
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := validateOne(cmd, v, path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func validateOne(cmd *cobra.Command, v *psml.Validator, path string) (fileResult, error) {
	body, err := readInput(cmd, path)
	if err != nil {
		return fileResult{}, err
	}
	return fileResult{File: displayName(path), Report: v.Validate(body)}, nil
}

func writeResults(w io.Writer, results []fileResult, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("encode reports: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	for _, r := range results {
		printReport(w, r.File, r.Report)
	}
	return nil
}
