package psml

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Converter turns input of one format into another (e.g., psml -> markdown, org -> psml).
type Converter interface {
	From() string
	To() string
	Convert(ctx context.Context, input any, opts map[string]any) (any, error)
}

// ConverterRegistry is a threadsafe registry for converters.
type ConverterRegistry struct {
	mu         sync.RWMutex
	converters map[string]Converter
}

// NewConverterRegistry builds an empty registry.
func NewConverterRegistry() *ConverterRegistry {
	return &ConverterRegistry{converters: make(map[string]Converter)}
}

// ErrConverterExists indicates a duplicate registration attempt.
var ErrConverterExists = errors.New("converter already registered")

// Register adds a converter. Returns ErrConverterExists when a from->to pair already exists.
func (r *ConverterRegistry) Register(conv Converter) error {
	if conv == nil {
		return errors.New("converter is nil")
	}
	key := converterKey(conv.From(), conv.To())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.converters[key]; exists {
		return fmt.Errorf("%w: %s", ErrConverterExists, key)
	}
	r.converters[key] = conv
	return nil
}

// ConverterDescriptor captures a registered mapping.
type ConverterDescriptor struct {
	From string
	To   string
}

// List returns descriptors for registered converters sorted by from, then to.
func (r *ConverterRegistry) List() []ConverterDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConverterDescriptor, 0, len(r.converters))
	for _, c := range r.converters {
		out = append(out, ConverterDescriptor{From: strings.ToLower(c.From()), To: strings.ToLower(c.To())})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From == out[j].From {
			return out[i].To < out[j].To
		}
		return out[i].From < out[j].From
	})
	return out
}

// Convert dispatches to a registered converter.
func (r *ConverterRegistry) Convert(ctx context.Context, from, to string, input any, opts map[string]any) (any, error) {
	key := converterKey(from, to)
	r.mu.RLock()
	conv, ok := r.converters[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no converter for %s", ErrNotImplemented, key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return conv.Convert(ctx, input, opts)
}

// DefaultConverterRegistry is pre-populated with the built-in converters.
var DefaultConverterRegistry = newDefaultConverterRegistry()

func newDefaultConverterRegistry() *ConverterRegistry {
	reg := NewConverterRegistry()
	registerDefaultConverters(reg)
	return reg
}

func converterKey(from, to string) string {
	return strings.ToLower(from) + "->" + strings.ToLower(to)
}

// registerDefaultConverters wires built-ins onto the provided registry.
func registerDefaultConverters(reg *ConverterRegistry) {
	// ignore duplicate errors to allow idempotent init in tests
	for _, tf := range []TextFormat{FormatMarkdown, FormatOrg} {
		tf := tf // per-iteration copy; go directive is below 1.22
		_ = reg.Register(basicConverter{
			from: "psml",
			to:   string(tf),
			fn: func(_ context.Context, input any, _ map[string]any) (any, error) {
				doc, err := documentFrom(input)
				if err != nil {
					return nil, err
				}
				return ConvertPSMLToText(doc, tf)
			},
		})
		_ = reg.Register(basicConverter{
			from: string(tf),
			to:   "psml",
			fn: func(_ context.Context, input any, _ map[string]any) (any, error) {
				body, err := textFrom(input)
				if err != nil {
					return nil, err
				}
				doc, err := ConvertTextToPSML(body, tf)
				if err != nil {
					return nil, err
				}
				return Serialize(doc), nil
			},
		})
	}
	for _, f := range []Format{FormatMessageDict, FormatDict, FormatOpenAIChat} {
		f := f // per-iteration copy; go directive is below 1.22
		_ = reg.Register(basicConverter{
			from: "psml",
			to:   string(f),
			fn: func(_ context.Context, input any, opts map[string]any) (any, error) {
				root, err := treeFrom(input)
				if err != nil {
					return nil, err
				}
				return convertTree(root, f, convertOptionsFrom(opts))
			},
		})
	}
	_ = reg.Register(basicConverter{
		from: "psml",
		to:   "dot",
		fn: func(_ context.Context, input any, opts map[string]any) (any, error) {
			doc, err := documentFrom(input)
			if err != nil {
				return nil, err
			}
			r := GraphvizRenderer{}
			if v, ok := opts["rankdir"].(string); ok {
				r.RankDir = v
			}
			out, err := r.Render(doc)
			if err != nil {
				return nil, err
			}
			return string(out), nil
		},
	})
	_ = reg.Register(basicConverter{
		from: "psml",
		to:   "snapshot",
		fn: func(_ context.Context, input any, _ map[string]any) (any, error) {
			doc, err := documentFrom(input)
			if err != nil {
				return nil, err
			}
			return SnapshotRenderer{}.Render(doc)
		},
	})
	_ = reg.Register(basicConverter{
		from: "snapshot",
		to:   "psml",
		fn: func(_ context.Context, input any, _ map[string]any) (any, error) {
			var snap Snapshot
			switch v := input.(type) {
			case Snapshot:
				snap = v
			case string:
				if err := json.Unmarshal([]byte(v), &snap); err != nil {
					return nil, err
				}
			case []byte:
				if err := json.Unmarshal(v, &snap); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("snapshot->psml converter expects Snapshot, string, or []byte, got %T", input)
			}
			doc, err := Restore(snap)
			if err != nil {
				return nil, err
			}
			return Serialize(doc), nil
		},
	})
}

type basicConverter struct {
	from string
	to   string
	fn   func(ctx context.Context, input any, opts map[string]any) (any, error)
}

func (c basicConverter) From() string { return c.from }
func (c basicConverter) To() string   { return c.to }
func (c basicConverter) Convert(ctx context.Context, input any, opts map[string]any) (any, error) {
	return c.fn(ctx, input, opts)
}

func textFrom(input any) (string, error) {
	switch v := input.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("expected string or []byte, got %T", input)
	}
}

func documentFrom(input any) (*Document, error) {
	if doc, ok := input.(*Document); ok {
		if doc == nil {
			return nil, errors.New("nil document")
		}
		return doc, nil
	}
	body, err := textFrom(input)
	if err != nil {
		return nil, fmt.Errorf("psml converter expects string, []byte, or *Document: %w", err)
	}
	return ParseDocument(body)
}

// treeFrom keeps hand-authored text on the generic tree so conversion does not depend on
// the tree model accepting it.
func treeFrom(input any) (*Element, error) {
	switch v := input.(type) {
	case *Document:
		if v == nil {
			return nil, errors.New("nil document")
		}
		return v.Tree(), nil
	case *Element:
		return v, nil
	}
	body, err := textFrom(input)
	if err != nil {
		return nil, fmt.Errorf("psml converter expects string, []byte, *Element, or *Document: %w", err)
	}
	return ParseString(body)
}

func convertOptionsFrom(opts map[string]any) ConvertOptions {
	var out ConvertOptions
	if v, ok := opts["model"].(string); ok {
		out.Model = v
	}
	if v, ok := opts["skip_examples"].(bool); ok {
		out.SkipExamples = v
	}
	return out
}
