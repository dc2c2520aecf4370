// Package fragment implements SqlFragment composition and formatting: the
// injection-safe template mechanism spec.md's §1 calls an "external
// collaborator" but that this module, having no other home for it, must
// still provide. A Fragment is a small composition tree; Format walks it
// once, producing (query text with $N placeholders, params[]).
package fragment

import (
	"strconv"
	"strings"
)

// node is one piece of a Fragment's composition tree.
type node interface{ isNode() }

type rawNode string

func (rawNode) isNode() {}

type paramNode struct{ value any }

func (paramNode) isNode() {}

type identNode string

func (identNode) isNode() {}

type fragNode struct{ f *Fragment }

func (fragNode) isNode() {}

// Fragment is a composed, not-yet-formatted piece of SQL text plus
// parameters. Fragments nest: Join and Frag both accept other Fragments.
type Fragment struct {
	nodes []node
}

// New starts an empty Fragment.
func New() *Fragment { return &Fragment{} }

// Raw appends literal SQL text, never parameterized. Callers are
// responsible for never interpolating untrusted input into a Raw call —
// that's the entire reason Param exists.
func (f *Fragment) Raw(text string) *Fragment {
	f.nodes = append(f.nodes, rawNode(text))
	return f
}

// Param appends a value that will be sent as a bind parameter, rendered
// in the output text as a "$N" placeholder. This is the only
// injection-safe way to interpolate a runtime value.
func (f *Fragment) Param(v any) *Fragment {
	f.nodes = append(f.nodes, paramNode{value: v})
	return f
}

// Ident appends a double-quote-escaped identifier (table/column name),
// safe against embedded quotes or reserved words but NOT a substitute for
// Param — identifiers can never be bind parameters in the wire protocol.
func (f *Fragment) Ident(name string) *Fragment {
	f.nodes = append(f.nodes, identNode(name))
	return f
}

// Frag splices another Fragment's nodes in place, preserving its
// parameters' relative order — the composition mechanism the glossary
// calls a "composition tree".
func (f *Fragment) Frag(other *Fragment) *Fragment {
	f.nodes = append(f.nodes, fragNode{f: other})
	return f
}

// Join concatenates parts with sep between them, splicing each part as a
// nested Fragment. Mirrors the design-notes DSL's fragment(sep, parts).
func Join(sep string, parts ...*Fragment) *Fragment {
	f := New()
	for i, p := range parts {
		if i > 0 {
			f.Raw(sep)
		}
		f.Frag(p)
	}
	return f
}

// Array renders vs as a Postgres ARRAY[...] constructor with each element
// as its own bind parameter.
func Array(vs ...any) *Fragment {
	f := New().Raw("ARRAY[")
	for i, v := range vs {
		if i > 0 {
			f.Raw(", ")
		}
		f.Param(v)
	}
	return f.Raw("]")
}

// Row renders vs as a row constructor "(v1, v2, ...)" with each element as
// its own bind parameter.
func Row(vs ...any) *Fragment {
	f := New().Raw("(")
	for i, v := range vs {
		if i > 0 {
			f.Raw(", ")
		}
		f.Param(v)
	}
	return f.Raw(")")
}

// SQL builds a Fragment the way a tagged template would: parts are the
// literal segments and values the interpolated ones, so
// SQL([]string{"SELECT * FROM t WHERE id = ", ""}, id) is equivalent to
// the tagged-template form sql`SELECT * FROM t WHERE id = ${id}`. len(parts)
// must equal len(values)+1.
func SQL(parts []string, values ...any) *Fragment {
	f := New()
	for i, p := range parts {
		f.Raw(p)
		if i < len(values) {
			f.Param(values[i])
		}
	}
	return f
}

// Format walks the composition tree once and produces the final query text
// (with sequential $1, $2, ... placeholders) and the parameter list in
// placeholder order. Identifiers are rendered inline as double-quoted,
// double-quote-escaped text; raw segments are copied verbatim.
func Format(f *Fragment) (text string, params []any) {
	var b strings.Builder
	walk(f, &b, &params)
	return b.String(), params
}

func walk(f *Fragment, b *strings.Builder, params *[]any) {
	for _, n := range f.nodes {
		switch v := n.(type) {
		case rawNode:
			b.WriteString(string(v))
		case identNode:
			b.WriteString(QuoteIdent(string(v)))
		case paramNode:
			*params = append(*params, v.value)
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(len(*params)))
		case fragNode:
			walk(v.f, b, params)
		}
	}
}

// QuoteIdent double-quotes name, doubling any embedded double quotes per
// PostgreSQL's identifier-quoting rule.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
