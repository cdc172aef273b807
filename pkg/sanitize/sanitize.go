// Package sanitize strips development hot-reload hooks from emitted bundle
// chunks so production artifacts never try to reach a dev server.
package sanitize

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

const ModeProduction = "production"

const (
	socketConstructor = "WebSocket"
	hotObject         = "import.meta"
	hotProperty       = "hot"
)

// span is a byte range of the source to be replaced.
type span struct {
	start, end uint32
	with       string
}

// Rewrite neutralizes one chunk: the hot-module handle becomes false and every
// socket construction becomes null. Only those expressions change; the rest of
// the chunk is returned byte for byte, so rewriting its own output changes
// nothing.
func Rewrite(chunk string) string {
	src := []byte(chunk)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return chunk
	}
	defer tree.Close()

	var spans []span
	collect(tree.RootNode(), src, &spans)
	if len(spans) == 0 {
		return chunk
	}

	var b strings.Builder
	b.Grow(len(chunk))
	var last uint32
	for _, s := range spans {
		b.Write(src[last:s.start])
		b.WriteString(s.with)
		last = s.end
	}
	b.Write(src[last:])
	return b.String()
}

// collect walks the tree in source order. A matched node is replaced whole,
// so its children are not visited and spans never overlap.
func collect(n *sitter.Node, src []byte, spans *[]span) {
	if n == nil {
		return
	}
	switch {
	case isSocketConstruction(n, src):
		*spans = append(*spans, span{start: n.StartByte(), end: n.EndByte(), with: "null"})
		return
	case isHotHandle(n, src):
		*spans = append(*spans, span{start: n.StartByte(), end: n.EndByte(), with: "false"})
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		collect(n.NamedChild(i), src, spans)
	}
}

func isSocketConstruction(n *sitter.Node, src []byte) bool {
	if n.Type() != "new_expression" {
		return false
	}
	ctor := n.ChildByFieldName("constructor")
	return ctor != nil && ctor.Type() == "identifier" && ctor.Content(src) == socketConstructor
}

// isHotHandle matches import.meta.hot. Older grammars model import.meta as a
// member expression and newer ones as a meta_property, so the object is
// compared by text.
func isHotHandle(n *sitter.Node, src []byte) bool {
	if n.Type() != "member_expression" {
		return false
	}
	prop := n.ChildByFieldName("property")
	if prop == nil || prop.Content(src) != hotProperty {
		return false
	}
	obj := n.ChildByFieldName("object")
	return obj != nil && strings.Join(strings.Fields(obj.Content(src)), "") == hotObject
}

// Plugin applies Rewrite to generated chunks, but only when Mode is
// production.
type Plugin struct {
	Mode string
}

// Apply rewrites chunks in place and reports which chunks changed. Outside
// production chunks are left alone so hot reload keeps working.
func (p Plugin) Apply(chunks map[string]string) []string {
	if p.Mode != ModeProduction {
		return nil
	}
	var changed []string
	for name, code := range chunks {
		rewritten := Rewrite(code)
		if rewritten != code {
			chunks[name] = rewritten
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}
