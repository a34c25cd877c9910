package hcl

import (
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// envRoot is the variable catalog expressions use for environment lookups,
// e.g. bdf = env.TEEIO_ROOT_PORT_BDF.
const envRoot = "env"

func environ() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}
	return env
}

func (l *Loader) evalContext() *hcl.EvalContext {
	vals := make(map[string]cty.Value, len(l.Env))
	for k, v := range l.Env {
		vals[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{envRoot: cty.ObjectVal(vals)},
	}
}

// traversalKey renders a traversal the way it is written, e.g. env.HOME.
func traversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// unsetReferences lists, sorted and unique, every env.NAME the body refers
// to that the loader's environment does not define.
func (l *Loader) unsetReferences(body hcl.Body) []string {
	syntaxBody, ok := body.(*hclsyntax.Body)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var walk func(b *hclsyntax.Body)
	walk = func(b *hclsyntax.Body) {
		for _, attr := range b.Attributes {
			for _, t := range attr.Expr.Variables() {
				if t.RootName() != envRoot || len(t) < 2 {
					continue
				}
				name, ok := t[1].(hcl.TraverseAttr)
				if !ok {
					continue
				}
				if _, set := l.Env[name.Name]; !set {
					seen[traversalKey(t[:2])] = struct{}{}
				}
			}
		}
		for _, block := range b.Blocks {
			walk(block.Body)
		}
	}
	walk(syntaxBody)

	unset := make([]string, 0, len(seen))
	for k := range seen {
		unset = append(unset, k)
	}
	sort.Strings(unset)
	return unset
}
