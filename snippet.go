package rg

import (
	"regexp"
	"sync"
)

// snippetRef matches a <#category.function> reference in shader source.
var snippetRef = regexp.MustCompile(`<#([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)>`)

const defaultSnippetDepth = 3

var (
	snippetMu    sync.RWMutex
	snippets     = make(map[string]map[string]string)
	snippetDepth = defaultSnippetDepth
)

// RegisterSnippet adds (or replaces) a reusable shader fragment under a
// category and function name, referenced from shader source as
// <#category.function>. Snippets may reference other snippets.
func RegisterSnippet(category, function, body string) {
	snippetMu.Lock()
	defer snippetMu.Unlock()
	funcs, ok := snippets[category]
	if !ok {
		funcs = make(map[string]string)
		snippets[category] = funcs
	}
	funcs[function] = body
}

// ClearSnippets empties the snippet registry and restores the default
// expansion depth.
func ClearSnippets() {
	snippetMu.Lock()
	defer snippetMu.Unlock()
	snippets = make(map[string]map[string]string)
	snippetDepth = defaultSnippetDepth
}

// SetSnippetDepth bounds how many expansion passes ExpandSnippets runs,
// limiting transitive snippet-in-snippet references. Values below 1 are
// clamped to 1.
func SetSnippetDepth(depth int) {
	if depth < 1 {
		depth = 1
	}
	snippetMu.Lock()
	snippetDepth = depth
	snippetMu.Unlock()
}

// ExpandSnippets substitutes <#category.function> references in shader
// source with registered snippet bodies, up to the configured depth.
// Unknown references are replaced with an empty string and logged;
// references still unresolved after the final pass are left in place
// and logged. Expansion never fails: the shader compiler reports any
// damage downstream.
func ExpandSnippets(source string) string {
	snippetMu.RLock()
	depth := snippetDepth
	snippetMu.RUnlock()

	for pass := 0; pass < depth; pass++ {
		if !snippetRef.MatchString(source) {
			return source
		}
		source = snippetRef.ReplaceAllStringFunc(source, func(ref string) string {
			sub := snippetRef.FindStringSubmatch(ref)
			category, function := sub[1], sub[2]
			snippetMu.RLock()
			body, ok := snippets[category][function]
			snippetMu.RUnlock()
			if !ok {
				Logger().Warn("rg: unknown shader snippet", "category", category, "function", function)
				return ""
			}
			return body
		})
	}
	if refs := snippetRef.FindAllString(source, -1); len(refs) > 0 {
		Logger().Warn("rg: unresolved snippet references after expansion",
			"depth", depth, "remaining", refs)
	}
	return source
}
