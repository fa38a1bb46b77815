package static

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// unrendered are elements whose content never reaches the screen.
var unrendered = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Template: true,
	atom.Noscript: true,
	atom.Title:    true,
	atom.Meta:     true,
	atom.Link:     true,
}

// blocks are elements whose text starts on a new line.
var blocks = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Details: true, atom.Dialog: true, atom.Div: true,
	atom.Dl: true, atom.Dt: true, atom.Fieldset: true, atom.Figcaption: true,
	atom.Figure: true, atom.Footer: true, atom.Form: true, atom.H1: true,
	atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true,
	atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Table: true, atom.Tr: true, atom.Ul: true,
	atom.Summary: true, atom.Caption: true,
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// style returns the declarations of the element's inline style.
func style(n *html.Node) map[string]string {
	s, ok := attr(n, "style")
	if !ok {
		return nil
	}
	decls := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		decls[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(v)
	}
	return decls
}

// hidden reports whether n itself is not rendered, ignoring its ancestors.
func hidden(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if unrendered[n.DataAtom] {
		return true
	}
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if n.DataAtom == atom.Input {
		if t, _ := attr(n, "type"); strings.EqualFold(t, "hidden") {
			return true
		}
	}
	decls := style(n)
	return decls["display"] == "none" || decls["visibility"] == "hidden" || decls["visibility"] == "collapse"
}

// displayed reports whether n and all of its ancestors are rendered.
func displayed(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if hidden(n) {
			return false
		}
	}
	return true
}

// visibleText returns the rendered text of n: one line per block, with runs
// of whitespace collapsed and blank lines dropped.
func visibleText(n *html.Node) string {
	if !displayed(n) {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if hidden(n) {
				return
			}
			if n.DataAtom == atom.Br {
				b.WriteByte('\n')
				return
			}
		}
		block := n.Type == html.ElementNode && blocks[n.DataAtom]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	walk(n)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// focusable reports whether clicking n moves focus to it.
func focusable(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if _, ok := attr(n, "disabled"); ok {
		return false
	}
	if _, ok := attr(n, "tabindex"); ok {
		return true
	}
	switch n.DataAtom {
	case atom.A, atom.Area:
		_, ok := attr(n, "href")
		return ok
	case atom.Button, atom.Select, atom.Textarea, atom.Iframe, atom.Summary:
		return true
	case atom.Input:
		t, _ := attr(n, "type")
		return !strings.EqualFold(t, "hidden")
	}
	return false
}

// contains reports whether root is an ancestor of n, or n itself.
func contains(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}
