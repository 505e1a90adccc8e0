package uitree

import "strings"

const (
	// maxDepth bounds recursion into the element tree. The tree is acyclic
	// and shallow in practice, but nothing external guarantees that.
	maxDepth = 64

	// maxNodes bounds total nodes visited per flatten.
	maxNodes = 10_000
)

// Flatten walks the element tree depth-first and collects every non-empty
// text attribute into an ordered fragment list. Exact duplicates are
// dropped, first occurrence wins. Order is load-bearing: the extractor's
// label pass consumes the fragment FOLLOWING a matched label.
func Flatten(root Element) []string {
	f := &flattener{seen: make(map[string]struct{})}
	f.visit(root, 0)
	return f.fragments
}

type flattener struct {
	fragments []string
	seen      map[string]struct{}
	visited   int
}

func (f *flattener) visit(el Element, depth int) {
	if depth > maxDepth || f.visited >= maxNodes {
		return
	}
	f.visited++

	// Attribute precedence mirrors how the dialog populates them: the
	// primary value first, then title, description, and help text.
	for _, text := range []string{el.Value, el.Title, el.Description, el.Help} {
		f.add(text)
	}

	for _, child := range el.Children {
		f.visit(child, depth+1)
	}
}

func (f *flattener) add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if _, dup := f.seen[text]; dup {
		return
	}
	f.seen[text] = struct{}{}
	f.fragments = append(f.fragments, text)
}
