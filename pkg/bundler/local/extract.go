package local

import (
	"fmt"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/withgalaxy/devbridge/pkg/bundler"
)

// ExtractRequires returns the module specifiers content depends on, in source
// order and without duplicates. Syntax errors are reported as
// *bundler.TransformError against filename.
func ExtractRequires(filename string, content []byte) ([]string, error) {
	q, err := requireQuery()
	if err != nil {
		return nil, err
	}

	parser := getParser()
	defer putParser(parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", filename)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(filename, root)
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	captureNames := q.CaptureNames()
	seen := make(map[string]bool)
	specs := []string{}
	add := func(spec string) {
		if spec != "" && !seen[spec] {
			seen[spec] = true
			specs = append(specs, spec)
		}
	}

	matches := cursor.Matches(q, root, content)
	for match := matches.Next(); match != nil; match = matches.Next() {
		var fn, spec string
		for _, capture := range match.Captures {
			text := capture.Node.Utf8Text(content)
			switch captureNames[capture.Index] {
			case "import.spec", "reexport.spec", "dynamicImport.spec":
				add(text)
			case "require.fn":
				fn = text
			case "require.spec":
				spec = text
			}
		}
		if fn == "require" {
			add(spec)
		}
	}

	return specs, nil
}

func syntaxError(filename string, root *ts.Node) error {
	node := firstErrorNode(root)
	if node == nil {
		return &bundler.TransformError{
			Description: "SyntaxError: unable to parse file",
			Filename:    filename,
		}
	}
	desc := "SyntaxError: Unexpected token"
	if node.IsMissing() {
		desc = fmt.Sprintf("SyntaxError: Missing %q", node.Kind())
	}
	return &bundler.TransformError{
		Description: desc,
		Filename:    filename,
		LineNumber:  int(node.StartPosition().Row) + 1,
	}
}

// firstErrorNode walks the tree in document order and returns the first
// ERROR or MISSING node.
func firstErrorNode(root *ts.Node) *ts.Node {
	c := root.Walk()
	defer c.Close()

	for {
		node := c.Node()
		if node.IsError() || node.IsMissing() {
			return node
		}
		if node.HasError() && c.GotoFirstChild() {
			continue
		}
		for !c.GotoNextSibling() {
			if !c.GotoParent() {
				return nil
			}
		}
	}
}
