package local

import (
	_ "embed"
	"fmt"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

//go:embed queries/requires.scm
var requiresQuery string

// The TSX grammar accepts plain JavaScript, JSX and TypeScript sources.
var tsxLanguage = ts.NewLanguage(tsTypescript.LanguageTSX())

var parserPool = sync.Pool{
	New: func() any {
		parser := ts.NewParser()
		if err := parser.SetLanguage(tsxLanguage); err != nil {
			panic("failed to set TSX language: " + err.Error())
		}
		return parser
	},
}

func getParser() *ts.Parser {
	return parserPool.Get().(*ts.Parser)
}

func putParser(p *ts.Parser) {
	p.Reset()
	parserPool.Put(p)
}

var (
	query     *ts.Query
	queryOnce sync.Once
	queryErr  error
)

// requireQuery returns the compiled query. Queries are safe for concurrent
// use with separate cursors.
func requireQuery() (*ts.Query, error) {
	queryOnce.Do(func() {
		q, qerr := ts.NewQuery(tsxLanguage, requiresQuery)
		if qerr != nil {
			queryErr = fmt.Errorf("failed to parse requires query: %w", qerr)
			return
		}
		query = q
	})
	return query, queryErr
}
