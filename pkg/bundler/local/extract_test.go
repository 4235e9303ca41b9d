package local

import (
	"errors"
	"slices"
	"testing"

	"github.com/withgalaxy/devbridge/pkg/bundler"
)

func TestExtractRequires(t *testing.T) {
	src := `
import React from 'react';
import './polyfill';
import type { Props } from "./types";
export * from './reexported';
export { helper } from "./helpers";
const App = require('./App');
const lazy = () => import('./Lazy');
const again = require('./App');
notRequire('./ignored');
require(dynamicName);

export default function Root(props: Props) {
  return <App {...props} />;
}
`
	specs, err := ExtractRequires("index.tsx", []byte(src))
	if err != nil {
		t.Fatalf("ExtractRequires failed: %v", err)
	}
	want := []string{"react", "./polyfill", "./types", "./reexported", "./helpers", "./App", "./Lazy"}
	if !slices.Equal(specs, want) {
		t.Errorf("expected %v, got %v", want, specs)
	}
}

func TestExtractRequires_NoDependencies(t *testing.T) {
	specs, err := ExtractRequires("leaf.js", []byte("module.exports = 42;\n"))
	if err != nil {
		t.Fatalf("ExtractRequires failed: %v", err)
	}
	if specs == nil || len(specs) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", specs)
	}
}

func TestExtractRequires_SyntaxError(t *testing.T) {
	src := "const a = 1;\nconst b = 2;\nconst = ;\n"
	_, err := ExtractRequires("broken.js", []byte(src))

	var te *bundler.TransformError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransformError, got %v", err)
	}
	if te.Filename != "broken.js" {
		t.Errorf("expected filename broken.js, got %s", te.Filename)
	}
	if te.LineNumber != 3 {
		t.Errorf("expected line 3, got %d", te.LineNumber)
	}
}
