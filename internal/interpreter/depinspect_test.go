package interpreter

import (
	"reflect"
	"testing"
)

func TestExtractModules(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   []string
	}{
		{
			name:   "commonjs require",
			source: `const lodash = require("lodash"); const sub = require('lodash/debounce');`,
			want:   []string{"lodash"},
		},
		{
			name:   "esm import",
			source: `import express from "express"; import { z } from 'zod';`,
			want:   []string{"express", "zod"},
		},
		{
			name:   "relative imports are dropped",
			source: `import "./local"; const x = require("../other");`,
			want:   nil,
		},
		{
			name:   "scoped package keeps two segments",
			source: `import foo from "@scope/pkg/sub";`,
			want:   []string{"@scope/pkg"},
		},
		{
			name:   "malformed source with an unclosed require yields no matches",
			source: `const x = require("axios" +++ broken syntax here`,
			want:   nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractModules(tc.source)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractModules(%q) = %v, want %v", tc.source, got, tc.want)
			}
		})
	}
}

func TestUnresolvedModulesExcludesBuiltinsAndInstalled(t *testing.T) {
	source := `const fs = require("fs"); const axios = require("axios"); const lodash = require("lodash");`
	installed := map[string]struct{}{"lodash": {}}

	got := UnresolvedModules(source, installed)
	want := []string{"axios"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("UnresolvedModules = %v, want %v", got, want)
	}
}

func TestInstallNameTranslatesKnownMismatch(t *testing.T) {
	if got := InstallName("yaml"); got != "js-yaml" {
		t.Fatalf("InstallName(yaml) = %q, want js-yaml", got)
	}
	if got := InstallName("axios"); got != "axios" {
		t.Fatalf("InstallName(axios) = %q, want axios", got)
	}
}
