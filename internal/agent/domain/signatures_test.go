package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fixpoint/internal/agent/ports"
)

func TestDefaultNormalizerCategories(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		file    string
		pattern string
	}{
		{"node module", "Error: Cannot find module 'express'", "", PatternModuleNotFound},
		{"python module", "ModuleNotFoundError: No module named 'requests'", "", PatternModuleNotFound},
		{"go package", "main.go:3:8: cannot find package", "main.go", PatternModuleNotFound},
		{"ts syntax", "src/app.ts(12,5): error TS1005: unexpected token", "src/app.ts", PatternSyntaxError},
		{"py syntax", "SyntaxError: invalid syntax", "", PatternSyntaxError},
		{"ts type", "src/app.ts(3,1): Type 'string' is not assignable to type 'number'", "src/app.ts", PatternTypeError},
		{"go type", "main.go:10:2: mismatched types int and string", "main.go", PatternTypeError},
		{"go import", "main.go:5:2: imported and not used: \"fmt\"", "main.go", PatternImportError},
		{"go undefined", "parser.go:22:9: undefined: tokenize", "parser.go", PatternUndefined},
		{"py name", "NameError: name 'foo' is not defined", "", PatternUndefined},
		{"go test", "--- FAIL: TestParse (0.00s)", "", PatternTestFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, pattern := DefaultNormalizer(tt.line)
			assert.Equal(t, tt.file, file)
			assert.Equal(t, tt.pattern, pattern)
		})
	}
}

func TestDefaultNormalizerStableAcrossPositions(t *testing.T) {
	_, first := DefaultNormalizer("weird failure at offset 120 in block 4")
	_, second := DefaultNormalizer("weird failure at offset 995 in block 7")
	assert.Equal(t, first, second, "volatile numbers must not change the pattern")
}

func TestExtractSignaturesSkipsSuccessesAndDedupes(t *testing.T) {
	results := []ports.VerificationResult{
		{Kind: ports.VerifyTypecheck, Success: true, Errors: []string{"should be ignored"}},
		{
			Kind:    ports.VerifyBuild,
			Success: false,
			Errors: []string{
				"main.go:10: undefined: foo",
				"main.go:22: undefined: foo",
			},
		},
	}

	signatures := ExtractSignatures(results, 3)
	assert.Len(t, signatures, 1)
	assert.Equal(t, ports.VerifyBuild, signatures[0].Kind)
	assert.Equal(t, "main.go", signatures[0].File)
	assert.Equal(t, PatternUndefined, signatures[0].Pattern)
	assert.Equal(t, 3, signatures[0].Iteration)
}

func TestExtractSignaturesWithCustomNormalizer(t *testing.T) {
	custom := func(line string) (string, string) {
		return "fixed.go", "custom_tag"
	}
	results := []ports.VerificationResult{
		{Kind: ports.VerifyLint, Success: false, Errors: []string{"anything", "else"}},
	}

	signatures := ExtractSignaturesWith(custom, results, 1)
	assert.Len(t, signatures, 1)
	assert.Equal(t, "custom_tag", signatures[0].Pattern)
}

func TestSignatureMatchesIgnoresIteration(t *testing.T) {
	a := ErrorSignature{Kind: ports.VerifyTest, File: "a.go", Pattern: "p", Iteration: 1}
	b := ErrorSignature{Kind: ports.VerifyTest, File: "a.go", Pattern: "p", Iteration: 9}
	assert.True(t, a.Matches(b))

	c := ErrorSignature{Kind: ports.VerifyTest, File: "b.go", Pattern: "p", Iteration: 1}
	assert.False(t, a.Matches(c))
}
