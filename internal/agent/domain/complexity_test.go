package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateComplexity(t *testing.T) {
	tests := []struct {
		request string
		want    ComplexityTier
	}{
		{"fix typo in README", ComplexitySimple},
		{"rename the helper function", ComplexitySimple},
		{"bump the dependency version", ComplexitySimple},
		{"implement a new REST endpoint for orders", ComplexityMedium},
		{"add retry logic to the HTTP client and write tests for it", ComplexityMedium},
		{"refactor the storage layer to use interfaces", ComplexityComplex},
		{"migrate all files from callbacks to async across the entire codebase", ComplexityComplex},
		{"check this", ComplexitySimple},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateComplexity(tt.request), "request: %s", tt.request)
	}
}

func TestEstimateComplexityNeverReturnsEnterprise(t *testing.T) {
	requests := []string{
		"enterprise migration of everything",
		"rewrite the entire architecture over several days",
		"long running multi hour refactor",
	}
	for _, request := range requests {
		assert.NotEqual(t, ComplexityEnterprise, EstimateComplexity(request))
	}
}

func TestIterationBudgets(t *testing.T) {
	assert.Equal(t, 8, ComplexitySimple.IterationBudget())
	assert.Equal(t, 15, ComplexityMedium.IterationBudget())
	assert.Equal(t, 25, ComplexityComplex.IterationBudget())
	assert.Equal(t, 1000, ComplexityEnterprise.IterationBudget())
	assert.Equal(t, 15, ComplexityTier("bogus").IterationBudget())
}

func TestIsActionRequest(t *testing.T) {
	actions := []string{
		"fix the failing login test",
		"add pagination to the users endpoint",
		"please update the config parser to support yaml",
	}
	for _, request := range actions {
		assert.True(t, IsActionRequest(request), "expected action: %s", request)
	}

	questions := []string{
		"what does the scheduler do?",
		"how does the retry logic work",
		"explain the session layout",
		"is there a cache in front of the database?",
	}
	for _, request := range questions {
		assert.False(t, IsActionRequest(request), "expected question: %s", request)
	}

	assert.False(t, IsActionRequest(""))
}
