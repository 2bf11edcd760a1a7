package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEveryFieldHasCandidatesAndTitle(t *testing.T) {
	for _, f := range AllFields {
		assert.NotEmpty(t, f.Candidates(), "field %s has no candidates", f)
		assert.NotEmpty(t, f.Title(), "field %s has no title", f)
	}
}

func TestCandidatesAreNormalized(t *testing.T) {
	for _, f := range AllFields {
		for _, cand := range f.Candidates() {
			assert.Equal(t, strings.ToLower(cand), cand, "field %s candidate %q is not lowercase", f, cand)
			assert.NotContains(t, cand, " ", "field %s candidate %q contains whitespace", f, cand)
		}
	}
}
