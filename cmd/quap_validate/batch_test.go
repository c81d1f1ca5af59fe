package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quapdata/quap-validate/internal/violation"
)

func TestExitSeverity_Ordering(t *testing.T) {
	// Most severe first; ok last.
	ordered := []int{
		violation.ExitCorrupted,
		violation.ExitSchema,
		violation.ExitTypeValues,
		violation.ExitDuplicates,
		violation.ExitOther,
		violation.ExitOK,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, exitSeverity(ordered[i-1]), exitSeverity(ordered[i]),
			"exit %d should outrank exit %d", ordered[i-1], ordered[i])
	}
}
