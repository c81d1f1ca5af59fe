package violation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_EmptyIsOK(t *testing.T) {
	agg := NewAggregator(0)
	assert.True(t, agg.OK())
	assert.Equal(t, ExitOK, agg.ExitCode())
	assert.Empty(t, agg.Violations())
	assert.Zero(t, agg.Total())
}

func TestAggregator_SeverityPriority(t *testing.T) {
	tests := []struct {
		name  string
		kinds []Kind
		want  int
	}{
		{"corruption beats everything", []Kind{KindDuplicate, KindSchema, KindCorruption, KindType}, ExitCorrupted},
		{"schema beats values", []Kind{KindNull, KindSchema, KindDuplicate}, ExitSchema},
		{"type beats duplicates", []Kind{KindDuplicate, KindType}, ExitTypeValues},
		{"null beats duplicates", []Kind{KindDuplicate, KindNull}, ExitTypeValues},
		{"enum beats duplicates", []Kind{KindEnum, KindDuplicate}, ExitTypeValues},
		{"range beats duplicates", []Kind{KindRange, KindDuplicate}, ExitTypeValues},
		{"duplicates alone", []Kind{KindDuplicate}, ExitDuplicates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(0)
			for _, k := range tt.kinds {
				agg.Add(New(k, "c", "msg"))
			}
			assert.Equal(t, tt.want, agg.ExitCode())
			assert.False(t, agg.OK())
		})
	}
}

func TestAggregator_CapStoresSampleButCountsAll(t *testing.T) {
	agg := NewAggregator(5)
	for i := 0; i < 20; i++ {
		agg.Add(NewAt(KindType, "age", int64(i), fmt.Sprintf("bad value %d", i)))
	}
	require.Len(t, agg.Violations(), 5)
	assert.Equal(t, 20, agg.Counts()[KindType])
	assert.Equal(t, 20, agg.Total())
	assert.True(t, agg.Truncated())
	// Sample preserves arrival order.
	assert.Equal(t, int64(0), *agg.Violations()[0].RowIndex)
	assert.Equal(t, int64(4), *agg.Violations()[4].RowIndex)
}

func TestAggregator_WarningsDoNotAffectExitCode(t *testing.T) {
	agg := NewAggregator(0)
	agg.Add(NewWarning(KindSchema, "extra_col", "undeclared column"))
	assert.True(t, agg.OK())
	assert.Equal(t, ExitOK, agg.ExitCode())
	assert.Len(t, agg.Warnings(), 1)
	assert.Zero(t, agg.Total())
}

func TestAggregator_InternalFailureForcesExitOther(t *testing.T) {
	agg := NewAggregator(0)
	agg.Add(New(KindDuplicate, "id", "dup"))
	agg.MarkInternalFailure()
	assert.Equal(t, ExitOther, agg.ExitCode())
	assert.False(t, agg.OK())
}

func TestViolation_String(t *testing.T) {
	v := NewAt(KindRange, "score", 7, "value 12 above max 10")
	assert.Equal(t, "RangeError(score@7): value 12 above max 10", v.String())

	v2 := New(KindSchema, "id", "required column missing")
	assert.Equal(t, "SchemaError(id): required column missing", v2.String())

	v3 := New(KindCorruption, "", "truncated file")
	assert.Equal(t, "CorruptionError: truncated file", v3.String())
}
