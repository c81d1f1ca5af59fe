package violation

// ExitCode values mirror the contract consumed by automation around the
// validator. They are deliberately stable.
const (
	ExitOK         = 0
	ExitCorrupted  = 2
	ExitSchema     = 3
	ExitTypeValues = 4
	ExitDuplicates = 5
	ExitOther      = 6
)

// Aggregator accumulates violations in arrival order with a storage cap.
// Once MaxStored error-severity violations are retained, further ones are
// counted per kind but not stored, bounding memory on pathologically dirty
// files while keeping counts exact. An Aggregator is owned by a single run
// and is not safe for concurrent use.
type Aggregator struct {
	maxStored int
	stored    []Violation
	counts    map[Kind]int
	warnings  []Violation
	truncated bool
	internal  bool
}

// DefaultMaxStored bounds the violation sample kept verbatim per run.
const DefaultMaxStored = 2000

// NewAggregator returns an aggregator retaining at most maxStored violations.
// A non-positive maxStored selects DefaultMaxStored.
func NewAggregator(maxStored int) *Aggregator {
	if maxStored <= 0 {
		maxStored = DefaultMaxStored
	}
	return &Aggregator{
		maxStored: maxStored,
		counts:    make(map[Kind]int),
	}
}

// Add records a violation. Warning-severity violations are kept on a separate
// track and never counted toward severity classification.
func (a *Aggregator) Add(v Violation) {
	if v.Severity == SeverityWarning {
		if len(a.warnings) < a.maxStored {
			a.warnings = append(a.warnings, v)
		}
		return
	}
	a.counts[v.Kind]++
	if len(a.stored) < a.maxStored {
		a.stored = append(a.stored, v)
	} else {
		a.truncated = true
	}
}

// MarkInternalFailure flags the run as having hit a failure outside the
// violation taxonomy (e.g. a caller-imposed timeout). It forces ExitOther.
func (a *Aggregator) MarkInternalFailure() { a.internal = true }

// Violations returns the stored sample in arrival order.
func (a *Aggregator) Violations() []Violation { return a.stored }

// Warnings returns the stored warning sample in arrival order.
func (a *Aggregator) Warnings() []Violation { return a.warnings }

// Counts returns exact per-kind totals, including violations dropped by the
// storage cap.
func (a *Aggregator) Counts() map[Kind]int {
	out := make(map[Kind]int, len(a.counts))
	for k, n := range a.counts {
		out[k] = n
	}
	return out
}

// Total returns the exact number of error-severity violations recorded.
func (a *Aggregator) Total() int {
	n := 0
	for _, c := range a.counts {
		n += c
	}
	return n
}

// Truncated reports whether the storage cap dropped any violation.
func (a *Aggregator) Truncated() bool { return a.truncated }

// Has reports whether at least one violation of the given kind was recorded.
func (a *Aggregator) Has(kind Kind) bool { return a.counts[kind] > 0 }

// ExitCode classifies the run by the maximum-priority violation kind present:
// corruption outranks schema errors, which outrank the four value-level kinds
// (tied among themselves), which outrank duplicates.
func (a *Aggregator) ExitCode() int {
	if a.internal {
		return ExitOther
	}
	switch {
	case a.Has(KindCorruption):
		return ExitCorrupted
	case a.Has(KindSchema):
		return ExitSchema
	case a.Has(KindType) || a.Has(KindNull) || a.Has(KindEnum) || a.Has(KindRange):
		return ExitTypeValues
	case a.Has(KindDuplicate):
		return ExitDuplicates
	}
	return ExitOK
}

// OK reports whether the run recorded no error-severity violations and no
// internal failure.
func (a *Aggregator) OK() bool { return !a.internal && a.Total() == 0 }
