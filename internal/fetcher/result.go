package fetcher

// Status tags the variant of an Outcome.
type Status string

const (
	// StatusSuccess means a non-empty table was written to Path.
	StatusSuccess Status = "success"
	// StatusEmpty means the provider answered with no rows. Nothing was written.
	StatusEmpty Status = "empty"
	// StatusFailure means every attempt failed, or the table could not be persisted.
	StatusFailure Status = "failure"
)

// Outcome is the result of fetching one symbol. It is produced once per
// symbol per run and is only logged, never persisted.
type Outcome struct {
	Symbol string
	Status Status

	// Rows and Path are set on success.
	Rows int
	Path string

	// Attempts is the number of retrievals performed.
	Attempts int

	// Err holds the last error of a failure.
	Err error
}

// Summary counts outcomes by status.
type Summary struct {
	Success int
	Empty   int
	Failure int
}

// Summarize tallies outcomes.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case StatusSuccess:
			s.Success++
		case StatusEmpty:
			s.Empty++
		default:
			s.Failure++
		}
	}
	return s
}

// Total is the number of outcomes counted.
func (s Summary) Total() int {
	return s.Success + s.Empty + s.Failure
}
