package domain

// End is the reserved stage name that terminates a run.
// No stage or tool stage may be registered under this name.
const End = "END"

// Field constants for JSON standardization.
const (
	// KeyRunID is the structured logging key used for the run identifier.
	KeyRunID = "run_id"

	// KeyStage is the structured logging key used for the stage name.
	KeyStage = "stage"
)
