// Package validate inspects execution output before answer synthesis.
package validate

import "github.com/retail-insights/backend/internal/datastore"

type Outcome string

const (
	// OutcomeValid means the result has columns and at least one row.
	OutcomeValid Outcome = "valid"
	// OutcomeEmpty means a well-formed result with zero rows. This is a
	// legitimate analytics answer, phrased differently downstream, never an
	// error.
	OutcomeEmpty Outcome = "empty"
	// OutcomeMalformed means the result carries no column metadata, so there
	// is nothing the synthesizer could truthfully summarize.
	OutcomeMalformed Outcome = "malformed"
)

func Check(result *datastore.ExecutionResult) Outcome {
	if result == nil || len(result.Columns) == 0 {
		return OutcomeMalformed
	}
	if len(result.Rows) == 0 {
		return OutcomeEmpty
	}
	return OutcomeValid
}
