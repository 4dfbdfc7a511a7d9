package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/retail-insights/backend/internal/datastore"
)

func TestCheckValid(t *testing.T) {
	result := &datastore.ExecutionResult{
		Columns: []string{"category", "revenue"},
		Rows:    [][]string{{"Kurta", "21000000"}},
	}
	assert.Equal(t, OutcomeValid, Check(result))
}

func TestCheckEmpty(t *testing.T) {
	// Zero rows with named columns is a legitimate answer, not a failure.
	result := &datastore.ExecutionResult{
		Columns: []string{"category", "revenue"},
	}
	assert.Equal(t, OutcomeEmpty, Check(result))
}

func TestCheckMalformed(t *testing.T) {
	assert.Equal(t, OutcomeMalformed, Check(nil))
	assert.Equal(t, OutcomeMalformed, Check(&datastore.ExecutionResult{}))
}
