package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStrategyAccepted(t *testing.T) {
	doc := `{
		"name": "Jane Doe",
		"name_variations": ["J. Doe"],
		"search_terms": ["Jane Doe", "Jane Doe minister"],
		"platforms": ["twitter", "linkedin"],
		"regions": ["EU"],
		"time_period": "1 year"
	}`
	assert.NoError(t, Validate("strategy.json", doc))
}

func TestValidateStrategyRejected(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", `{"search_terms":["x"],"platforms":["twitter"]}`},
		{"empty search terms", `{"name":"Jane","search_terms":[],"platforms":["twitter"]}`},
		{"empty platforms", `{"name":"Jane","search_terms":["x"],"platforms":[]}`},
		{"wrong type", `{"name":"Jane","search_terms":"x","platforms":["twitter"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate("strategy.json", tt.doc)
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.NotEmpty(t, ve.Errors)
		})
	}
}

func TestValidateUnknownSchema(t *testing.T) {
	err := Validate("nope.json", `{}`)
	require.Error(t, err)
}
