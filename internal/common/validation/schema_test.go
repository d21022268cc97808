package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const turnSchema = `{
	"type": "object",
	"properties": {
		"text": {"type": "string", "minLength": 1, "maxLength": 20},
		"channel": {"type": "string", "enum": ["voice", "chat"]},
		"callerId": {"type": "string", "pattern": "^\\+[0-9]+$"}
	},
	"required": ["text"]
}`

func TestValidateInput(t *testing.T) {
	schema, err := ParseSchema(turnSchema)
	require.NoError(t, err)

	tests := []struct {
		name      string
		input     map[string]interface{}
		valid     bool
		errorCode string
		field     string
	}{
		{"valid", map[string]interface{}{"text": "hello", "channel": "voice", "callerId": "+12175550100"}, true, "", ""},
		{"missing text", map[string]interface{}{"channel": "chat"}, false, "REQUIRED_FIELD_MISSING", "text"},
		{"empty text", map[string]interface{}{"text": ""}, false, "MIN_LENGTH_VIOLATION", "text"},
		{"long text", map[string]interface{}{"text": "this utterance is far too long"}, false, "MAX_LENGTH_VIOLATION", "text"},
		{"wrong type", map[string]interface{}{"text": 42.0}, false, "INVALID_TYPE", "text"},
		{"bad channel", map[string]interface{}{"text": "hi", "channel": "fax"}, false, "INVALID_ENUM_VALUE", "channel"},
		{"bad caller", map[string]interface{}{"text": "hi", "callerId": "unknown"}, false, "PATTERN_MISMATCH", "callerId"},
		{"extra field", map[string]interface{}{"text": "hi", "debug": true}, false, "EXTRA_FIELD", "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateInput(tt.input, schema)
			assert.Equal(t, tt.valid, res.Valid)
			if tt.valid {
				assert.Empty(t, res.GetErrorMessages())
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, tt.errorCode, res.Errors[0].Code)
			assert.True(t, res.HasErrors(tt.field))
		})
	}
}

func TestMustParseSchema_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseSchema("{") })
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("owner@cedargarden.example"))
	assert.False(t, ValidateEmail("owner at cedargarden"))
}
