package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAccessID(t *testing.T) {
	assert.NoError(t, ValidateAccessID("demo"))
	assert.NoError(t, ValidateAccessID(strings.Repeat("a", 64)))
	assert.Error(t, ValidateAccessID(""))
	assert.Error(t, ValidateAccessID(strings.Repeat("a", 65)))
}

func TestValidateQuestion(t *testing.T) {
	assert.NoError(t, ValidateQuestion("how many participants?"))
	assert.NoError(t, ValidateQuestion(strings.Repeat("q", 100000)))
	assert.Error(t, ValidateQuestion(""))
	assert.Error(t, ValidateQuestion(strings.Repeat("q", 100001)))
	assert.Error(t, ValidateQuestion("bad\xff\xfe"))
}

func TestValidatePersona(t *testing.T) {
	assert.NoError(t, ValidatePersona(""))
	assert.NoError(t, ValidatePersona("Focus on pricing."))
	assert.Error(t, ValidatePersona(strings.Repeat("p", 8193)))
	assert.Error(t, ValidatePersona("bad\xff"))
}

func TestValidateTemperature(t *testing.T) {
	assert.NoError(t, ValidateTemperature(0.0))
	assert.NoError(t, ValidateTemperature(0.2))
	assert.NoError(t, ValidateTemperature(1.0))
	assert.Error(t, ValidateTemperature(-0.1))
	assert.Error(t, ValidateTemperature(1.1))
}
