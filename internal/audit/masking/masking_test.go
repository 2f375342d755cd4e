package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "****4411", MaskSecret("TR33 0006 1005 1978 6457 8411 4411"))
}

func TestMaskKeysOnlyTouchesListedKeys(t *testing.T) {
	out := MaskKeys(map[string]any{
		"payer_info": "IBAN TR12 3456",
		"amount":     "250.00",
		"nested":     map[string]any{"payer_info": "Istanbul office"},
	}, "payer_info")

	assert.Equal(t, "****3456", out["payer_info"])
	assert.Equal(t, "250.00", out["amount"])
	assert.Equal(t, map[string]any{"payer_info": "****fice"}, out["nested"])
}
