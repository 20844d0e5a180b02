package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "****", mask("abc"))
	assert.Equal(t, "2-12****", mask("2-123456-abcdef"))
}
