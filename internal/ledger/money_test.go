package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "500.00", FormatAmount(50_000))
	assert.Equal(t, "12,345.50", FormatAmount(1_234_550))
	assert.Equal(t, "-12,345.50", FormatAmount(-1_234_550))
}
