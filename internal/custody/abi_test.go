package custody

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestABIParsesEveryCustodyMethod(t *testing.T) {
	parsed, err := ABI()
	require.NoError(t, err)

	for _, method := range []string{
		"deposit", "withdraw", "withdrawAll", "withdrawTokens", "balanceOf",
		"feeBps", "executeBuy", "executeSell", "setOperator", "setFee", "setFeeReceiver",
		"setPaused", "allowPair",
	} {
		_, ok := parsed.Methods[method]
		assert.Truef(t, ok, "expected method %s in parsed ABI", method)
	}
}
