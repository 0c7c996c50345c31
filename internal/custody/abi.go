package custody

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// custodyABIJSON is the ABI fragment OnChain calls against a deployed
// custody contract, covering every method the Custody interface exposes.
const custodyABIJSON = `[
	{"constant":false,"inputs":[{"name":"depositor","type":"address"},{"name":"amountWei","type":"uint256"}],"name":"deposit","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"caller","type":"address"},{"name":"amountWei","type":"uint256"}],"name":"withdraw","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"caller","type":"address"}],"name":"withdrawAll","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"caller","type":"address"},{"name":"token","type":"address"}],"name":"withdrawTokens","outputs":[],"type":"function"},
	{"constant":true,"inputs":[{"name":"user","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"feeBps","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"user","type":"address"},{"name":"pair","type":"address"},{"name":"ethIn","type":"uint256"},{"name":"minTokensOut","type":"uint256"},{"name":"deadline","type":"uint256"}],"name":"executeBuy","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"user","type":"address"},{"name":"pair","type":"address"},{"name":"tokenIn","type":"uint256"},{"name":"minEthOut","type":"uint256"},{"name":"deadline","type":"uint256"}],"name":"executeSell","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"operator","type":"address"}],"name":"setOperator","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"feeBps","type":"uint256"}],"name":"setFee","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"receiver","type":"address"}],"name":"setFeeReceiver","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"paused","type":"bool"}],"name":"setPaused","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"pair","type":"address"},{"name":"allowed","type":"bool"}],"name":"allowPair","outputs":[],"type":"function"}
]`

// ABI parses the standard custody contract ABI OnChain expects.
func ABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(custodyABIJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse custody abi: %w", err)
	}
	return parsed, nil
}
