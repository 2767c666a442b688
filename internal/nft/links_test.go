package nft

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestAssetURL(t *testing.T) {
	const want = "https://testnets.opensea.io/assets/0xCB0Cae20BB14412dB346Dd96Ce75592a2911c5D5/8"

	assert.Equal(t, want, AssetURL("https://testnets.opensea.io/assets", testContract, "8"))
	assert.Equal(t, want, AssetURL("https://testnets.opensea.io/assets/", testContract, "8"))
}

func TestTxURL(t *testing.T) {
	hash := common.HexToHash("0xabc")
	assert.Equal(t, "https://rinkeby.etherscan.io/tx/"+hash.Hex(), TxURL("https://rinkeby.etherscan.io/", hash))
}
