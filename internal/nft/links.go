package nft

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AssetURL formats the marketplace page of a token as <base>/<contract>/<tokenID>.
func AssetURL(base string, contract common.Address, tokenID string) string {
	return strings.TrimRight(base, "/") + "/" + contract.Hex() + "/" + tokenID
}

// TxURL formats the block explorer page of a transaction.
func TxURL(explorer string, hash common.Hash) string {
	return strings.TrimRight(explorer, "/") + "/tx/" + hash.Hex()
}
