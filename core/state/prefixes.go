package state

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

var (
	tokenPrefix     = []byte("token/meta/")
	tokenListKey    = ethcrypto.Keccak256([]byte("token/list"))
	balancePrefix   = []byte("token/balance/")
	allowancePrefix = []byte("token/allowance/")
	supplyPrefix    = []byte("token/supply/")

	farmPrefix     = []byte("farm/program/")
	farmListKey    = ethcrypto.Keccak256([]byte("farm/list"))
	positionPrefix = []byte("farm/position/")

	grantPrefix     = []byte("vesting/grant/")
	granteeListKey  = ethcrypto.Keccak256([]byte("vesting/grantees"))
	vestingTotalKey = ethcrypto.Keccak256([]byte("vesting/total"))
)

// hashKey joins a prefix with path segments and hashes the result so every
// stored key has a fixed width.
func hashKey(prefix []byte, parts ...[]byte) []byte {
	buf := append([]byte(nil), prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func tokenKey(symbol string) []byte {
	return hashKey(tokenPrefix, []byte(symbol))
}

func balanceKey(symbol string, addr [20]byte) []byte {
	return hashKey(balancePrefix, []byte(symbol), addr[:])
}

func allowanceKey(symbol string, owner, spender [20]byte) []byte {
	return hashKey(allowancePrefix, []byte(symbol), owner[:], spender[:])
}

func supplyKey(symbol string) []byte {
	return hashKey(supplyPrefix, []byte(symbol))
}

func farmKey(id string) []byte {
	return hashKey(farmPrefix, []byte(id))
}

func positionKey(id string, addr [20]byte) []byte {
	return hashKey(positionPrefix, []byte(id), addr[:])
}

func grantKey(grantee [20]byte) []byte {
	return hashKey(grantPrefix, grantee[:])
}
