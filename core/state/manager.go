package state

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"granary/native/farm"
	"granary/native/token"
	"granary/native/vesting"
	"granary/storage"
)

// Manager persists engine state in the node's key-value store. Values are
// RLP-encoded under keccak-hashed path keys; every read decodes a fresh
// copy, so callers may mutate results without touching stored state.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) read(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) write(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// readAmount decodes a stored big.Int, reporting zero for absent keys so
// balance-shaped reads never hand engines a nil.
func (m *Manager) readAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.read(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) writeAmount(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return m.write(key, amount)
}

func (m *Manager) readStringList(key []byte) ([]string, error) {
	var list []string
	ok, err := m.read(key, &list)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	return list, nil
}

// --- token ledger state ---

// TokenGet loads a registered token's metadata.
func (m *Manager) TokenGet(symbol string) (*token.Token, bool, error) {
	record := new(token.Token)
	ok, err := m.read(tokenKey(symbol), record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}

// TokenPut stores a token's metadata under its symbol.
func (m *Manager) TokenPut(record *token.Token) error {
	return m.write(tokenKey(record.Symbol), record)
}

// TokenListGet returns the registered symbols in registration order.
func (m *Manager) TokenListGet() ([]string, error) {
	return m.readStringList(tokenListKey)
}

// TokenListPut stores the symbol index.
func (m *Manager) TokenListPut(symbols []string) error {
	return m.write(tokenListKey, symbols)
}

// TokenBalanceGet returns an account balance; absent balances read as zero.
func (m *Manager) TokenBalanceGet(symbol string, addr [20]byte) (*big.Int, error) {
	return m.readAmount(balanceKey(symbol, addr))
}

// TokenBalancePut stores an account balance.
func (m *Manager) TokenBalancePut(symbol string, addr [20]byte, amount *big.Int) error {
	return m.writeAmount(balanceKey(symbol, addr), amount)
}

// TokenAllowanceGet returns a spender allowance; absent reads as zero.
func (m *Manager) TokenAllowanceGet(symbol string, owner, spender [20]byte) (*big.Int, error) {
	return m.readAmount(allowanceKey(symbol, owner, spender))
}

// TokenAllowancePut stores a spender allowance.
func (m *Manager) TokenAllowancePut(symbol string, owner, spender [20]byte, amount *big.Int) error {
	return m.writeAmount(allowanceKey(symbol, owner, spender), amount)
}

// TokenSupplyGet returns a token's circulating supply.
func (m *Manager) TokenSupplyGet(symbol string) (*big.Int, error) {
	return m.readAmount(supplyKey(symbol))
}

// TokenSupplyPut stores a token's circulating supply.
func (m *Manager) TokenSupplyPut(symbol string, amount *big.Int) error {
	return m.writeAmount(supplyKey(symbol), amount)
}

// --- farm state ---

// FarmGet loads a reward program by ID.
func (m *Manager) FarmGet(id string) (*farm.Farm, bool, error) {
	record := new(farm.Farm)
	ok, err := m.read(farmKey(id), record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}

// FarmPut stores a reward program under its ID.
func (m *Manager) FarmPut(record *farm.Farm) error {
	return m.write(farmKey(record.ID), record)
}

// FarmListGet returns the program IDs in creation order.
func (m *Manager) FarmListGet() ([]string, error) {
	return m.readStringList(farmListKey)
}

// FarmListPut stores the program index.
func (m *Manager) FarmListPut(ids []string) error {
	return m.write(farmListKey, ids)
}

// FarmPositionGet loads an account's position in a program.
func (m *Manager) FarmPositionGet(id string, addr [20]byte) (*farm.Position, bool, error) {
	record := new(farm.Position)
	ok, err := m.read(positionKey(id, addr), record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}

// FarmPositionPut stores an account's position in a program.
func (m *Manager) FarmPositionPut(id string, position *farm.Position) error {
	return m.write(positionKey(id, position.Account), position)
}

// --- vesting state ---

// VestingGrantGet loads a grantee's active grant.
func (m *Manager) VestingGrantGet(grantee [20]byte) (*vesting.Grant, bool, error) {
	record := new(vesting.Grant)
	ok, err := m.read(grantKey(grantee), record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}

// VestingGrantPut stores a grant under its grantee.
func (m *Manager) VestingGrantPut(grant *vesting.Grant) error {
	return m.write(grantKey(grant.Grantee), grant)
}

// VestingGrantDelete removes a grantee's grant record.
func (m *Manager) VestingGrantDelete(grantee [20]byte) error {
	return m.db.Delete(grantKey(grantee))
}

// VestingGranteesGet returns the active grantees in grant order.
func (m *Manager) VestingGranteesGet() ([][20]byte, error) {
	var grantees [][20]byte
	ok, err := m.read(granteeListKey, &grantees)
	if err != nil {
		return nil, err
	}
	if !ok {
		return [][20]byte{}, nil
	}
	return grantees, nil
}

// VestingGranteesPut stores the grantee index.
func (m *Manager) VestingGranteesPut(grantees [][20]byte) error {
	return m.write(granteeListKey, grantees)
}

// VestingTotalGet returns the engine-wide outstanding vesting total.
func (m *Manager) VestingTotalGet() (*big.Int, error) {
	return m.readAmount(vestingTotalKey)
}

// VestingTotalPut stores the engine-wide outstanding vesting total.
func (m *Manager) VestingTotalPut(total *big.Int) error {
	return m.writeAmount(vestingTotalKey, total)
}
