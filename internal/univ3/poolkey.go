package univ3

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/winverse2755/settlekit/internal/domain"
)

// PoolKey is the canonical five-field pool identity tuple. Its encoding is a
// serialization contract with the verifying counterparty: fixed field order,
// each field padded to a 32-byte word, token addresses sorted ascending.
type PoolKey struct {
	Token0      common.Address
	Token1      common.Address
	Fee         domain.FeeTier
	TickSpacing int
	Extension   common.Address
}

// NewPoolKey builds a PoolKey for the pair and fee tier, normalizing token
// order so the same pair always yields the same key.
func NewPoolKey(pair domain.PairSpec, fee domain.FeeTier) PoolKey {
	t0, t1 := pair.Token0, pair.Token1
	if bytes.Compare(t0.Bytes(), t1.Bytes()) > 0 {
		t0, t1 = t1, t0
	}
	return PoolKey{
		Token0:      t0,
		Token1:      t1,
		Fee:         fee,
		TickSpacing: fee.TickSpacing(),
		Extension:   pair.Extension,
	}
}

// Encode serializes the key as five 32-byte words in fixed order: token0,
// token1, fee, tickSpacing (two's complement, sign-extended), extension.
func (k PoolKey) Encode() []byte {
	buf := make([]byte, 0, 5*32)
	buf = appendAddressWord(buf, k.Token0)
	buf = appendAddressWord(buf, k.Token1)
	buf = appendUint64Word(buf, uint64(k.Fee))
	buf = appendIntWord(buf, int64(k.TickSpacing))
	buf = appendAddressWord(buf, k.Extension)
	return buf
}

// ID returns the pool identifier: keccak256 over the canonical encoding.
func (k PoolKey) ID() domain.PoolID {
	var id domain.PoolID
	copy(id[:], crypto.Keccak256(k.Encode()))
	return id
}

// Validate checks the key for structural problems before it is handed to the
// execution gateway.
func (k PoolKey) Validate() error {
	if k.Token0 == k.Token1 {
		return fmt.Errorf("univ3: pool key: identical tokens %s", k.Token0.Hex())
	}
	if bytes.Compare(k.Token0.Bytes(), k.Token1.Bytes()) > 0 {
		return fmt.Errorf("univ3: pool key: tokens out of order")
	}
	if k.TickSpacing <= 0 {
		return fmt.Errorf("univ3: pool key: tick spacing %d", k.TickSpacing)
	}
	return nil
}

func appendAddressWord(buf []byte, addr common.Address) []byte {
	var word [32]byte
	copy(word[12:], addr.Bytes())
	return append(buf, word[:]...)
}

func appendUint64Word(buf []byte, v uint64) []byte {
	var word [32]byte
	binary.BigEndian.PutUint64(word[24:], v)
	return append(buf, word[:]...)
}

// appendIntWord writes a signed value as a 256-bit two's complement word.
func appendIntWord(buf []byte, v int64) []byte {
	var word [32]byte
	if v < 0 {
		for i := range word {
			word[i] = 0xff
		}
	}
	binary.BigEndian.PutUint64(word[24:], uint64(v))
	return append(buf, word[:]...)
}
