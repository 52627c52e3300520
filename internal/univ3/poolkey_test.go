package univ3

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/winverse2755/settlekit/internal/domain"
)

var (
	testTokenA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testTokenB = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// TestPoolKeyEncodeGolden pins the serialization contract: five 32-byte words
// in fixed order with fixed-width padding. Any change here breaks pool ID
// agreement with the verifying counterparty.
func TestPoolKeyEncodeGolden(t *testing.T) {
	key := NewPoolKey(domain.PairSpec{Token0: testTokenA, Token1: testTokenB}, domain.FeeTierLow)
	enc := key.Encode()
	require.Len(t, enc, 160)

	want := "" +
		"0000000000000000000000001111111111111111111111111111111111111111" + // token0
		"0000000000000000000000002222222222222222222222222222222222222222" + // token1
		"00000000000000000000000000000000000000000000000000000000000001f4" + // fee 500
		"000000000000000000000000000000000000000000000000000000000000000a" + // tickSpacing 10
		"0000000000000000000000000000000000000000000000000000000000000000" // extension
	require.Equal(t, want, common.Bytes2Hex(enc))
}

func TestPoolKeyNegativeTickSpacingEncoding(t *testing.T) {
	key := PoolKey{Token0: testTokenA, Token1: testTokenB, Fee: 500, TickSpacing: -1}
	enc := key.Encode()
	// Word 4 (bytes 96..128) holds tickSpacing as 256-bit two's complement.
	require.Equal(t,
		"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		common.Bytes2Hex(enc[96:128]))
}

func TestPoolKeyIDDeterministic(t *testing.T) {
	pair := domain.PairSpec{Token0: testTokenA, Token1: testTokenB}
	a := NewPoolKey(pair, domain.FeeTierMedium).ID()
	b := NewPoolKey(pair, domain.FeeTierMedium).ID()
	require.Equal(t, a, b)
	require.False(t, a.IsZero())
}

func TestPoolKeyIDSensitiveToEveryField(t *testing.T) {
	base := NewPoolKey(domain.PairSpec{Token0: testTokenA, Token1: testTokenB}, domain.FeeTierLow)
	baseID := base.ID()

	variants := []PoolKey{
		{Token0: testTokenB, Token1: testTokenA, Fee: base.Fee, TickSpacing: base.TickSpacing},
		{Token0: base.Token0, Token1: base.Token1, Fee: domain.FeeTierMedium, TickSpacing: base.TickSpacing},
		{Token0: base.Token0, Token1: base.Token1, Fee: base.Fee, TickSpacing: 60},
		{Token0: base.Token0, Token1: base.Token1, Fee: base.Fee, TickSpacing: base.TickSpacing,
			Extension: common.HexToAddress("0x3333333333333333333333333333333333333333")},
	}
	for i, v := range variants {
		require.NotEqual(t, baseID, v.ID(), "variant %d must change the pool ID", i)
	}
}

func TestNewPoolKeySortsTokens(t *testing.T) {
	// Pair given in reverse order normalizes to the same key.
	forward := NewPoolKey(domain.PairSpec{Token0: testTokenA, Token1: testTokenB}, domain.FeeTierLow)
	reversed := NewPoolKey(domain.PairSpec{Token0: testTokenB, Token1: testTokenA}, domain.FeeTierLow)
	require.Equal(t, forward.ID(), reversed.ID())
	require.NoError(t, forward.Validate())
}

func TestPoolKeyValidate(t *testing.T) {
	bad := PoolKey{Token0: testTokenA, Token1: testTokenA, Fee: 500, TickSpacing: 10}
	require.Error(t, bad.Validate())

	outOfOrder := PoolKey{Token0: testTokenB, Token1: testTokenA, Fee: 500, TickSpacing: 10}
	require.Error(t, outOfOrder.Validate())

	zeroSpacing := PoolKey{Token0: testTokenA, Token1: testTokenB, Fee: 500, TickSpacing: 0}
	require.Error(t, zeroSpacing.Validate())
}
