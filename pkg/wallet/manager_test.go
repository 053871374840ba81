package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/kyberswap-interface-sub001/config"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

func TestManager_Wallet(t *testing.T) {
	m, err := NewManager(config.WalletConfig{})
	require.NoError(t, err)
	defer m.Close()

	w := m.Wallet()
	assert.False(t, w.Connected(types.FamilyEVM))
	assert.False(t, w.Connected(types.FamilyBitcoin))
	assert.Empty(t, m.SupportedFamilies())

	m, err = NewManager(config.WalletConfig{
		EVM:     config.EVMConfig{PrivateKey: testKey},
		Bitcoin: config.BitcoinConfig{Host: "127.0.0.1:8332", Address: testBTCAddress},
	})
	require.NoError(t, err)
	defer m.Close()

	w = m.Wallet()
	assert.True(t, w.Connected(types.FamilyEVM))
	assert.False(t, w.Connected(types.FamilySolana))
	assert.Equal(t, testBTCAddress, w.Address(types.FamilyBitcoin))
	assert.Equal(t, []types.ChainFamily{types.FamilyEVM, types.FamilyBitcoin}, m.SupportedFamilies())
}

func TestManager_InvalidKey(t *testing.T) {
	_, err := NewManager(config.WalletConfig{EVM: config.EVMConfig{PrivateKey: "0x1234"}})
	assert.ErrorContains(t, err, "evm wallet")
}
