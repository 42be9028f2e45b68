package token

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specs() []Spec {
	return []Spec{
		{ID: "WXDAI", Ticker: "WXDAI", Address: common.HexToAddress("0x01"), Magnitude: 18, BaseCurrency: "gnosis"},
		{ID: "armmWXDAI", Ticker: "armmWXDAI", Address: common.HexToAddress("0x02"), Magnitude: 8, UnderlyingID: "WXDAI", BaseCurrency: "gnosis"},
		{ID: "USDC", Ticker: "USDC", Address: common.HexToAddress("0x03"), Magnitude: 6, BaseCurrency: "gnosis", Delisted: true},
	}
}

func TestNewStaticRegistryResolvesUnderlying(t *testing.T) {
	reg, err := NewStaticRegistry(specs())
	require.NoError(t, err)

	armm, err := reg.ByID("armmWXDAI")
	require.NoError(t, err)
	assert.Equal(t, Derivative, armm.Kind)
	require.NotNil(t, armm.Underlying)
	assert.Equal(t, "WXDAI", armm.Underlying.ID)

	wxdai, err := reg.ByID("WXDAI")
	require.NoError(t, err)
	assert.Equal(t, Plain, wxdai.Kind)
	assert.Nil(t, wxdai.Underlying)
}

func TestNewStaticRegistryUnknownUnderlying(t *testing.T) {
	_, err := NewStaticRegistry([]Spec{
		{ID: "armmGNO", Magnitude: 8, UnderlyingID: "GNO", BaseCurrency: "gnosis"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownUnderlying)
}

func TestNewStaticRegistryDuplicateID(t *testing.T) {
	_, err := NewStaticRegistry([]Spec{
		{ID: "WXDAI", Magnitude: 18},
		{ID: "WXDAI", Magnitude: 18},
	})
	require.Error(t, err)
}

func TestRegistryDelistedFiltering(t *testing.T) {
	reg, err := NewStaticRegistry(specs())
	require.NoError(t, err)

	assert.Len(t, reg.Tokens(ListOptions{}), 2)
	assert.Len(t, reg.Tokens(ListOptions{IncludeDelisted: true}), 3)
	assert.Len(t, reg.TokensFor("gnosis", ListOptions{}), 2)
	assert.Empty(t, reg.TokensFor("ethereum", ListOptions{IncludeDelisted: true}))
}

func TestRegistryByIDUnknown(t *testing.T) {
	reg, err := NewStaticRegistry(specs())
	require.NoError(t, err)

	_, err = reg.ByID("GNO")
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestRegistryRateFeedDefaultsToAddress(t *testing.T) {
	reg, err := NewStaticRegistry([]Spec{
		{ID: "A", Address: common.HexToAddress("0x0a"), Magnitude: 18},
		{ID: "B", Address: common.HexToAddress("0x0b"), Magnitude: 18, RateFeed: "reserve-b"},
	})
	require.NoError(t, err)

	a, _ := reg.ByID("A")
	assert.Equal(t, common.HexToAddress("0x0a").Hex(), a.RateFeed)
	b, _ := reg.ByID("B")
	assert.Equal(t, "reserve-b", b.RateFeed)
}
