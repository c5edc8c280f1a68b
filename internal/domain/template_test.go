package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateFromShopSnapshotsItems(t *testing.T) {
	shop := newTestPlayerShop(t)
	item := newTestItem(t, 12)
	require.NoError(t, item.SetSellPrice(6))
	require.NoError(t, shop.AddItem(item))

	tpl, err := TemplateFromShop(shop, "Stall Preset", "steve", "food")
	require.NoError(t, err)

	require.Len(t, tpl.Items, 1)
	assert.Equal(t, "iron_ingot", tpl.Items[0].Stack.Type)
	assert.Equal(t, 12, tpl.Items[0].Stock)
	require.NotNil(t, tpl.Items[0].SellPrice)
	assert.InDelta(t, 6, *tpl.Items[0].SellPrice, 1e-9)
	assert.False(t, tpl.Admin)
	assert.Equal(t, 1, tpl.Version)

	// Template items are independent of the live shop.
	require.NoError(t, item.SetBuyPrice(500))
	assert.InDelta(t, 10, tpl.Items[0].BuyPrice, 1e-9)
}

func TestTemplateEditBumpsVersion(t *testing.T) {
	tpl, err := NewTemplate("Stall Preset", "starter goods", "steve", "food", false, nil)
	require.NoError(t, err)

	items := []TemplateItem{{Stack: ItemStack{Type: "bread", Quantity: 1}, BuyPrice: 3, Currency: "coins", Stock: 64}}
	require.NoError(t, tpl.Edit("Stall Preset v2", "more goods", items))
	assert.Equal(t, 2, tpl.Version)
	assert.Len(t, tpl.Items, 1)

	// Failed edits leave the template untouched.
	err = tpl.Edit("ab", "", nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 2, tpl.Version)
	assert.Equal(t, "Stall Preset v2", tpl.Name)
}

func TestRebuildTemplateValidates(t *testing.T) {
	_, err := NewTemplate("x", "", "steve", "misc", true, nil)
	assert.ErrorIs(t, err, ErrValidation)

	bad := []TemplateItem{{Stack: ItemStack{Type: "bread", Quantity: 1}, BuyPrice: 0, Currency: "coins"}}
	_, err = NewTemplate("Stall Preset", "", "steve", "misc", true, bad)
	assert.ErrorIs(t, err, ErrValidation)
}
