package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchURL(t *testing.T) {
	profiles := DefaultRetailers(DefaultLocation)

	assert.Equal(t, "https://www.walmart.ca/search?q=orange%20juice", profiles["walmart"].BuildSearchURL("orange juice"))
	assert.Equal(t, "https://www.realcanadiansuperstore.ca/search?search-bar=orange+juice", profiles["superstore"].BuildSearchURL("orange juice"))
	assert.Equal(t, "https://www.sobeys.com/?query=2%25+milk&tab=products", profiles["sobeys"].BuildSearchURL(" 2% milk "))
}

func TestDefaultRetailersSeedLocation(t *testing.T) {
	profiles := DefaultRetailers(Location{PostalCode: "M5V3L9", StoreID: "42"})

	walmart := profiles["walmart"]
	require.Len(t, walmart.Cookies, 2)
	assert.Equal(t, "42", walmart.Cookies[0].Value)
	assert.Equal(t, "M5V3L9", walmart.Cookies[1].Value)

	for _, item := range profiles["superstore"].LocalStorage {
		assert.Equal(t, "M5V3L9", item.Value)
	}
	assert.Equal(t, 5, profiles["sobeys"].SettleAttempts)
	assert.Equal(t, []string{NextDataSelector, JSONScriptSelector}, profiles["sobeys"].DataSelectors())
}

func TestSelectRetailers(t *testing.T) {
	profiles := DefaultRetailers(DefaultLocation)

	all, err := SelectRetailers(profiles, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "sobeys", all[0].Name)
	assert.Equal(t, "superstore", all[1].Name)
	assert.Equal(t, "walmart", all[2].Name)

	some, err := SelectRetailers(profiles, []string{"Walmart"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "walmart", some[0].Name)

	_, err = SelectRetailers(profiles, []string{"costco"})
	assert.Error(t, err)
}
