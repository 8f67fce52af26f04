package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedDataFromHTML(t *testing.T) {
	html := `<html><head>
		<script type="application/json" id="other">{"fallback": true}</script>
		<script id="__NEXT_DATA__" type="application/json">
			{"props": {"pageProps": {}}}
		</script>
	</head><body></body></html>`

	data, found, err := EmbeddedDataFromHTML(html, []string{NextDataSelector})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"props": {"pageProps": {}}}`, data)

	data, found, err = EmbeddedDataFromHTML(`<script type="application/json">{"a": 1}</script>`,
		[]string{NextDataSelector, JSONScriptSelector})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"a": 1}`, data)

	_, found, err = EmbeddedDataFromHTML(`<div>loading</div>`, []string{NextDataSelector})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEmbeddedDataSkipsEmptyBlocks(t *testing.T) {
	html := `<script type="application/json"></script><script type="application/json">{"b": 2}</script>`
	data, found, err := EmbeddedDataFromHTML(html, []string{JSONScriptSelector})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"b": 2}`, data)
}
