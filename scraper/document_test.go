package scraper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentKeepsKeyOrder(t *testing.T) {
	root, err := ParseDocument(`{"zeta": 1, "alpha": {"b": true, "a": null}, "mid": ["x", 2.50]}`)
	require.NoError(t, err)

	assert.Equal(t, MapNode, root.Kind)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, root.Keys)
	assert.Equal(t, []string{"b", "a"}, root.Get("alpha").Keys)
	assert.True(t, root.Get("alpha").Get("b").IsTrue())
	assert.Equal(t, NullNode, root.Get("alpha").Get("a").Kind)

	mid := root.Get("mid")
	require.True(t, mid.IsList())
	text, ok := mid.Items[0].TextValue()
	assert.True(t, ok)
	assert.Equal(t, "x", text)
	assert.Equal(t, "2.50", mid.Items[1].Number.String())
}

func TestParseDocumentRecoversBracedSpan(t *testing.T) {
	root, err := ParseDocument(`window.__DATA__ = {"props": {"name": "Milk"}};`)
	require.NoError(t, err)
	name, ok := root.Get("props").Get("name").TextValue()
	assert.True(t, ok)
	assert.Equal(t, "Milk", name)
}

func TestParseDocumentFallsBackToJSON5(t *testing.T) {
	root, err := ParseDocument(`{props: {name: 'Milk', price: 3.98,},}`)
	require.NoError(t, err)
	assert.Equal(t, "3.98", root.Get("props").Get("price").Number.String())
}

func TestParseDocumentFailure(t *testing.T) {
	tests := []string{
		"",
		"not json at all",
		`{"unterminated": `,
		`"just a string"`,
	}
	for _, raw := range tests {
		_, err := ParseDocument(raw)
		require.Error(t, err, raw)
		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr), raw)
	}
}

func TestWalkVisitsInDocumentOrder(t *testing.T) {
	root, err := ParseDocument(`{"b": {"name": "first"}, "a": [{"name": "second"}, {"name": "third"}]}`)
	require.NoError(t, err)

	var names []string
	root.Walk(func(n *Node) bool {
		if name, ok := n.Get("name").TextValue(); ok {
			names = append(names, name)
		}
		return true
	})
	assert.Equal(t, []string{"first", "second", "third"}, names)
}

func TestPresent(t *testing.T) {
	root, err := ParseDocument(`{"zero": 0, "one": 1, "blank": " ", "empty": [], "off": false, "obj": {"k": 1}}`)
	require.NoError(t, err)

	assert.False(t, root.Get("zero").Present())
	assert.True(t, root.Get("one").Present())
	assert.False(t, root.Get("blank").Present())
	assert.False(t, root.Get("empty").Present())
	assert.False(t, root.Get("off").Present())
	assert.True(t, root.Get("obj").Present())
	assert.False(t, root.Get("missing").Present())
}
