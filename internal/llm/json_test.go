package llm_test

import (
	"testing"

	"github.com/perkscan/benefit-radar/internal/llm"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONDirect(t *testing.T) {
	parsed, err := llm.ExtractJSON(`[{"title": "5% cashback"}]`)
	require.NoError(t, err)
	items, ok := parsed.([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
}

func TestExtractJSONCodeFence(t *testing.T) {
	response := "```json\n[{\"title\": \"lounge access\"}]\n```"
	parsed, err := llm.ExtractJSON(response)
	require.NoError(t, err)
	require.IsType(t, []any{}, parsed)
}

func TestExtractJSONPreambleAndProse(t *testing.T) {
	response := `Here is the JSON:
[{"title": "dining offer", "value": "20%"}]
Let me know if you need anything else.`
	parsed, err := llm.ExtractJSON(response)
	require.NoError(t, err)
	items := parsed.([]any)
	require.Len(t, items, 1)
}

func TestExtractJSONTrailingComma(t *testing.T) {
	parsed, err := llm.ExtractJSON(`{"title": "offer", "conditions": ["a", "b",],}`)
	require.NoError(t, err)
	obj := parsed.(map[string]any)
	require.Equal(t, "offer", obj["title"])
}

func TestExtractJSONTruncated(t *testing.T) {
	parsed, err := llm.ExtractJSON(`[{"title": "5% cashback", "value": "5%"}, {"title": "lounge access"`)
	require.NoError(t, err)
	items := parsed.([]any)
	require.Len(t, items, 2)
}

func TestExtractJSONRejectsGarbage(t *testing.T) {
	_, err := llm.ExtractJSON("no structured content here")
	require.Error(t, err)

	_, err = llm.ExtractJSON("")
	require.Error(t, err)
}

func TestToString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"  text ", "text"},
		{5.0, "5"},
		{2.5, "2.5"},
		{true, "true"},
		{map[string]any{"value": "AED 100"}, "AED 100"},
		{map[string]any{"amount": 50.0}, "50"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, llm.ToString(tt.in))
	}
}

func TestToStringList(t *testing.T) {
	require.Nil(t, llm.ToStringList(nil))
	require.Equal(t, []string{"single"}, llm.ToStringList("single"))
	require.Nil(t, llm.ToStringList("   "))
	require.Equal(t, []string{"a", "b"}, llm.ToStringList([]any{"a", "", "b", nil}))
	require.Equal(t, []string{"5"}, llm.ToStringList(5.0))
}

func TestItemList(t *testing.T) {
	bare := []any{map[string]any{"title": "x"}, "not an object"}
	require.Len(t, llm.ItemList(bare), 1)

	keyed := map[string]any{"benefits": []any{map[string]any{"title": "y"}}}
	require.Len(t, llm.ItemList(keyed, "benefits", "offers"), 1)

	single := map[string]any{"offers": map[string]any{"title": "z"}}
	require.Len(t, llm.ItemList(single, "benefits", "offers"), 1)

	require.Nil(t, llm.ItemList(map[string]any{"other": 1}, "benefits"))
	require.Nil(t, llm.ItemList("scalar", "benefits"))
}
