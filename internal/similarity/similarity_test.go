package similarity_test

import (
	"testing"

	"github.com/perkscan/benefit-radar/internal/models"
	"github.com/perkscan/benefit-radar/internal/similarity"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  5%  Cashback!! ", "5% cashback"},
		{"Airport Lounge Access", "airport lounge access"},
		{"Buy-One-Get-One (BOGO)", "buyonegetone bogo"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, similarity.NormalizeText(tt.in))
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AED 1,500", "aed 1500"},
		{"AED1,500", "aed 1500"},
		{"5 %", "5%"},
		{"1,000,000", "1000000"},
		{"USD  200", "usd 200"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, similarity.NormalizeValue(tt.in))
	}
}

func TestTextSimilarity(t *testing.T) {
	require.Equal(t, 0.0, similarity.TextSimilarity("", "anything"))
	require.Equal(t, 1.0, similarity.TextSimilarity("5% Cashback", "5%  cashback!"))
	require.Equal(t, 0.9, similarity.TextSimilarity("5% cashback on dining", "cashback on dining"))

	distant := similarity.TextSimilarity("airport lounge access", "fuel surcharge waiver")
	require.Less(t, distant, 0.5)

	near := similarity.TextSimilarity("complimentary lounge access", "complimentary lounge axcess")
	require.Greater(t, near, 0.9)
}

func TestSimilarExactTitleShortCircuits(t *testing.T) {
	a := models.Candidate{Title: "Airport Lounge Access", Value: "8 visits"}
	b := models.Candidate{Title: "airport lounge access!", Value: "unlimited"}

	ok, score := similarity.Similar(a, b, 0.99)
	require.True(t, ok)
	require.Equal(t, 1.0, score)
}

func TestSimilarWeightsAndCategoryBoost(t *testing.T) {
	a := models.Candidate{
		Category:    "cashback",
		Title:       "5% cashback on dining",
		Value:       "5%",
		Description: "earn cashback at restaurants",
	}
	b := models.Candidate{
		Category:    "cashback",
		Title:       "cashback on dining",
		Value:       "5 %",
		Description: "earn cashback at restaurants",
	}

	ok, score := similarity.Similar(a, b, 0.8)
	require.True(t, ok)
	// title containment 0.9*0.5 + value 1.0*0.3 + desc 1.0*0.2 = 0.95, x1.1 capped
	require.Equal(t, 1.0, score)

	b.Category = "dining"
	_, unboosted := similarity.Similar(a, b, 0.8)
	require.InDelta(t, 0.95, unboosted, 0.0001)
}

func TestSimilarEmptyValuesNeverMatchAsEqual(t *testing.T) {
	a := models.Candidate{Category: "cashback", Title: "alpha offer one"}
	b := models.Candidate{Category: "cashback", Title: "completely different thing"}

	_, score := similarity.Similar(a, b, 0.7)
	// Both values empty: no value contribution even though both normalize to "".
	require.Less(t, score, 0.7)
}
