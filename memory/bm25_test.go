package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mem(id, content string) *Memory {
	return &Memory{ID: id, UserID: "u1", Content: content}
}

func TestRankBM25_RelevanceOrdering(t *testing.T) {
	candidates := []*Memory{
		mem("m1", "User prefers low-risk index funds for retirement"),
		mem("m2", "User's daughter starts college in 2028"),
		mem("m3", "Monthly budget for dining out is 200 dollars"),
		mem("m4", "Retirement target age is 60 with index fund portfolio"),
	}

	results := RankBM25("retirement index funds", candidates, 10)
	require.NotEmpty(t, results)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	top := map[string]bool{results[0].Memory.ID: true}
	if len(results) > 1 {
		top[results[1].Memory.ID] = true
	}
	assert.True(t, top["m1"] || top["m4"], "retirement memories should rank first, got %v", top)
}

func TestRankBM25_NoOverlapDropped(t *testing.T) {
	candidates := []*Memory{
		mem("m1", "User prefers espresso over filter coffee"),
	}

	results := RankBM25("mortgage refinancing rates", candidates, 10)
	assert.Empty(t, results)
}

func TestRankBM25_TopKLimit(t *testing.T) {
	candidates := []*Memory{
		mem("m1", "savings account one"),
		mem("m2", "savings account two"),
		mem("m3", "savings account three"),
	}

	results := RankBM25("savings", candidates, 2)
	assert.Len(t, results, 2)
}

func TestRankBM25_EmptyInputs(t *testing.T) {
	assert.Nil(t, RankBM25("", []*Memory{mem("m1", "anything")}, 5))
	assert.Nil(t, RankBM25("query", nil, 5))
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "lowercases and splits", in: "Index Funds", want: []string{"index", "funds"}},
		{name: "strips punctuation", in: "risk-averse, mostly.", want: []string{"risk", "averse", "mostly"}},
		{name: "keeps digits", in: "retire at 60", want: []string{"retire", "at", "60"}},
		{name: "empty", in: "  ...  ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.in))
		})
	}
}
