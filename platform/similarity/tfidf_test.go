package similarity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"graph", "neural", "networks", "code", "review"}, Tokenize("Graph Neural-Networks for the Code Review"))
	assert.Equal(t, []string{"học", "máy"}, Tokenize("Học máy"))
}

func TestRankOrdersBySimilarity(t *testing.T) {
	target := Document{Id: uuid.New(), Text: "static analysis of rust programs for memory safety bugs"}
	close := Document{Id: uuid.New(), Text: "detecting memory safety bugs in rust with static analysis"}
	related := Document{Id: uuid.New(), Text: "fuzzing c programs to find memory bugs"}
	unrelated := Document{Id: uuid.New(), Text: "crowdsourced user interface design study"}

	matches := Rank(target, []Document{unrelated, related, target, close}, 0)

	require.Len(t, matches, 2)
	assert.Equal(t, close.Id, matches[0].Id)
	assert.Equal(t, related.Id, matches[1].Id)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.LessOrEqual(t, matches[0].Score, 1.0)
}

func TestRankLimit(t *testing.T) {
	target := Document{Id: uuid.New(), Text: "software testing"}
	corpus := []Document{
		{Id: uuid.New(), Text: "software testing tools"},
		{Id: uuid.New(), Text: "testing software at scale"},
		{Id: uuid.New(), Text: "software maintenance"},
	}

	assert.Len(t, Rank(target, corpus, 2), 2)
	assert.Empty(t, Rank(target, nil, 5))
}
