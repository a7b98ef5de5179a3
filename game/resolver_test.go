package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMove(t *testing.T) {
	tests := []struct {
		raw  string
		want Move
		ok   bool
	}{
		{"rock", Rock, true},
		{" ROCK", Rock, true},
		{"Scissors ", Scissors, true},
		{"\tpaper\n", Paper, true},
		{"lizard", "", false},
		{"", "", false},
		{"rock paper", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeMove(tt.raw)
		assert.Equal(t, tt.ok, ok, "raw %q", tt.raw)
		assert.Equal(t, tt.want, got, "raw %q", tt.raw)
	}
}

func TestResolve_AllPairs(t *testing.T) {
	tests := []struct {
		a, b       Move
		outA, outB Outcome
	}{
		{Rock, Scissors, Win, Lose},
		{Scissors, Paper, Win, Lose},
		{Paper, Rock, Win, Lose},
		{Scissors, Rock, Lose, Win},
		{Paper, Scissors, Lose, Win},
		{Rock, Paper, Lose, Win},
		{Rock, Rock, Draw, Draw},
		{Paper, Paper, Draw, Draw},
		{Scissors, Scissors, Draw, Draw},
	}

	for _, tt := range tests {
		res := Resolve([2]PlayerMove{
			{UserID: "a", Move: tt.a},
			{UserID: "b", Move: tt.b},
		})
		assert.Equal(t, tt.outA, res[0].Outcome, "%s vs %s", tt.a, tt.b)
		assert.Equal(t, tt.outB, res[1].Outcome, "%s vs %s", tt.a, tt.b)
	}
}

func TestResolve_OutcomeFollowsMoverNotSeat(t *testing.T) {
	first := Resolve([2]PlayerMove{
		{UserID: "A", Move: Rock},
		{UserID: "B", Move: Scissors},
	})
	winner, loser, ok := first.Decisive()
	assert.True(t, ok)
	assert.Equal(t, "A", winner)
	assert.Equal(t, "B", loser)

	swapped := Resolve([2]PlayerMove{
		{UserID: "A", Move: Scissors},
		{UserID: "B", Move: Rock},
	})
	winner, loser, ok = swapped.Decisive()
	assert.True(t, ok)
	assert.Equal(t, "B", winner)
	assert.Equal(t, "A", loser)

	// same (mover, move) pairs in the other seat order give the same result
	reordered := Resolve([2]PlayerMove{
		{UserID: "B", Move: Scissors},
		{UserID: "A", Move: Rock},
	})
	winner, _, _ = reordered.Decisive()
	assert.Equal(t, "A", winner)
}

func TestRoundResult_DecisiveDraw(t *testing.T) {
	res := Resolve([2]PlayerMove{
		{UserID: "A", Move: Paper},
		{UserID: "B", Move: Paper},
	})
	_, _, ok := res.Decisive()
	assert.False(t, ok)
}
