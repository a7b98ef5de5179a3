package game

// Outcome of a round from one player's point of view.
type Outcome string

const (
	Win  Outcome = "win"
	Lose Outcome = "lose"
	Draw Outcome = "draw"
)

// PlayerMove is one seated player's submission for a round.
type PlayerMove struct {
	UserID      string
	DisplayName string
	Move        Move
}

// PlayerResult 单个玩家的本局结果
type PlayerResult struct {
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Move        Move    `json:"move"`
	Outcome     Outcome `json:"outcome"`
}

// RoundResult holds both players' results in seat order.
type RoundResult [2]PlayerResult

// Resolve scores a complete move set. It keeps no state between calls.
func Resolve(moves [2]PlayerMove) RoundResult {
	a, b := moves[0], moves[1]

	outA, outB := Draw, Draw
	switch {
	case a.Move.Beats(b.Move):
		outA, outB = Win, Lose
	case b.Move.Beats(a.Move):
		outA, outB = Lose, Win
	}

	return RoundResult{
		{UserID: a.UserID, DisplayName: a.DisplayName, Move: a.Move, Outcome: outA},
		{UserID: b.UserID, DisplayName: b.DisplayName, Move: b.Move, Outcome: outB},
	}
}

// Decisive returns the winner and loser ids. ok is false on a draw.
func (r RoundResult) Decisive() (winner, loser string, ok bool) {
	for i, p := range r {
		if p.Outcome == Win {
			return p.UserID, r[1-i].UserID, true
		}
	}
	return "", "", false
}

// Slice returns the results as a slice for wire encoding.
func (r RoundResult) Slice() []PlayerResult {
	return []PlayerResult{r[0], r[1]}
}
