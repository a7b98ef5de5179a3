package game

import "strings"

// Move 玩家出招
type Move string

const (
	Rock     Move = "rock"
	Paper    Move = "paper"
	Scissors Move = "scissors"
)

// beats maps each move to the move it defeats.
var beats = map[Move]Move{
	Rock:     Scissors,
	Scissors: Paper,
	Paper:    Rock,
}

// NormalizeMove trims and lower-cases raw input. ok is false for anything
// that is not rock, paper or scissors.
func NormalizeMove(raw string) (Move, bool) {
	m := Move(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := beats[m]; !ok {
		return "", false
	}
	return m, true
}

// Beats reports whether m defeats other.
func (m Move) Beats(other Move) bool {
	return beats[m] == other
}

func (m Move) String() string {
	return string(m)
}
