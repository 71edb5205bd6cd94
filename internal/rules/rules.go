// Package rules defines the hands of rock-paper-scissors and resolves a round.
package rules

import "fmt"

// Hand is one player's choice. The zero value means no choice yet.
type Hand string

const (
	Unset    Hand = ""
	Rock     Hand = "rock"
	Paper    Hand = "paper"
	Scissors Hand = "scissors"
)

// Hands lists the selectable hands in display order.
var Hands = []Hand{Rock, Paper, Scissors}

// beats maps each hand to the hand it defeats.
var beats = map[Hand]Hand{
	Rock:     Scissors,
	Scissors: Paper,
	Paper:    Rock,
}

// Valid reports whether h is one of the three selectable hands.
func (h Hand) Valid() bool {
	_, ok := beats[h]
	return ok
}

// ParseHand converts a wire or user string into a Hand.
func ParseHand(s string) (Hand, error) {
	h := Hand(s)
	if !h.Valid() {
		return Unset, fmt.Errorf("invalid hand: %q", s)
	}
	return h, nil
}

// Outcome is the result of a round from one player's point of view.
// The zero value means the round is not decided yet.
type Outcome string

const (
	Undecided Outcome = ""
	Win       Outcome = "win"
	Lose      Outcome = "lose"
	Draw      Outcome = "draw"
)

// Resolve decides a round. It returns Undecided if either hand is unset.
func Resolve(mine, theirs Hand) Outcome {
	if !mine.Valid() || !theirs.Valid() {
		return Undecided
	}
	if mine == theirs {
		return Draw
	}
	if beats[mine] == theirs {
		return Win
	}
	return Lose
}
