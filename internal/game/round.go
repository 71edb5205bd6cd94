package game

import "github.com/1ureka/janken/internal/rules"

// Round is one exchange of hands. The zero value is an empty round.
type Round struct {
	ID           string
	MyHand       rules.Hand
	OpponentHand rules.Hand
	Outcome      rules.Outcome
}

// Waiting reports whether the local player has picked and the opponent has not.
func (r Round) Waiting() bool {
	return r.MyHand != rules.Unset && r.OpponentHand == rules.Unset
}

// Decided reports whether both hands are in and the outcome is fixed.
func (r Round) Decided() bool {
	return r.Outcome != rules.Undecided
}

// settle fixes the outcome once both hands are set. It never recomputes.
func (r *Round) settle() {
	if r.Outcome != rules.Undecided {
		return
	}
	r.Outcome = rules.Resolve(r.MyHand, r.OpponentHand)
}
