package arena

import "time"

// ContactOutcome is the result of one circle-circle contact.
type ContactOutcome int

const (
	OutcomeBounce           ContactOutcome = iota // neither powered
	OutcomeCancel                                 // both powered, both lose it
	OutcomeSecondEliminated                       // a eliminated b
	OutcomeFirstEliminated                        // b eliminated a
)

func (o ContactOutcome) String() string {
	switch o {
	case OutcomeCancel:
		return "cancel"
	case OutcomeSecondEliminated:
		return "second_eliminated"
	case OutcomeFirstEliminated:
		return "first_eliminated"
	default:
		return "bounce"
	}
}

// ApplyElimination decides a contact between a and b and updates their
// scores, powerups and alive flags. Only one of the outcomes can happen.
func ApplyElimination(a, b *Entity, at time.Time) ContactOutcome {
	switch {
	case a.HasPowerup && !b.HasPowerup:
		b.eliminate(a.ID, at)
		a.losePowerup()
		a.Score++
		return OutcomeSecondEliminated
	case !a.HasPowerup && b.HasPowerup:
		a.eliminate(b.ID, at)
		b.losePowerup()
		b.Score++
		return OutcomeFirstEliminated
	case a.HasPowerup && b.HasPowerup:
		a.losePowerup()
		b.losePowerup()
		return OutcomeCancel
	}
	return OutcomeBounce
}
