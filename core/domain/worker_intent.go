package domain

// Intent is the coarse purpose of an inbound email.
type Intent string

const (
	// IntentOffer means the sender asks for an offer or quotation.
	IntentOffer Intent = "offer"
	// IntentRequest covers every other inquiry.
	IntentRequest Intent = "request"
)

func (i Intent) Valid() bool {
	return i == IntentOffer || i == IntentRequest
}

// Tri-state flag values. FlagUnsure is only allowed where noted.
const (
	FlagNo     = 0
	FlagYes    = 1
	FlagUnsure = 2
)

// IntentFlags are the extended category flags of an inquiry.
type IntentFlags struct {
	StatusAngebot int `json:"status_angebot"` // 0/1/2
	Universitaet  int `json:"universitaet"`   // 0/1/2
	PhaseCube     int `json:"phasecube"`
	PhaseTube     int `json:"phasetube"`
	PhaseDrum     int `json:"phasedrum"`
}

// ActiveCategories lists the phase flags set to 1.
func (f IntentFlags) ActiveCategories() []string {
	var out []string
	if f.PhaseCube == FlagYes {
		out = append(out, "phasecube")
	}
	if f.PhaseTube == FlagYes {
		out = append(out, "phasetube")
	}
	if f.PhaseDrum == FlagYes {
		out = append(out, "phasedrum")
	}
	return out
}

// UnsureFlags lists the tri-state flags left undecided.
func (f IntentFlags) UnsureFlags() []string {
	var out []string
	if f.StatusAngebot == FlagUnsure {
		out = append(out, "angebot")
	}
	if f.Universitaet == FlagUnsure {
		out = append(out, "universitaet")
	}
	return out
}

// IntentResult is the output of intent classification.
type IntentResult struct {
	Intent         Intent      `json:"intent"`
	Confidence     float64     `json:"confidence"`
	Source         string      `json:"source"`
	Reason         string      `json:"reason,omitempty"`
	Flags          IntentFlags `json:"flags"`
	ActiveCategory []string    `json:"kategorien_aktiv"`
	UnsureFlags    []string    `json:"unsicher_flags"`
	Warnings       []string    `json:"warnings,omitempty"`
	Skipped        bool        `json:"skipped,omitempty"`
}
