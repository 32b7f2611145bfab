package model

import "time"

// AmmoState tracks which of the three cash tranches have been deployed in the
// current market cycle. Flags only go false->true until a manual reset.
type AmmoState struct {
	UserID       string    `db:"user_id" json:"user_id,omitempty"`
	Tranche1Used bool      `db:"tranche_1_used" json:"tranche_1_used"`
	Tranche2Used bool      `db:"tranche_2_used" json:"tranche_2_used"`
	Tranche3Used bool      `db:"tranche_3_used" json:"tranche_3_used"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AnyUsed reports whether at least one tranche has fired.
func (a AmmoState) AnyUsed() bool {
	return a.Tranche1Used || a.Tranche2Used || a.Tranche3Used
}

// Used reports the flag for tranche 1..3. Out of range indexes report false.
func (a AmmoState) Used(tranche int) bool {
	switch tranche {
	case 1:
		return a.Tranche1Used
	case 2:
		return a.Tranche2Used
	case 3:
		return a.Tranche3Used
	}
	return false
}

// WithUsed returns a copy with the given tranche marked as used.
func (a AmmoState) WithUsed(tranche int) AmmoState {
	switch tranche {
	case 1:
		a.Tranche1Used = true
	case 2:
		a.Tranche2Used = true
	case 3:
		a.Tranche3Used = true
	}
	return a
}
