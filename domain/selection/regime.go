package selection

import (
	"strings"

	"metabias/domain/core"
)

// Regime is the bias correction applied to a meta-analysis.
type Regime int

const (
	// RegimeNone is the classical random-effects model.
	RegimeNone Regime = iota
	// RegimePublicationSelection reweights the likelihood by a selection
	// probability per significance bin.
	RegimePublicationSelection
	// RegimePHacking models each study as a mixture of normals truncated to
	// the significance bins.
	RegimePHacking
)

// Regimes lists every regime in declaration order.
var Regimes = []Regime{RegimePublicationSelection, RegimePHacking, RegimeNone}

func (r Regime) String() string {
	switch r {
	case RegimePublicationSelection:
		return "publication_selection"
	case RegimePHacking:
		return "p_hacking"
	case RegimeNone:
		return "none"
	default:
		return "unknown"
	}
}

// Short returns the conventional abbreviation (psma, phma, cma).
func (r Regime) Short() string {
	switch r {
	case RegimePublicationSelection:
		return "psma"
	case RegimePHacking:
		return "phma"
	case RegimeNone:
		return "cma"
	default:
		return "unknown"
	}
}

// UsesWeights reports whether the regime carries an eta vector.
func (r Regime) UsesWeights() bool {
	return r == RegimePublicationSelection || r == RegimePHacking
}

// ParseRegime accepts the long names, the abbreviations, and a few common
// spellings ("publication selection", "p-hacking").
func ParseRegime(s string) (Regime, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "publication_selection", "psma", "selection":
		return RegimePublicationSelection, nil
	case "p_hacking", "phacking", "phma":
		return RegimePHacking, nil
	case "none", "cma", "classical":
		return RegimeNone, nil
	}
	return RegimeNone, core.NewInvalidArgumentf("bias", "unknown correction regime %q", s)
}

func (r Regime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Regime) UnmarshalText(text []byte) error {
	parsed, err := ParseRegime(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
