package model

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"reflect"
	"sort"
	"strings"

	"metabias/domain/core"
	"metabias/domain/selection"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// TauPrior is the prior family on the heterogeneity tau.
type TauPrior string

const (
	TauHalfNormal TauPrior = "half-normal"
	TauUniform    TauPrior = "uniform"
	TauInvGamma   TauPrior = "inv_gamma"
)

// ParseTauPrior accepts the canonical names plus common spellings.
func ParseTauPrior(s string) (TauPrior, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "halfnormal", "hn":
		return TauHalfNormal, nil
	case "uniform", "unif":
		return TauUniform, nil
	case "invgamma", "inversegamma", "ig":
		return TauInvGamma, nil
	}
	return "", core.NewInvalidPrior("tau_prior", "unknown family %q (want half-normal, uniform or inv_gamma)", s)
}

// PriorKeys are the recognised prior fields, in the order they are documented.
var PriorKeys = []string{
	"eta0", "theta0_mean", "theta0_sd", "tau_mean", "tau_sd",
	"u_min", "u_max", "shape", "scale", "tau_prior",
}

// Priors configures the Bayesian model. theta0 ~ N(theta0_mean, theta0_sd).
// tau follows tau_prior: half-normal(tau_mean, tau_sd), uniform(u_min, u_max)
// or inverse-gamma(shape, scale). eta0 is the concentration of the
// selection / mixture weights and is ignored by the uncorrected regime.
type Priors struct {
	Eta0       []float64 `json:"eta0,omitempty" yaml:"eta0" validate:"omitempty,dive,finite,gt=0"`
	Theta0Mean float64   `json:"theta0_mean" yaml:"theta0_mean" validate:"finite"`
	Theta0SD   float64   `json:"theta0_sd" yaml:"theta0_sd" validate:"finite,gt=0"`
	TauMean    float64   `json:"tau_mean" yaml:"tau_mean" validate:"finite"`
	TauSD      float64   `json:"tau_sd" yaml:"tau_sd" validate:"finite,gt=0"`
	UMin       float64   `json:"u_min" yaml:"u_min" validate:"finite,gte=0"`
	UMax       float64   `json:"u_max" yaml:"u_max" validate:"finite,gtfield=UMin"`
	Shape      float64   `json:"shape" yaml:"shape" validate:"finite,gt=0"`
	Scale      float64   `json:"scale" yaml:"scale" validate:"finite,gt=0"`
	TauPrior   TauPrior  `json:"tau_prior" yaml:"tau_prior" validate:"oneof=half-normal uniform inv_gamma"`
}

var priorValidate *validator.Validate

func init() {
	priorValidate = validator.New()
	priorValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})
	err := priorValidate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		v := fl.Field().Float()
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	})
	if err != nil {
		panic(err)
	}
}

// DefaultPriors returns the defaults for a partition with the given number of
// bins: eta0 all ones, N(0, 1) on theta0, half-normal(0, 1) on tau,
// uniform(0, 3) and inverse-gamma(1, 1) as alternatives.
func DefaultPriors(bins int) Priors {
	var eta0 []float64
	if bins > 0 {
		eta0 = make([]float64, bins)
		for i := range eta0 {
			eta0[i] = 1
		}
	}
	return Priors{
		Eta0:       eta0,
		Theta0Mean: 0,
		Theta0SD:   1,
		TauMean:    0,
		TauSD:      1,
		UMin:       0,
		UMax:       3,
		Shape:      1,
		Scale:      1,
		TauPrior:   TauHalfNormal,
	}
}

// Validate applies the field predicates.
func (p Priors) Validate() error {
	err := priorValidate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		return core.NewInvalidPrior(fe.Field(), "value %v fails %s", fe.Value(), rule)
	}
	return core.NewInvalidPrior("priors", "%v", err)
}

// ForRegime checks the priors against a regime and partition and returns the
// copy the model uses. The uncorrected regime drops eta0; the bias regimes
// require one entry per bin.
func (p Priors) ForRegime(r selection.Regime, part selection.Partition) (Priors, error) {
	out := p
	out.Eta0 = append([]float64(nil), p.Eta0...)
	if !r.UsesWeights() {
		out.Eta0 = nil
	} else if len(out.Eta0) != part.Bins() {
		return Priors{}, core.NewInvalidPrior("eta0", "length %d does not match %d bins", len(out.Eta0), part.Bins())
	}
	if err := out.Validate(); err != nil {
		return Priors{}, err
	}
	return out, nil
}

// PriorsFromMap overlays overrides on DefaultPriors(bins). Keys outside
// PriorKeys are rejected. eta0 accepts a list or a single number repeated
// for every bin.
func PriorsFromMap(overrides map[string]any, bins int) (Priors, error) {
	p := DefaultPriors(bins)

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := overrides[key]
		var err error
		switch key {
		case "eta0":
			p.Eta0, err = toFloats(key, v, bins)
		case "theta0_mean":
			p.Theta0Mean, err = toFloat(key, v)
		case "theta0_sd":
			p.Theta0SD, err = toFloat(key, v)
		case "tau_mean":
			p.TauMean, err = toFloat(key, v)
		case "tau_sd":
			p.TauSD, err = toFloat(key, v)
		case "u_min":
			p.UMin, err = toFloat(key, v)
		case "u_max":
			p.UMax, err = toFloat(key, v)
		case "shape":
			p.Shape, err = toFloat(key, v)
		case "scale":
			p.Scale, err = toFloat(key, v)
		case "tau_prior":
			s, ok := v.(string)
			if !ok {
				return Priors{}, core.NewInvalidPrior(key, "must be a string, got %T", v)
			}
			p.TauPrior, err = ParseTauPrior(s)
		default:
			return Priors{}, core.NewInvalidPrior(key, "unrecognised prior parameter (recognised: %s)", strings.Join(PriorKeys, ", "))
		}
		if err != nil {
			return Priors{}, err
		}
	}
	if err := p.Validate(); err != nil {
		return Priors{}, err
	}
	return p, nil
}

// priorsFile is the YAML form; pointer fields tell absent keys from zeros.
type priorsFile struct {
	Eta0       yaml.Node `yaml:"eta0"`
	Theta0Mean *float64  `yaml:"theta0_mean"`
	Theta0SD   *float64  `yaml:"theta0_sd"`
	TauMean    *float64  `yaml:"tau_mean"`
	TauSD      *float64  `yaml:"tau_sd"`
	UMin       *float64  `yaml:"u_min"`
	UMax       *float64  `yaml:"u_max"`
	Shape      *float64  `yaml:"shape"`
	Scale      *float64  `yaml:"scale"`
	TauPrior   *string   `yaml:"tau_prior"`
}

// LoadPriorsYAML reads prior overrides from YAML. Unknown keys are an error.
// An empty document yields DefaultPriors(bins).
func LoadPriorsYAML(r io.Reader, bins int) (Priors, error) {
	var f priorsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Priors{}, core.NewInvalidPrior("yaml", "%v", err)
	}

	overrides := map[string]any{}
	if f.Eta0.Kind != 0 {
		var list []float64
		if f.Eta0.Kind == yaml.SequenceNode {
			if err := f.Eta0.Decode(&list); err != nil {
				return Priors{}, core.NewInvalidPrior("eta0", "%v", err)
			}
			overrides["eta0"] = list
		} else {
			var one float64
			if err := f.Eta0.Decode(&one); err != nil {
				return Priors{}, core.NewInvalidPrior("eta0", "%v", err)
			}
			overrides["eta0"] = one
		}
	}
	for key, v := range map[string]*float64{
		"theta0_mean": f.Theta0Mean, "theta0_sd": f.Theta0SD,
		"tau_mean": f.TauMean, "tau_sd": f.TauSD,
		"u_min": f.UMin, "u_max": f.UMax,
		"shape": f.Shape, "scale": f.Scale,
	} {
		if v != nil {
			overrides[key] = *v
		}
	}
	if f.TauPrior != nil {
		overrides["tau_prior"] = *f.TauPrior
	}
	return PriorsFromMap(overrides, bins)
}

func toFloat(key string, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, core.NewInvalidPrior(key, "not a number: %q", x.String())
		}
		return f, nil
	}
	return 0, core.NewInvalidPrior(key, "must be a number, got %T", v)
}

func toFloats(key string, v any, bins int) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return append([]float64(nil), x...), nil
	case []any:
		out := make([]float64, len(x))
		for i, e := range x {
			f, err := toFloat(key, e)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	}
	f, err := toFloat(key, v)
	if err != nil {
		return nil, err
	}
	if bins < 1 {
		return nil, core.NewInvalidPrior(key, "a scalar needs a known number of bins")
	}
	out := make([]float64, bins)
	for i := range out {
		out[i] = f
	}
	return out, nil
}
