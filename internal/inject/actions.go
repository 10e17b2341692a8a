package inject

import (
	"maps"
	"slices"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/model"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

// Kind classifies how an action reaches the engine.
type Kind int

const (
	// Scalar assigns one engine input field.
	Scalar Kind = iota
	// Broadcast assigns one value across a slice of an input array.
	Broadcast
	// Derived assigns an intermediate that the partner-rate or
	// age-mixing derivation consumes.
	Derived
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Broadcast:
		return "broadcast"
	case Derived:
		return "derived"
	}
	return "unknown"
}

// Action is the typed mutation bound to one parameter key.
type Action struct {
	Kind   Kind
	Target string
	apply  func(m *model.Model, v float64)
}

func scalar(target string, field func(m *model.Model) *float64) Action {
	return Action{Kind: Scalar, Target: target, apply: func(m *model.Model, v float64) { *field(m) = v }}
}

func broadcast(target string, fn func(m *model.Model, v float64)) Action {
	return Action{Kind: Broadcast, Target: target, apply: fn}
}

func derived(target string, fn func(m *model.Model, v float64)) Action {
	return Action{Kind: Derived, Target: target, apply: fn}
}

// fillSpans assigns v across spans of a; spans are always in range for the
// fixed input layouts used below.
func fillSpans(a *ndarray.Dense, v float64, spans ...ndarray.Span) {
	if err := a.FillRange(v, spans...); err != nil {
		panic(err)
	}
}

// raw returns the input-layout index of engine risk group pop.
func raw(pop int) int { return pop - 1 }

var actions = map[string]Action{
	"seed.prev": scalar("epidemic seed prevalence", func(m *model.Model) *float64 { return &m.SeedPrev }),
	"transmit.f2m": scalar("female-to-male transmission", func(m *model.Model) *float64 { return &m.Transmission.F2M }),
	"transmit.m2f": scalar("male-to-female transmission", func(m *model.Model) *float64 { return &m.Transmission.M2F }),
	"hiv.frr.laf": scalar("HIV fertility local adjustment", func(m *model.Model) *float64 { return &m.FertilityLAF }),

	"ancss.bias":      scalar("ANC-SS bias", func(m *model.Model) *float64 { return &m.Likelihood.ANCSSBias }),
	"ancrt.bias":      scalar("ANC-RT bias", func(m *model.Model) *float64 { return &m.Likelihood.ANCRTBias }),
	"var.infl.site":   scalar("ANC site variance inflation", func(m *model.Model) *float64 { return &m.Likelihood.VarInflSite }),
	"var.infl.census": scalar("ANC census variance inflation", func(m *model.Model) *float64 { return &m.Likelihood.VarInflCensus }),

	"force.pwid": broadcast("PWID force, all years", func(m *model.Model, v float64) {
		for i := range m.PWIDForce {
			m.PWIDForce[i] = v
		}
	}),
	"partners.female": broadcast("female partnership time trend, all years", func(m *model.Model, v float64) {
		fillSpans(m.TimeTrend, v, ndarray.One(dims.Female))
	}),
	"partners.male": broadcast("male partnership time trend, all years", func(m *model.Model, v float64) {
		fillSpans(m.TimeTrend, v, ndarray.One(dims.Male))
	}),
	"assort.gen": broadcast("assortativity, never through PWID, both sexes", func(m *model.Model, v float64) {
		fillSpans(m.Assort, v, ndarray.All(dims.NSex), ndarray.Span{Lo: raw(dims.PopNever), Hi: raw(dims.PopPWID) + 1})
	}),
	"assort.fsw": broadcast("assortativity, FSW and partners, both sexes", func(m *model.Model, v float64) {
		fillSpans(m.Assort, v, ndarray.All(dims.NSex), ndarray.One(raw(dims.PopFSW)))
	}),
	"assort.msm": broadcast("assortativity, MSM", func(m *model.Model, v float64) {
		m.Assort.Set(v, dims.Male, raw(dims.PopMSM))
	}),
	"assort.tgw": broadcast("assortativity, TGW", func(m *model.Model, v float64) {
		m.Assort.Set(v, dims.Female, raw(dims.PopTGW))
	}),

	"partner.age.mean.female": derived("female partnership age profile mean", func(m *model.Model, v float64) {
		m.AgeProfile.Mean[dims.Female] = ageFromStd(v)
	}),
	"partner.age.mean.male": derived("male partnership age profile mean", func(m *model.Model, v float64) {
		m.AgeProfile.Mean[dims.Male] = ageFromStd(v)
	}),
	"partner.age.size.female": derived("female partnership age profile size", func(m *model.Model, v float64) {
		m.AgeProfile.Size[dims.Female] = v
	}),
	"partner.age.size.male": derived("male partnership age profile size", func(m *model.Model, v float64) {
		m.AgeProfile.Size[dims.Male] = v
	}),
	"partner.pop.fsw": derived("FSW partnership rate ratio", func(m *model.Model, v float64) {
		m.PopRatios.Set(v, raw(dims.PopFSW), dims.Female)
	}),
	"partner.pop.client": derived("client partnership rate ratio", func(m *model.Model, v float64) {
		m.PopRatios.Set(v, raw(dims.PopClients), dims.Male)
	}),
	"partner.pop.msm": derived("MSM partnership rate ratio", func(m *model.Model, v float64) {
		m.PopRatios.Set(v, raw(dims.PopMSM), dims.Male)
	}),
	"partner.pop.tgw": derived("TGW partnership rate ratio", func(m *model.Model, v float64) {
		m.PopRatios.Set(v, raw(dims.PopTGW), dims.Female)
	}),
	"mix.age.mean": derived("opposite-sex partner age gap mean", func(m *model.Model, v float64) {
		m.AgePrefs.DiffMean = v
	}),
	"mix.age.var": derived("opposite-sex partner age gap variance", func(m *model.Model, v float64) {
		m.AgePrefs.DiffVar = v
	}),
	"mix.age.msm.var": derived("male-male partner age gap variance", func(m *model.Model, v float64) {
		m.AgePrefs.MaleVar = v
	}),
}

// ageFromStd maps a value on [0, 1] to the adult age range.
func ageFromStd(v float64) float64 {
	return float64(dims.AgeAdultMax-dims.AgeAdultMin)*v + dims.AgeAdultMin
}

// Known returns every key the injector can handle, sorted.
func Known() []string { return slices.Sorted(maps.Keys(actions)) }

// Lookup returns the action bound to key.
func Lookup(key string) (Action, bool) {
	a, ok := actions[key]
	return a, ok
}
