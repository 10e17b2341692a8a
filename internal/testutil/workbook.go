package testutil

import "strings"

// SampleWorkbook is a small parameters workbook projecting 1970-1990.
const SampleWorkbook = `
config: {
	first_year: 1970
	final_year: 1990
}

epi: {
	transmit: {
		f2m:     0.6
		m2f:     0.9
		m2m:     1.2
		primary: 9.0
		chronic: 1.0
		symptom: 2.0
		art_vs:  0.0
		art_vf:  0.7
	}
	seed: {
		time: 1975
		prev: 0.001
	}
}

partners: {
	time_trend: {
		female: 0.08
		male:   0.12
	}
	age: {
		mean: {female: 24, male: 28}
		size: {female: 4.5, male: 5.0}
	}
	pop_ratios: {
		never:   {female: 1.0, male: 1.0}
		union:   {female: 0.5, male: 0.6}
		split:   {female: 1.5, male: 1.8}
		pwid:    {female: 2.0, male: 2.0}
		fsw:     {female: 20.0, male: 0.0}
		clients: {female: 0.0, male: 5.0}
		msm:     {female: 0.0, male: 4.0}
		tgw:     {female: 4.0, male: 0.0}
	}
}

mixing: {
	age: {
		diff_mean: 5
		diff_var:  20
		msm_var:   16
	}
	assort: {
		never:   {female: 0.0, male: 0.0}
		union:   {female: 0.0, male: 0.0}
		split:   {female: 0.0, male: 0.0}
		pwid:    {female: 0.3, male: 0.3}
		fsw:     {female: 0.1, male: 0.0}
		clients: {female: 0.0, male: 0.1}
		msm:     {female: 0.0, male: 0.5}
		tgw:     {female: 0.5, male: 0.0}
	}
	levels: 1
}

pwid_force: 0.002

fertility: {
	age: [0.95, 0.85, 0.80, 0.75, 0.70, 0.65, 0.60]
	cd4: [1.0, 0.95, 0.85, 0.75, 0.60, 0.45, 0.35]
	art: [1.0, 0.95, 0.90, 0.85, 0.80, 0.75, 0.70]
	laf: 1.0
}

likelihood: {
	ancss_bias:      0.15
	ancrt_bias:      0.0
	var_infl_site:   0.01
	var_infl_census: 0.01
}

fitting: {
	"seed.prev":       {initial: 0.001, prior: "beta", par1: 1.5, par2: 500}
	"transmit.f2m":    {initial: 0.6, prior: "lognormal", par1: -0.5, par2: 0.5}
	"transmit.m2f":    {initial: 0.9, prior: "lognormal", par1: 0.0, par2: 0.5}
	"partners.male":   {initial: 0.12, prior: "gamma", par1: 12, par2: 100}
	"ancss.bias":      {initial: 0.15, prior: "normal", par1: 0.15, par2: 1.0, fit: false}
}
`

// SampleWorkbookWith returns SampleWorkbook with old replaced by new. It
// panics if old does not occur, so fixtures cannot drift silently.
func SampleWorkbookWith(old, new string) string {
	if !strings.Contains(SampleWorkbook, old) {
		panic("testutil: sample workbook does not contain " + old)
	}
	return strings.Replace(SampleWorkbook, old, new, 1)
}
