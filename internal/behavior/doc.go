// Package behavior derives the engine's contact-rate and partner-mixing
// arrays from survey-style behavioral inputs.
//
// PartnerRates combines a lifetime-partnership time trend, a beta-shaped
// age profile and risk-group rate ratios into a (year × sex × age × risk
// group) array. AgeMixing fits a shifted Fisk distribution to the
// opposite-sex age gap and a zero-mean normal to the male-male age gap,
// then discretizes both into a row-normalized partner age tensor.
//
// Inputs arrive keyed by gender identity. RemapRatios, RemapAssort and
// RemapMixLevels move them to the engine's assigned-sex layout through a
// single cell mapping so the three never disagree about transgender women.
//
// Derived arrays are always rebuilt from scratch; nothing here patches a
// previous result.
package behavior
