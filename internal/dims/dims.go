// Package dims defines the index layout shared with the projection engine.
//
// The engine stratifies adults by assigned sex at birth, single year of age
// and behavioral risk group. Input data (workbooks, surveillance CSVs) is
// keyed by gender identity instead. AssignedSex is the one place where the
// two layouts are reconciled; every remap and template lookup goes through it.
package dims

// Sex at birth.
const (
	Female = 0
	Male   = 1
	NSex   = 2
)

// Sex with male circumcision status, as used by population output arrays.
const (
	SexMCFemale    = 0
	SexMCMaleUncut = 1
	SexMCMaleCirc  = 2
	NSexMC         = 3
)

// Ages. The top adult age bin (80) is open-ended.
const (
	AgeAdultMin = 15
	AgeAdultMax = 80
	NAgeAdult   = AgeAdultMax - AgeAdultMin + 1
	NAgeChild   = AgeAdultMin
	NAge        = NAgeChild + NAgeAdult
)

// Behavioral risk groups.
const (
	PopNoSex   = 0
	PopNever   = 1
	PopUnion   = 2
	PopSplit   = 3
	PopPWID    = 4
	PopFSW     = 5
	PopClients = 6
	PopMSM     = 7
	PopTGW     = 8
	NPop       = 9

	// NRawPop counts the risk groups present in input layouts, which omit
	// PopNoSex. Raw index r corresponds to engine index r+1.
	NRawPop = NPop - 1
)

// HIV disease and care axes.
const (
	NHIVAdult = 7 // CD4 stages
	NDTX      = 8 // care states
	NHIVChild = 7
)

// Fertility age groups 15-19 through 45-49.
const NAgeFert = 7

// Input years. Workbook time series always cover this range; the projection
// window is a subset.
const (
	InputYearFirst = 1970
	InputYearFinal = 2050
	NInputYears    = InputYearFinal - InputYearFirst + 1
)

// AssignedSex maps a gender-identity sex index to the engine's assigned-sex
// index for risk group pop. Transgender women are reported on the female
// axis but tracked by the engine on the male axis, and vice versa.
func AssignedSex(sex, pop int) int {
	if pop == PopTGW {
		return NSex - 1 - sex
	}
	return sex
}

// EngineSexRange returns the [lo, hi) range on the circumcision-stratified
// sex axis covering assigned sex s.
func EngineSexRange(s int) (lo, hi int) {
	if s == Female {
		return SexMCFemale, SexMCFemale + 1
	}
	return SexMCMaleUncut, SexMCMaleCirc + 1
}

// EnginePop converts a raw risk-group index to the engine's index.
func EnginePop(raw int) int { return raw + 1 }
