// Package workbook loads the parameters workbook.
//
// A workbook is a CUE document validated against the embedded #Workbook
// schema (schema.cue). Yearly series may be written as one value or as 81
// values covering 1970-2050:
//
//	partners: time_trend: {
//		female: 0.08
//		male:   [0.10, 0.11, ...]
//	}
//
// The fitting section declares every parameter the calibrator may vary,
// with its initial value and prior; Catalog turns it into a prior.Set.
package workbook
