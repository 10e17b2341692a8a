// Package prior declares the fittable parameters and their prior densities.
//
// Each Parameter carries a prior family (beta, gamma, lognormal or normal),
// two shape constants and a support interval. The support is padded inward
// by Padding from any finite boundary of the family's domain.
//
// A Set fixes the lexicographic key ordering that maps the optimizer's flat
// vector to named parameters:
//
//	set, _ := prior.NewSet(params...)
//	vec := set.InitialVector()           // vec[i] belongs to set.Keys()[i]
//	lp, _ := set.VectorLogDensity(vec)
//
// Unsupported families and shape constants outside a family's domain are
// rejected when the parameter is built, so evaluation never fails.
package prior
