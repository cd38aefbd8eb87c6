// Package dsd models drop size distribution (DSD) data from disdrometers.
//
// # Data model
//
// A disdrometer sorts falling drops into diameter classes and reports, per
// sampling interval, a concentration spectrum N(D): the number of drops per
// unit air volume per unit diameter interval, in m⁻³ mm⁻¹. The package
// represents one instrument's diameter classes as an immutable [BinTable]
// (bin centers and widths in mm plus a named terminal fall-velocity
// relation), one time sample as a [Spectrum], and a session's time series as
// a [Container].
//
// # Units and conventions
//
//	diameter D        mm
//	bin width ΔD      mm (the bin's own width; no edge rule is applied)
//	concentration N   m⁻³ mm⁻¹
//	fall velocity v   m/s
//
// Every discretized integral over a spectrum uses the same convention,
// Σᵢ N(Dᵢ)·f(Dᵢ)·ΔDᵢ, so moment ratios used by the gamma estimator and the
// physical moments computed by the moment calculator stay mutually
// consistent.
//
// # Degenerate samples
//
// Rain-free and sparse samples are expected inputs, not errors. Negative or
// NaN concentrations are zeroed on append; all-zero spectra flow through
// moment integrals as zeros and produce sentinel results downstream
// (undefined gamma fits, −∞ dBZ reflectivity) rather than NaN.
//
// # Derived fields
//
// Derived scalars (rain rate, D0, Zh, ...) are identified by [Field] kinds.
// Calculators register themselves on a container; sequences are computed
// lazily, cached, and idempotent. Requesting an unregistered name fails with
// [UnknownFieldError].
package dsd
