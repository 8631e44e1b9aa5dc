// Package domain models river water-quality sensor readings and the Water
// Quality Index (WQI) derived from them.
//
// # Data Source
//
// Readings come from river monitoring stations sampled periodically. The
// upstream feed publishes each sample as flat JSON keyed by the column names of
// the DOE river monitoring sheets (" ID STN (2016)", "SMP-DAT", "DO", "BOD", ...).
// [ParseRawReading] turns one such row into a validated [Reading].
//
// # Dissolved Oxygen
//
// DO arrives either as a concentration (mg/L, which needs the water temperature
// to be converted) or directly as percent saturation:
//
//	DOsat(t)  = 14.652 − 0.41022·t + 0.0079910·t² − 0.000077774·t³   (mg/L at 1 atm)
//	DO%       = DO / DOsat(t) · 100                                  (0 when DOsat = 0)
//
// A [Reading] carries exactly one of the two forms, see [DissolvedOxygen].
//
// # Water Quality Index
//
// Each parameter is mapped to a 0–100 sub-index by the DOE Malaysia
// formulas (see subindex.go), then combined with fixed weights:
//
//	WQI = 0.22·SIDO + 0.19·SIBOD + 0.16·SICOD + 0.15·SIAN + 0.16·SISS + 0.12·SIpH
//
// Two independent bandings label the result:
//
//	Class:  ≥92 I | ≥76 II | ≥51 III | ≥31 IV | else V
//	Status: ≥80 Clean | ≥60 Slightly Polluted | else Polluted
//
// # Critical Bands and Alerts
//
// Alerting does not use sub-indices. Each raw value is placed in one of five
// bands (Excellent, Good, Moderate, Poor, Very Poor) by parameter-specific
// thresholds, see [BandOf]. A Very Poor parameter becomes a pending alert in the
// station's [Session]; acknowledging it persists at most one [AlertRecord] per
// [AlertKey] (station, parameter, sample time).
package domain
