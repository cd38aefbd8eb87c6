package dsd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RawSpectrumRecord is the normalized per-sample payload an instrument
// reader publishes: a timestamp and an ordered concentration sequence
// aligned to a named instrument's bin table. The core never sees the
// instrument's native binary or text layout.
type RawSpectrumRecord struct {
	Instrument string    `json:"instrument"` // "parsivel", "2dvd", or "jwd"
	Time       time.Time `json:"time"`
	Nd         []float64 `json:"nd"`               // m⁻³ mm⁻¹, one per bin
	Counts     []float64 `json:"counts,omitempty"` // raw drop counts, optional
}

// ParseRawSpectrum deserializes a raw event's value into a spectrum record.
func ParseRawSpectrum(value []byte) (RawSpectrumRecord, error) {
	var rec RawSpectrumRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return RawSpectrumRecord{}, fmt.Errorf("parse raw spectrum: %w", err)
	}
	return rec, nil
}

// Spectrum converts the wire record into a domain spectrum.
func (r RawSpectrumRecord) Spectrum() Spectrum {
	return Spectrum{Timestamp: r.Time, Nd: r.Nd, Counts: r.Counts}
}

// GammaFit is the wire form of a gamma fit annotation. Mu and Lambda are nil
// when the fit is undefined (rain-free or too-sparse sample) so consumers can
// tell an undefined fit from a near-zero one; JSON cannot carry NaN.
type GammaFit struct {
	N0            float64  `json:"n0"`
	Mu            *float64 `json:"mu,omitempty"`
	Lambda        *float64 `json:"lambda,omitempty"`
	Method        string   `json:"method"`
	GoodnessOfFit float64  `json:"goodness_of_fit"`
}

// RadarMoments is the wire form of the polarimetric radar moments. Zh and
// Zdr are nil for no-signal samples (all-zero spectra integrate to −∞ dBZ).
type RadarMoments struct {
	Zh  *float64 `json:"zh,omitempty"`  // dBZ
	Zdr *float64 `json:"zdr,omitempty"` // dB
	Kdp float64  `json:"kdp"`           // deg/km
	Ai  float64  `json:"ai"`            // dB/km
}

// ProductRecord is the derived-product payload written to the sink topic,
// one per processed spectrum.
type ProductRecord struct {
	Instrument string    `json:"instrument"`
	Time       time.Time `json:"time"`

	RainRate float64 `json:"rain_rate"` // mm/h
	LWC      float64 `json:"lwc"`       // g/m³
	D0       float64 `json:"d0"`        // mm
	Nw       float64 `json:"nw"`        // mm⁻¹ m⁻³
	Nt       float64 `json:"nt"`        // m⁻³
	Dm       float64 `json:"dm"`        // mm
	Dmax     float64 `json:"dmax"`      // mm

	Fit   GammaFit      `json:"fit"`
	Radar *RadarMoments `json:"radar,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// Stamp sets ProcessedAt from the package clock.
func (p *ProductRecord) Stamp() {
	p.ProcessedAt = clock.Now()
}
