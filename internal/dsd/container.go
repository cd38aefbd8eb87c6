package dsd

import (
	"fmt"
	"sort"
	"sync"
)

// Field identifies a derived scalar sequence computed from the spectra of a
// container, one value per time sample.
type Field string

// Derived field kinds. Physical and gamma-fit fields are registered by the
// moment calculator and estimator packages; radar fields by the radar moment
// processor.
const (
	FieldRainRate Field = "rain_rate" // mm/h
	FieldLWC      Field = "lwc"       // g/m³
	FieldD0       Field = "d0"        // mm, median volume diameter
	FieldNw       Field = "nw"        // mm⁻¹ m⁻³, normalized intercept
	FieldNt       Field = "nt"        // m⁻³, total concentration
	FieldDm       Field = "dm"        // mm, mass-weighted mean diameter
	FieldDmax     Field = "dmax"      // mm, largest observed drop

	FieldN0     Field = "n0"      // gamma intercept
	FieldMu     Field = "mu"      // gamma shape
	FieldLambda Field = "lambda"  // gamma slope, mm⁻¹
	FieldFitGoF Field = "fit_gof" // goodness of fit, 0..1

	FieldZh  Field = "zh"  // dBZ
	FieldZdr Field = "zdr" // dB
	FieldKdp Field = "kdp" // deg/km
	FieldAi  Field = "ai"  // dB/km
)

// Fields returns every defined derived field kind.
func Fields() []Field {
	return []Field{
		FieldRainRate, FieldLWC, FieldD0, FieldNw, FieldNt, FieldDm, FieldDmax,
		FieldN0, FieldMu, FieldLambda, FieldFitGoF,
		FieldZh, FieldZdr, FieldKdp, FieldAi,
	}
}

// FieldCalculator computes one derived scalar for a single spectrum.
// Implementations must be safe for concurrent use; the worker pool calls
// Compute for many spectra at once against the same shared bin table.
type FieldCalculator interface {
	Compute(tbl *BinTable, s Spectrum) (float64, error)
}

// FieldCalculatorFunc adapts a function to the FieldCalculator interface.
type FieldCalculatorFunc func(tbl *BinTable, s Spectrum) (float64, error)

func (f FieldCalculatorFunc) Compute(tbl *BinTable, s Spectrum) (float64, error) {
	return f(tbl, s)
}

// Location records where the instrument that produced a container sits.
type Location struct {
	Lat       float64
	Lon       float64
	AltitudeM float64
	Name      string
}

// Container owns a time-ordered sequence of spectra aligned to one bin
// table, plus lazily computed derived field sequences. Spectra are appended
// during ingestion; derived fields are computed on demand and cached, so
// repeated reads of the same field are idempotent.
type Container struct {
	table    *BinTable
	unsorted bool
	location *Location

	mu      sync.RWMutex
	spectra []Spectrum
	calcs   map[Field]FieldCalculator
	fields  map[Field][]float64
}

// Option configures a container at construction time.
type Option func(*Container)

// WithUnsorted disables the strict timestamp ordering check on Append, for
// sources that deliver samples out of order by design.
func WithUnsorted() Option {
	return func(c *Container) { c.unsorted = true }
}

// WithLocation attaches an instrument location record.
func WithLocation(loc Location) Option {
	return func(c *Container) { c.location = &loc }
}

// NewContainer creates an empty container bound to the given bin table.
func NewContainer(table *BinTable, opts ...Option) *Container {
	c := &Container{
		table:  table,
		calcs:  make(map[Field]FieldCalculator),
		fields: make(map[Field][]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BinTable returns the shared, read-only bin table reference.
func (c *Container) BinTable() *BinTable { return c.table }

// Location returns the instrument location, if one was attached.
func (c *Container) Location() (Location, bool) {
	if c.location == nil {
		return Location{}, false
	}
	return *c.location, true
}

// Append adds a spectrum to the end of the series. The spectrum is sanitized
// (negative and NaN concentrations zeroed). It fails with a ShapeError if
// the concentration count does not match the bin table, and with an
// OrderError if the timestamp precedes the last appended one while the
// container is in strict ordering mode. The container never re-sorts:
// ordering is the caller's contract, and silently fixing it would hide
// upstream bugs.
func (c *Container) Append(s Spectrum) error {
	if len(s.Nd) != c.table.Len() {
		return &ShapeError{Got: len(s.Nd), Want: c.table.Len()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.unsorted && len(c.spectra) > 0 {
		last := c.spectra[len(c.spectra)-1].Timestamp
		if s.Timestamp.Before(last) {
			return &OrderError{Timestamp: s.Timestamp, Last: last}
		}
	}

	c.spectra = append(c.spectra, s.Sanitize())
	// Any cached field sequence is now stale.
	for k := range c.fields {
		delete(c.fields, k)
	}
	return nil
}

// Len returns the number of spectra in the series.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.spectra)
}

// Spectrum returns the spectrum at index i.
func (c *Container) Spectrum(i int) Spectrum {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spectra[i]
}

// Spectra returns the raw spectrum sequence. The returned slice is shared;
// consumers must treat it as read-only.
func (c *Container) Spectra() []Spectrum {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spectra
}

// RegisterField registers the calculator that produces the given derived
// field kind. Registering a kind again replaces the calculator and drops any
// cached sequence computed by the previous one.
func (c *Container) RegisterField(kind Field, calc FieldCalculator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calcs[kind] = calc
	delete(c.fields, kind)
}

// RegisteredFields returns the registered derived field kinds in sorted order.
func (c *Container) RegisteredFields() []Field {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Field, 0, len(c.calcs))
	for k := range c.calcs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GetField returns the derived scalar sequence for a field name, computing
// and caching it if absent. The returned slice is the cached sequence and
// must be treated as read-only; repeated calls return identical values. It
// fails with an UnknownFieldError for unregistered names, and propagates the
// first per-spectrum computation error (e.g. a scattering lookup failure)
// rather than substituting values.
func (c *Container) GetField(name string) ([]float64, error) {
	kind := Field(name)

	c.mu.RLock()
	if vals, ok := c.fields[kind]; ok {
		c.mu.RUnlock()
		return vals, nil
	}
	calc, ok := c.calcs[kind]
	spectra := c.spectra
	c.mu.RUnlock()
	if !ok {
		return nil, &UnknownFieldError{Name: name}
	}

	vals := make([]float64, len(spectra))
	for i, s := range spectra {
		v, err := calc.Compute(c.table, s)
		if err != nil {
			return nil, fmt.Errorf("compute %s at %s: %w", name, s.Timestamp.Format("2006-01-02T15:04:05Z07:00"), err)
		}
		vals[i] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have raced the computation; keep the first result
	// so callers always observe one identical sequence.
	if cached, ok := c.fields[kind]; ok {
		return cached, nil
	}
	// An Append may have raced the computation; the snapshot result is still
	// valid for the caller, but caching it would pin a sequence shorter than
	// the spectrum series.
	if len(vals) != len(c.spectra) {
		return vals, nil
	}
	c.fields[kind] = vals
	return vals, nil
}

// FieldAt computes the derived value of one field for the spectrum at index
// i, bypassing the cache. Parallel drivers use it to fill disjoint positions
// of a sequence before publishing it with StoreField.
func (c *Container) FieldAt(kind Field, i int) (float64, error) {
	c.mu.RLock()
	calc, ok := c.calcs[kind]
	s := c.spectra[i]
	c.mu.RUnlock()
	if !ok {
		return 0, &UnknownFieldError{Name: string(kind)}
	}
	return calc.Compute(c.table, s)
}

// RestoreField places a previously computed field sequence into the cache
// without requiring a registered calculator. Deserializers use it to bring
// exported sequences back, so reads serve the stored values instead of
// recomputing fields whose inputs (e.g. the scattering configuration behind
// the radar moments) are not stored alongside the spectra. A later Append
// invalidates restored sequences like any other cached field.
func (c *Container) RestoreField(kind Field, vals []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(vals) != len(c.spectra) {
		return &ShapeError{Got: len(vals), Want: len(c.spectra)}
	}
	c.fields[kind] = vals
	return nil
}

// StoreField publishes a fully computed field sequence into the cache. The
// sequence length must match the spectrum count.
func (c *Container) StoreField(kind Field, vals []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(vals) != len(c.spectra) {
		return &ShapeError{Got: len(vals), Want: len(c.spectra)}
	}
	if _, ok := c.calcs[kind]; !ok {
		return &UnknownFieldError{Name: string(kind)}
	}
	c.fields[kind] = vals
	return nil
}
