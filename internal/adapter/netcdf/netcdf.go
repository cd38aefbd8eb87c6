// Package netcdf persists processed spectrum series as NetCDF datasets, the
// archive format downstream analysis tooling expects. A dataset carries the
// bin geometry, the concentration matrix, and the registered derived field
// sequences; bins, spectra, and exported field sequences all round-trip
// losslessly.
package netcdf

import (
	"errors"
	"fmt"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
)

const (
	dimTime     = "time"
	dimDiameter = "diameter"

	attrInstrument = "instrument"
	attrRelation   = "velocity_relation"
	attrSite       = "site_name"
	attrLat        = "site_latitude"
	attrLon        = "site_longitude"
	attrAlt        = "site_altitude_m"
)

// Export writes a container, its spectra, and every registered derived field
// to a NetCDF file. Fields not yet in the cache are computed here.
func Export(path, instrument string, c *dsd.Container) error {
	w, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create netcdf %s: %w", path, err)
	}

	if err := addGlobalAttrs(w, instrument, c); err != nil {
		w.Close()
		return err
	}
	if err := addVars(w, c); err != nil {
		w.Close()
		return err
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close netcdf %s: %w", path, err)
	}
	return nil
}

func addGlobalAttrs(w *cdf.CDFWriter, instrument string, c *dsd.Container) error {
	keys := []string{attrInstrument, attrRelation}
	vals := map[string]any{
		attrInstrument: instrument,
		attrRelation:   string(c.BinTable().Relation()),
	}
	if loc, ok := c.Location(); ok {
		keys = append(keys, attrSite, attrLat, attrLon, attrAlt)
		vals[attrSite] = loc.Name
		vals[attrLat] = loc.Lat
		vals[attrLon] = loc.Lon
		vals[attrAlt] = loc.AltitudeM
	}
	attrs, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return err
	}
	return w.AddGlobalAttrs(attrs)
}

func addVars(w *cdf.CDFWriter, c *dsd.Container) error {
	tbl := c.BinTable()

	if err := w.AddVar(dimDiameter, api.Variable{
		Values:     tbl.Centers(),
		Dimensions: []string{dimDiameter},
		Attributes: unitAttrs("mm"),
	}); err != nil {
		return err
	}
	if err := w.AddVar("diameter_width", api.Variable{
		Values:     tbl.Widths(),
		Dimensions: []string{dimDiameter},
		Attributes: unitAttrs("mm"),
	}); err != nil {
		return err
	}

	spectra := c.Spectra()
	times := make([]int64, len(spectra))
	nd := make([][]float64, len(spectra))
	for i, s := range spectra {
		times[i] = s.Timestamp.Unix()
		nd[i] = s.Nd
	}
	if err := w.AddVar(dimTime, api.Variable{
		Values:     times,
		Dimensions: []string{dimTime},
		Attributes: unitAttrs("seconds since 1970-01-01 00:00:00 UTC"),
	}); err != nil {
		return err
	}
	if err := w.AddVar("nd", api.Variable{
		Values:     nd,
		Dimensions: []string{dimTime, dimDiameter},
		Attributes: unitAttrs("m-3 mm-1"),
	}); err != nil {
		return err
	}

	// Registered fields are computed as needed; restored sequences without a
	// calculator are exported as-is, so an imported container re-exports
	// without loss.
	for _, field := range dsd.Fields() {
		vals, err := c.GetField(string(field))
		if err != nil {
			if errors.As(err, new(*dsd.UnknownFieldError)) {
				continue
			}
			return err
		}
		if err := w.AddVar(string(field), api.Variable{
			Values:     vals,
			Dimensions: []string{dimTime},
		}); err != nil {
			return err
		}
	}
	return nil
}

func unitAttrs(units string) api.AttributeMap {
	attrs, err := util.NewOrderedMap([]string{"units"}, map[string]any{"units": units})
	if err != nil {
		return nil
	}
	return attrs
}

// Import reads a NetCDF dataset written by Export back into a container,
// restoring the bin geometry, instrument name, spectrum series, and every
// exported derived field sequence. Restored sequences serve reads directly,
// so fields computed against out-of-band configuration (the radar moments'
// scattering table) survive the round trip without it.
func Import(path string) (string, *dsd.Container, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	defer nc.Close()

	instrument, err := stringAttr(nc, attrInstrument)
	if err != nil {
		return "", nil, err
	}
	relation, err := stringAttr(nc, attrRelation)
	if err != nil {
		return "", nil, err
	}

	centers, err := floatVar(nc, dimDiameter)
	if err != nil {
		return "", nil, err
	}
	widths, err := floatVar(nc, "diameter_width")
	if err != nil {
		return "", nil, err
	}

	tbl, err := dsd.NewBinTable(centers, widths, dsd.VelocityRelation(relation))
	if err != nil {
		return "", nil, err
	}

	var opts []dsd.Option
	if name, err := stringAttr(nc, attrSite); err == nil {
		loc := dsd.Location{Name: name}
		loc.Lat, _ = floatAttr(nc, attrLat)
		loc.Lon, _ = floatAttr(nc, attrLon)
		loc.AltitudeM, _ = floatAttr(nc, attrAlt)
		opts = append(opts, dsd.WithLocation(loc))
	}
	c := dsd.NewContainer(tbl, opts...)

	times, err := intVar(nc, dimTime)
	if err != nil {
		return "", nil, err
	}
	ndGetter, err := nc.GetVarGetter("nd")
	if err != nil {
		return "", nil, fmt.Errorf("read nd from %s: %w", path, err)
	}
	ndRaw, err := ndGetter.Values()
	if err != nil {
		return "", nil, fmt.Errorf("read nd from %s: %w", path, err)
	}
	nd, ok := ndRaw.([][]float64)
	if !ok {
		return "", nil, fmt.Errorf("read nd from %s: unexpected type %T", path, ndRaw)
	}
	if len(nd) != len(times) {
		return "", nil, &dsd.ShapeError{Got: len(nd), Want: len(times)}
	}

	for i, row := range nd {
		s := dsd.Spectrum{Timestamp: time.Unix(times[i], 0).UTC(), Nd: row}
		if err := c.Append(s); err != nil {
			return "", nil, err
		}
	}

	// Bring exported field sequences back into the cache. Absent fields were
	// never exported; present ones must match the spectrum count.
	for _, field := range dsd.Fields() {
		vals, err := floatVar(nc, string(field))
		if err != nil {
			continue
		}
		if err := c.RestoreField(field, vals); err != nil {
			return "", nil, err
		}
	}
	return instrument, c, nil
}

func stringAttr(nc api.Group, name string) (string, error) {
	v, ok := nc.Attributes().Get(name)
	if !ok {
		return "", fmt.Errorf("missing global attribute %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("global attribute %q: unexpected type %T", name, v)
	}
	return s, nil
}

func floatAttr(nc api.Group, name string) (float64, error) {
	v, ok := nc.Attributes().Get(name)
	if !ok {
		return 0, fmt.Errorf("missing global attribute %q", name)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("global attribute %q: unexpected type %T", name, v)
	}
	return f, nil
}

func floatVar(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	out, ok := v.([]float64)
	if !ok {
		return nil, fmt.Errorf("read %s: unexpected type %T", name, v)
	}
	return out, nil
}

func intVar(nc api.Group, name string) ([]int64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	out, ok := v.([]int64)
	if !ok {
		return nil, fmt.Errorf("read %s: unexpected type %T", name, v)
	}
	return out, nil
}
