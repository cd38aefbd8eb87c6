package dsd

// Instrument preset names accepted on the wire (RawSpectrumRecord.Instrument).
const (
	InstrumentParsivel      = "parsivel"
	Instrument2DVD          = "2dvd"
	InstrumentJossWaldvogel = "jwd"
)

// parsivelCenters are the 32 OTT Parsivel size-class center diameters in mm.
var parsivelCenters = []float64{
	0.062, 0.187, 0.312, 0.437, 0.562, 0.687, 0.812, 0.937, 1.062, 1.187,
	1.375, 1.625, 1.875, 2.125, 2.375,
	2.750, 3.250, 3.750, 4.250, 4.750,
	5.500, 6.500, 7.500, 8.500, 9.500,
	11.000, 13.000, 15.000, 17.000, 19.000,
	21.500, 24.500,
}

var parsivelWidths = []float64{
	0.125, 0.125, 0.125, 0.125, 0.125, 0.125, 0.125, 0.125, 0.125, 0.125,
	0.250, 0.250, 0.250, 0.250, 0.250,
	0.500, 0.500, 0.500, 0.500, 0.500,
	1.000, 1.000, 1.000, 1.000, 1.000,
	2.000, 2.000, 2.000, 2.000, 2.000,
	3.000, 3.000,
}

// jwdCenters are the 20 Joss-Waldvogel RD-69 channel center diameters in mm.
var jwdCenters = []float64{
	0.359, 0.455, 0.551, 0.656, 0.771, 0.913, 1.116, 1.331, 1.506, 1.665,
	1.912, 2.259, 2.584, 2.869, 3.198, 3.544, 3.916, 4.350, 4.859, 5.373,
}

var jwdWidths = []float64{
	0.092, 0.100, 0.091, 0.119, 0.112, 0.172, 0.233, 0.197, 0.153, 0.166,
	0.329, 0.364, 0.286, 0.284, 0.374, 0.319, 0.423, 0.446, 0.572, 0.455,
}

// ParsivelBins returns the bin table for an OTT Parsivel laser disdrometer.
func ParsivelBins() *BinTable {
	return mustBins(parsivelCenters, parsivelWidths, VelocityAtlas1973)
}

// TwoDVDBins returns the bin table for a 2D-video disdrometer: 50 uniform
// 0.2 mm classes from 0.1 to 9.9 mm.
func TwoDVDBins() *BinTable {
	centers := make([]float64, 50)
	widths := make([]float64, 50)
	for i := range centers {
		centers[i] = 0.1 + 0.2*float64(i)
		widths[i] = 0.2
	}
	return mustBins(centers, widths, VelocityAtlasUlbrich)
}

// JossWaldvogelBins returns the bin table for a Joss-Waldvogel RD-69 impact
// disdrometer.
func JossWaldvogelBins() *BinTable {
	return mustBins(jwdCenters, jwdWidths, VelocityAtlasUlbrich)
}

// BinTableFor selects the preset bin table for a named instrument type.
func BinTableFor(instrument string) (*BinTable, error) {
	switch instrument {
	case InstrumentParsivel:
		return ParsivelBins(), nil
	case Instrument2DVD:
		return TwoDVDBins(), nil
	case InstrumentJossWaldvogel:
		return JossWaldvogelBins(), nil
	default:
		return nil, &ConfigurationError{Reason: "unknown instrument " + instrument}
	}
}

func mustBins(centers, widths []float64, rel VelocityRelation) *BinTable {
	t, err := NewBinTable(centers, widths, rel)
	if err != nil {
		panic(err) // preset tables are compile-time constants
	}
	return t
}
