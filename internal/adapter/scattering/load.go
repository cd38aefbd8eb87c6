package scattering

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/couchcryptid/disdro-dsd-service/internal/radar"
)

// complexJSON carries a complex amplitude as a real/imaginary pair, since
// JSON has no complex type.
type complexJSON struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

func (c complexJSON) value() complex128 { return complex(c.Re, c.Im) }

type entryJSON struct {
	DiameterMM float64     `json:"diameter_mm"`
	BackH      complexJSON `json:"back_h"`
	BackV      complexJSON `json:"back_v"`
	FwdH       complexJSON `json:"fwd_h"`
	FwdV       complexJSON `json:"fwd_v"`
}

type tableJSON struct {
	WavelengthMM float64     `json:"wavelength_mm"`
	TemperatureC float64     `json:"temperature_c"`
	Entries      []entryJSON `json:"entries"`
}

// Load reads a scattering table from a JSON file, the interchange format
// used for grids precomputed offline by a T-matrix code.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scattering table: %w", err)
	}

	var file tableJSON
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse scattering table %s: %w", path, err)
	}

	diameters := make([]float64, len(file.Entries))
	amps := make([]radar.Amplitudes, len(file.Entries))
	for i, e := range file.Entries {
		diameters[i] = e.DiameterMM
		amps[i] = radar.Amplitudes{
			BackH: e.BackH.value(),
			BackV: e.BackV.value(),
			FwdH:  e.FwdH.value(),
			FwdV:  e.FwdV.value(),
		}
	}

	t, err := NewTable(file.WavelengthMM, file.TemperatureC, diameters, amps)
	if err != nil {
		return nil, fmt.Errorf("scattering table %s: %w", path, err)
	}
	return t, nil
}
