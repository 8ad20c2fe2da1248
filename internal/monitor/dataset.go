package monitor

// Dataset is a remote raster collection and the band we read from it.
type Dataset struct {
	Collection string
	Band       string
	// Metric is the JSON key the converted value is published under.
	Metric string
	// Description is the human readable label for the annual document.
	Description string
	// Convert turns a raw band value into the published unit.
	Convert func(v float64) float64
}

// KelvinOffset converts between Kelvin and Celsius.
const KelvinOffset = 273.15

// CAMS near-real-time PM2.5 surface concentration, kg/m³ → µg/m³.
var PM25 = Dataset{
	Collection:  "ECMWF/CAMS/NRT",
	Band:        "particulate_matter_d_less_than_25_um_surface",
	Metric:      "pm25_ugm3",
	Description: "CAMS NRT (annual mean over last 365 days)",
	Convert:     func(v float64) float64 { return v * 1e9 },
}

// ERA5-Land hourly 2 m air temperature, K → °C.
var Temperature = Dataset{
	Collection:  "ECMWF/ERA5_LAND/HOURLY",
	Band:        "temperature_2m",
	Metric:      "temperature_c",
	Description: "ERA5-Land (annual mean over last 365 days)",
	Convert:     func(v float64) float64 { return v - KelvinOffset },
}

// Value extracts and converts the dataset band from r.
// A nil return means absent, never zero.
func (d Dataset) Value(r Result) *float64 {
	raw := r.Band(d.Band)
	if raw == nil {
		return nil
	}
	v := *raw
	if d.Convert != nil {
		v = d.Convert(v)
	}
	return &v
}
