package quality

import (
	"errors"
	"fmt"
	"math"
)

const (
	FeaturePH              = "ph"
	FeatureTemperature     = "temperature_c"
	FeatureDissolvedOxygen = "dissolved_oxygen_mg_l"
	FeatureTDS             = "tds_ppm"
	FeatureSalinity        = "salinity_ppt"
	FeatureAmmonia         = "ammonia_mg_l"
	FeatureNitrite         = "nitrite_mg_l"
	FeatureNitrate         = "nitrate_mg_l"
	FeatureAlkalinity      = "alkalinity_mg_l"
)

var (
	// features is the column order of the training matrix and of every
	// exported artifact. Changing it invalidates previously exported models.
	features = []string{
		FeaturePH,
		FeatureTemperature,
		FeatureDissolvedOxygen,
		FeatureTDS,
		FeatureSalinity,
		FeatureAmmonia,
		FeatureNitrite,
		FeatureNitrate,
		FeatureAlkalinity,
	}

	ErrUnknownFeature = errors.New("unknown feature")
	ErrMissingFeature = errors.New("missing feature")
)

// FeatureNames returns the fixed, ordered list of model features.
func FeatureNames() []string {
	out := make([]string, len(features))
	copy(out, features)
	return out
}

// Reading is a single set of water-quality sensor values.
type Reading struct {
	PH              float64 `json:"ph" yaml:"ph"`
	TemperatureC    float64 `json:"temperature_c" yaml:"temperature_c"`
	DissolvedOxygen float64 `json:"dissolved_oxygen_mg_l" yaml:"dissolved_oxygen_mg_l"`
	TDS             float64 `json:"tds_ppm" yaml:"tds_ppm"`
	Salinity        float64 `json:"salinity_ppt" yaml:"salinity_ppt"`
	Ammonia         float64 `json:"ammonia_mg_l" yaml:"ammonia_mg_l"`
	Nitrite         float64 `json:"nitrite_mg_l" yaml:"nitrite_mg_l"`
	Nitrate         float64 `json:"nitrate_mg_l" yaml:"nitrate_mg_l"`
	Alkalinity      float64 `json:"alkalinity_mg_l" yaml:"alkalinity_mg_l"`
}

// NewReading builds a reading from named values. All nine features are
// required and must be finite; unknown names are rejected.
func NewReading(values map[string]float64) (Reading, error) {
	var r Reading
	for name := range values {
		if r.field(name) == nil {
			return Reading{}, fmt.Errorf("%w: %s", ErrUnknownFeature, name)
		}
	}
	for _, name := range features {
		v, ok := values[name]
		if !ok {
			return Reading{}, fmt.Errorf("%w: %s", ErrMissingFeature, name)
		}
		*r.field(name) = v
	}
	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// Validate checks that every feature holds a finite value.
func (r Reading) Validate() error {
	for _, name := range features {
		v, _ := r.Value(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("feature %s is not finite: %v", name, v)
		}
	}
	return nil
}

// Value returns the value of the named feature.
func (r Reading) Value(name string) (float64, bool) {
	p := r.field(name)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Set assigns the named feature.
func (r *Reading) Set(name string, v float64) error {
	p := r.field(name)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownFeature, name)
	}
	*p = v
	return nil
}

// Vector returns the feature values in FeatureNames order.
func (r Reading) Vector() []float64 {
	out := make([]float64, len(features))
	for i, name := range features {
		out[i], _ = r.Value(name)
	}
	return out
}

func (r *Reading) field(name string) *float64 {
	switch name {
	case FeaturePH:
		return &r.PH
	case FeatureTemperature:
		return &r.TemperatureC
	case FeatureDissolvedOxygen:
		return &r.DissolvedOxygen
	case FeatureTDS:
		return &r.TDS
	case FeatureSalinity:
		return &r.Salinity
	case FeatureAmmonia:
		return &r.Ammonia
	case FeatureNitrite:
		return &r.Nitrite
	case FeatureNitrate:
		return &r.Nitrate
	case FeatureAlkalinity:
		return &r.Alkalinity
	default:
		return nil
	}
}
