// Package nerve decodes payloads produced by the Nerve firmware XBee driver,
// e.g. "w=0.99,i=0.01,j=0.02,k=0.03" or "temp=21.5,baro=1013.2".
package nerve

import (
	"strconv"
	"strings"
)

// Default separators.
const (
	DefaultDefiner   = "="
	DefaultDelimiter = ","
)

// Format specifies how keys and values are separated.
type Format struct {
	// Definer separates a key from its value.
	Definer string
	// Delimiter separates a value from the next key.
	Delimiter string
}

// DefaultFormat is the format used by the firmware.
var DefaultFormat = Format{Definer: DefaultDefiner, Delimiter: DefaultDelimiter}

// Option customizes the Format used by ExtractValue.
type Option func(*Format)

// WithDefiner sets the key/value separator.
func WithDefiner(definer string) Option {
	return func(f *Format) { f.Definer = definer }
}

// WithDelimiter sets the separator between pairs.
func WithDelimiter(delimiter string) Option {
	return func(f *Format) { f.Delimiter = delimiter }
}

// ExtractValue finds the value of key in data. The value runs up to the
// next delimiter or the end of data.
func ExtractValue(data, key string, opts ...Option) (string, bool) {
	format := DefaultFormat
	for _, opt := range opts {
		opt(&format)
	}
	return format.ExtractValue(data, key)
}

// ExtractValue finds the value of key in data.
func (f Format) ExtractValue(data, key string) (string, bool) {
	definition := key + f.Definer
	start := strings.Index(data, definition)
	if start < 0 {
		return "", false
	}
	start += len(definition)
	if f.Delimiter == "" {
		return data[start:], true
	}
	if end := strings.Index(data[start:], f.Delimiter); end >= 0 {
		return data[start : start+end], true
	}
	return data[start:], true
}

// ExtractFloat extracts a value and parses it as a float.
func (f Format) ExtractFloat(data, key string) (float64, bool) {
	val, ok := f.ExtractValue(data, key)
	if !ok {
		return 0, false
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, false
	}
	return num, true
}

// Quaternion is an orientation reported by the IMU.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Environment is a barometer reading.
type Environment struct {
	Temperature float64 `json:"temperature"`
	Pressure    float64 `json:"pressure"`
}

// Reading is the sensor data found in a payload.
type Reading struct {
	Orientation *Quaternion  `json:"orientation,omitempty"`
	Environment *Environment `json:"environment,omitempty"`
}

// Empty tells whether no sensor data was found.
func (r Reading) Empty() bool {
	return r.Orientation == nil && r.Environment == nil
}

// ParseReading extracts sensor data using DefaultFormat. Orientation
// requires all four quaternion components.
func ParseReading(data string) Reading {
	var r Reading
	f := DefaultFormat
	if strings.Contains(data, f.Delimiter+"k"+f.Definer) {
		w, okW := f.ExtractFloat(data, "w")
		x, okX := f.ExtractFloat(data, "i")
		y, okY := f.ExtractFloat(data, "j")
		z, okZ := f.ExtractFloat(data, "k")
		if okW && okX && okY && okZ {
			r.Orientation = &Quaternion{W: w, X: x, Y: y, Z: z}
		}
	}
	if strings.Contains(data, f.Delimiter+"baro"+f.Definer) {
		temp, okT := f.ExtractFloat(data, "temp")
		baro, okB := f.ExtractFloat(data, "baro")
		if okT && okB {
			r.Environment = &Environment{Temperature: temp, Pressure: baro}
		}
	}
	return r
}
