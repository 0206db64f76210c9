// Package temp implements the fixed-point temperature format shared by the
// controller, its sensors and its persisted records.
//
// A Fixed value is a signed 7.9 fixed-point number: the raw int16 counts
// 1/512 °C. Products are formed in Wide (23.9) and narrowed back with
// saturation. Temp wraps a Fixed with an explicit "undefined" state; the raw
// sentinel only appears in the wire encoding (see Raw and Decode).
package temp

import (
	"encoding/json"
	"math"
	"strconv"
)

// FractionBits is the number of fractional bits in Fixed and Wide.
const FractionBits = 9

// Scale is the raw value of one degree.
const Scale = 1 << FractionBits

const (
	// Degree is one degree Celsius.
	Degree Fixed = Scale

	// MaxValue and MinValue bound a defined temperature. The most negative
	// int16 is reserved for the undefined sentinel.
	MaxValue Fixed = math.MaxInt16
	MinValue Fixed = math.MinInt16 + 1

	sentinel int16 = math.MinInt16
)

// Fixed is a 7.9 fixed-point temperature or temperature offset.
type Fixed int16

// Wide is a 23.9 fixed-point intermediate used to avoid overflow.
type Wide int32

// FromCelsius converts degrees Celsius to Fixed, rounding to the nearest
// 1/512 and saturating at the representable range.
func FromCelsius(c float64) Fixed {
	return Wide(math.Round(c * Scale)).Fixed()
}

// Celsius returns f in degrees Celsius.
func (f Fixed) Celsius() float64 {
	return float64(f) / Scale
}

// Wide widens f without loss.
func (f Fixed) Wide() Wide {
	return Wide(f)
}

// Add returns f+o, saturating at MinValue and MaxValue.
func (f Fixed) Add(o Fixed) Fixed {
	return (f.Wide() + o.Wide()).Fixed()
}

func (f Fixed) String() string {
	return strconv.FormatFloat(f.Celsius(), 'f', 2, 64)
}

// Fixed narrows w, saturating at MinValue and MaxValue.
func (w Wide) Fixed() Fixed {
	switch {
	case w > Wide(MaxValue):
		return MaxValue
	case w < Wide(MinValue):
		return MinValue
	}
	return Fixed(w)
}

// Temp is a temperature that may be undefined, e.g. a setpoint that has not
// been supplied yet or a reading from a disconnected sensor. The zero value is
// undefined.
type Temp struct {
	v       Fixed
	defined bool
}

// Undefined returns the undefined temperature.
func Undefined() Temp {
	return Temp{}
}

// Of returns a defined temperature with value v.
func Of(v Fixed) Temp {
	if v < MinValue {
		v = MinValue
	}
	return Temp{v: v, defined: true}
}

// Celsius returns a defined temperature of c degrees Celsius.
func Celsius(c float64) Temp {
	return Of(FromCelsius(c))
}

// Decode converts a raw wire value, mapping the sentinel to Undefined.
func Decode(raw int16) Temp {
	if raw == sentinel {
		return Undefined()
	}
	return Of(Fixed(raw))
}

// Defined reports whether t holds a value.
func (t Temp) Defined() bool {
	return t.defined
}

// Value returns the fixed-point value and whether t is defined.
func (t Temp) Value() (Fixed, bool) {
	return t.v, t.defined
}

// Raw returns the wire encoding of t.
func (t Temp) Raw() int16 {
	if !t.defined {
		return sentinel
	}
	return int16(t.v)
}

// Add offsets a defined temperature. Undefined stays undefined.
func (t Temp) Add(offset Fixed) Temp {
	if !t.defined {
		return t
	}
	return Of(t.v.Add(offset))
}

func (t Temp) String() string {
	if !t.defined {
		return "undefined"
	}
	return t.v.String()
}

// MarshalJSON encodes t as degrees Celsius, or null when undefined.
func (t Temp) MarshalJSON() ([]byte, error) {
	if !t.defined {
		return []byte("null"), nil
	}
	return []byte(t.v.String()), nil
}

// UnmarshalJSON accepts a number of degrees Celsius or null.
func (t *Temp) UnmarshalJSON(data []byte) error {
	var c *float64
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	if c == nil {
		*t = Undefined()
		return nil
	}
	*t = Celsius(*c)
	return nil
}
