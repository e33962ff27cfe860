package netcdf

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// attributeMap is the slice of the NetCDF attribute API the decoder needs;
// api.AttributeMap satisfies it.
type attributeMap interface {
	Get(key string) (any, bool)
}

// decodeCube converts a raw 3-dimensional variable read into float64,
// applying the CF packing attributes when present: fill values become NaN,
// then value = raw*scale_factor + add_offset.
func decodeCube(raw any, attrs attributeMap) ([][][]float64, error) {
	scale, hasScale := attrFloat(attrs, "scale_factor")
	offset, hasOffset := attrFloat(attrs, "add_offset")
	if !hasScale {
		scale = 1
	}
	if !hasOffset {
		offset = 0
	}
	fill, hasFill := attrFloat(attrs, "_FillValue", "missing_value")

	decode := func(v float64) float64 {
		if math.IsNaN(v) || (hasFill && v == fill) {
			return math.NaN()
		}
		return v*scale + offset
	}

	switch data := raw.(type) {
	case [][][]float64:
		return mapCube(data, decode, func(v float64) float64 { return v }), nil
	case [][][]float32:
		return mapCube(data, decode, func(v float32) float64 { return float64(v) }), nil
	case [][][]int16:
		return mapCube(data, decode, func(v int16) float64 { return float64(v) }), nil
	case [][][]int32:
		return mapCube(data, decode, func(v int32) float64 { return float64(v) }), nil
	default:
		return nil, fmt.Errorf("unsupported grid value type %T", raw)
	}
}

// mapCube converts a typed cube to float64 through conv, then applies decode.
func mapCube[T any](data [][][]T, decode func(float64) float64, conv func(T) float64) [][][]float64 {
	out := make([][][]float64, len(data))
	for t := range data {
		out[t] = make([][]float64, len(data[t]))
		for i := range data[t] {
			row := make([]float64, len(data[t][i]))
			for j, v := range data[t][i] {
				row[j] = decode(conv(v))
			}
			out[t][i] = row
		}
	}
	return out
}

// coordValues reads a 1-dimensional coordinate variable as float64.
func coordValues(group api.Group, name string) ([]float64, error) {
	vg, err := group.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("missing coordinate %s: %w", name, err)
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("read coordinate %s: %w", name, err)
	}
	vals, err := toFloat64s(raw)
	if err != nil {
		return nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	return vals, nil
}

// decodeTimes reads the time coordinate and converts it to absolute UTC
// timestamps using its CF units attribute, e.g.
// "hours since 1900-01-01 00:00:00.0" or "seconds since 1970-01-01".
func decodeTimes(vg api.VarGetter) ([]time.Time, error) {
	units, ok := attrString(vg.Attributes(), "units")
	if !ok {
		return nil, fmt.Errorf("time coordinate has no units attribute")
	}
	step, epoch, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}

	raw, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("read time coordinate: %w", err)
	}
	offsets, err := toFloat64s(raw)
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, len(offsets))
	for i, v := range offsets {
		// Offsets in the hundreds of thousands of hours would lose nanosecond
		// precision in a single float64 multiply, so split off the whole part.
		whole, frac := math.Modf(v)
		times[i] = epoch.Add(time.Duration(whole)*step + time.Duration(frac*float64(step))).UTC()
	}
	return times, nil
}

// parseTimeUnits splits a CF time units string into the step duration and the
// epoch it counts from.
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	fields := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(fields) != 2 {
		return 0, time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}

	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(fields[0])) {
	case "seconds", "second":
		step = time.Second
	case "minutes", "minute":
		step = time.Minute
	case "hours", "hour":
		step = time.Hour
	case "days", "day":
		step = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", fields[0])
	}

	epochStr := strings.TrimSpace(fields[1])
	for _, layout := range []string{
		"2006-01-02 15:04:05.0",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	} {
		if epoch, err := time.Parse(layout, epochStr); err == nil {
			return step, epoch.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("unsupported time epoch %q", epochStr)
}

// toFloat64s coerces a 1-dimensional variable read into []float64.
func toFloat64s(raw any) ([]float64, error) {
	switch data := raw.(type) {
	case []float64:
		return data, nil
	case []float32:
		return convertSlice(data, func(v float32) float64 { return float64(v) }), nil
	case []int64:
		return convertSlice(data, func(v int64) float64 { return float64(v) }), nil
	case []int32:
		return convertSlice(data, func(v int32) float64 { return float64(v) }), nil
	case []int16:
		return convertSlice(data, func(v int16) float64 { return float64(v) }), nil
	default:
		return nil, fmt.Errorf("unsupported coordinate value type %T", raw)
	}
}

func convertSlice[T any](in []T, conv func(T) float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = conv(v)
	}
	return out
}

// attrFloat looks up the first present attribute and coerces it to float64.
// NetCDF attributes may be scalars or single-element arrays of any numeric
// width depending on the producer.
func attrFloat(attrs attributeMap, names ...string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	for _, name := range names {
		v, has := attrs.Get(name)
		if !has {
			continue
		}
		if f, ok := numericValue(v); ok {
			return f, true
		}
	}
	return 0, false
}

func numericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint8:
		return float64(x), true
	case []float64:
		if len(x) > 0 {
			return x[0], true
		}
	case []float32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int16:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	}
	return 0, false
}

// attrString looks up a string attribute.
func attrString(attrs attributeMap, name string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	v, has := attrs.Get(name)
	if !has {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case []string:
		if len(x) > 0 {
			return x[0], true
		}
	}
	return "", false
}
