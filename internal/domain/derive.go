package domain

import "math"

const kelvinOffset = 273.15

// CelsiusFromKelvin converts a temperature from Kelvin to Celsius.
// NaN propagates unchanged.
func CelsiusFromKelvin(k float64) float64 {
	return k - kelvinOffset
}

// WindSpeed returns the magnitude of the (u, v) wind vector in m/s.
func WindSpeed(u, v float64) float64 {
	return math.Sqrt(u*u + v*v)
}

// WindDirection returns the meteorological wind direction in degrees
// [0, 360): the bearing the wind blows from, 0 = north, 90 = east.
// Calm air (u = v = 0) maps to 180 because atan2(0, 0) = 0.
func WindDirection(u, v float64) float64 {
	deg := math.Atan2(u, v)*180/math.Pi + 180
	return math.Mod(deg, 360)
}

// Derive fills the slice's derived cubes from its raw variables, element-wise
// across every (step, lat, lon) cell. Undefined raw cells (NaN) yield
// undefined derived cells. Pure computation with no error paths.
func (s *Slice) Derive() {
	steps, nLat, nLon := s.Steps(), len(s.Lats), len(s.Lons)
	s.TempC = newCube(steps, nLat, nLon)
	s.Speed = newCube(steps, nLat, nLon)
	s.Direction = newCube(steps, nLat, nLon)

	for t := 0; t < steps; t++ {
		for i := 0; i < nLat; i++ {
			for j := 0; j < nLon; j++ {
				s.TempC[t][i][j] = CelsiusFromKelvin(s.TempK[t][i][j])
				u, v := s.U10[t][i][j], s.V10[t][i][j]
				s.Speed[t][i][j] = WindSpeed(u, v)
				s.Direction[t][i][j] = WindDirection(u, v)
			}
		}
	}
}

// Flatten converts a derived slice into one record per (time, lat, lon)
// coordinate, in iteration order. Points where every derived quantity is
// undefined are dropped; partially defined points are kept.
func (s *Slice) Flatten() []PointRecord {
	records := make([]PointRecord, 0, s.Steps()*len(s.Lats)*len(s.Lons))
	for t := 0; t < s.Steps(); t++ {
		for i := range s.Lats {
			for j := range s.Lons {
				rec := PointRecord{
					Timestamp:     s.Times[t],
					Latitude:      s.Lats[i],
					Longitude:     s.Lons[j],
					TemperatureC:  s.TempC[t][i][j],
					WindSpeedMS:   s.Speed[t][i][j],
					WindDirection: s.Direction[t][i][j],
				}
				if rec.Empty() {
					continue
				}
				records = append(records, rec)
			}
		}
	}
	return records
}

func newCube(steps, nLat, nLon int) [][][]float64 {
	cube := make([][][]float64, steps)
	for t := range cube {
		cube[t] = make([][]float64, nLat)
		for i := range cube[t] {
			cube[t][i] = make([]float64, nLon)
		}
	}
	return cube
}
