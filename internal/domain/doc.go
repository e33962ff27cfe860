// Package domain models ERA5-Land reanalysis weather data.
//
// # Data Source
//
// Input files are ERA5-Land hourly reanalysis grids from the Copernicus
// Climate Data Store (CDS), downloaded one month at a time in NetCDF format.
// Each file covers a fixed bounding box and carries three raw variables:
//
//	t2m  2m air temperature, Kelvin
//	u10  10m eastward (zonal) wind component, m/s
//	v10  10m northward (meridional) wind component, m/s
//
// # NetCDF Conventions
//
// Time dimension naming varies by producer version: older CDS output uses
// "time", newer output uses "valid_time". Both are accepted; the reader
// resolves the variant once per file before slicing.
//
// The time coordinate follows the CF "units since epoch" convention, e.g.
// "hours since 1900-01-01 00:00:00.0" in classic files or
// "seconds since 1970-01-01" in newer ones.
//
// Variables may be stored packed (int16 with scale_factor/add_offset
// attributes) or as plain floats. The _FillValue / missing_value sentinel
// marks grid cells with no data; ERA5-Land is a land-only dataset, so every
// ocean cell is a fill value. Decoded fill values surface as NaN.
//
// # Derived Quantities
//
//	temperature °C   = t2m − 273.15
//	wind speed m/s   = sqrt(u10² + v10²)
//	wind direction ° = (degrees(atan2(u10, v10)) + 180) mod 360
//
// Wind direction uses the meteorological convention: the compass bearing the
// wind blows from, 0 = north, 90 = east. Calm air (u = v = 0) yields 180° by
// definition of atan2(0, 0) = 0.
//
// A grid point where all three derived quantities are undefined is not a
// weather observation at all (ocean cell) and is dropped during flattening.
// A point with at least one defined quantity is kept; the missing fields are
// stored as explicit nulls so every document carries its unit tags.
package domain
