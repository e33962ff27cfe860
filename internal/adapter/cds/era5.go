package cds

import (
	"fmt"
	"time"
)

// ERA5LandDataset is the CDS dataset name for ERA5-Land hourly reanalysis.
const ERA5LandDataset = "reanalysis-era5-land"

// Area is a geographical bounding box in CDS order: north, west, south, east.
type Area [4]float64

// MexicoArea covers Mexico.
var MexicoArea = Area{33, -119, 14, -86}

// MonthlyRequest builds a retrieval request for one month of hourly
// temperature and wind data over the given area.
func MonthlyRequest(year int, month time.Month, area Area) Request {
	return Request{
		Dataset: ERA5LandDataset,
		Params: map[string]any{
			"product_type": "reanalysis",
			"variable": []string{
				"2m_temperature",
				"10m_u_component_of_wind",
				"10m_v_component_of_wind",
			},
			"year":   fmt.Sprintf("%d", year),
			"month":  fmt.Sprintf("%02d", month),
			"day":    daysIn(year, month),
			"time":   hoursOfDay(),
			"area":   area,
			"format": "netcdf",
		},
	}
}

// MonthlyFilename is the on-disk name for one month of data, matching the
// loader's default path pattern.
func MonthlyFilename(year int, month time.Month) string {
	return fmt.Sprintf("era5-land-mexico-%d-%02d.nc", year, month)
}

func daysIn(year int, month time.Month) []string {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	days := make([]string, last)
	for d := 1; d <= last; d++ {
		days[d-1] = fmt.Sprintf("%02d", d)
	}
	return days
}

func hoursOfDay() []string {
	hours := make([]string, 24)
	for h := range hours {
		hours[h] = fmt.Sprintf("%02d:00", h)
	}
	return hours
}
