// Package netcdf reads ERA5-Land grid files and exposes them as bounded
// in-memory time slices.
package netcdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/hdf5"
	"github.com/hashicorp/go-multierror"

	"github.com/dontloseyourheadsu/WeatherService/internal/domain"
)

// minPlausibleSize rejects obviously truncated downloads and HTML error pages
// masquerading as grid data.
const minPlausibleSize = 10 * 1024

// hdf5Signature is the 8-byte magic of HDF5-based NetCDF4 files.
var hdf5Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

var (
	// ErrTooSmall marks a file below the minimum plausible grid size.
	ErrTooSmall = errors.New("file too small to be grid data")
	// ErrBadSignature marks a file whose header matches no supported format.
	ErrBadSignature = errors.New("header matches no recognized grid signature")
)

// Raw variable and coordinate names in ERA5-Land files.
const (
	varTemperature = "t2m"
	varWindU       = "u10"
	varWindV       = "v10"
	coordLatitude  = "latitude"
	coordLongitude = "longitude"
)

// Accepted time-dimension names, in preference order. Newer CDS output uses
// valid_time, older output plain time.
var timeDimNames = []string{"valid_time", "time"}

// backend is one decoding strategy. Backends are tried in order and the first
// successful open wins.
type backend struct {
	name string
	open func(path string) (api.Group, error)
}

var backends = []backend{
	{name: "cdf", open: cdf.Open},
	{name: "hdf5", open: hdf5.Open},
}

// Handle is an open grid file. It holds the decoded coordinate axes but no
// variable data; LoadSlice materializes bounded time windows on demand.
type Handle struct {
	path    string
	backend string
	group   api.Group
	timeDim string

	times []time.Time
	lats  []float64
	lons  []float64

	closed bool
}

// Open validates and opens a grid file. Validation happens before any backend
// is attempted: a size check, then a magic-byte check against the classic CDF
// marker and the HDF5 signature. When every backend fails, the returned error
// aggregates each backend's failure for diagnostics.
func Open(path string) (*Handle, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}

	var group api.Group
	var chosen string
	var openErrs error
	for _, b := range backends {
		g, err := b.open(path)
		if err != nil {
			openErrs = multierror.Append(openErrs, fmt.Errorf("backend %s: %w", b.name, err))
			continue
		}
		group, chosen = g, b.name
		break
	}
	if group == nil {
		return nil, fmt.Errorf("open %s with any backend: %w", path, openErrs)
	}

	h := &Handle{path: path, backend: chosen, group: group}
	if err := h.resolveAxes(); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// Validate runs the pre-open checks: minimum size, then magic bytes.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() < minPlausibleSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrTooSmall, path, info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 8)
	if _, err := f.Read(head); err != nil {
		return err
	}
	if isClassicMagic(head) || bytes.Equal(head, hdf5Signature) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrBadSignature, path)
}

// isClassicMagic matches the NetCDF classic marker: "CDF" followed by a
// version byte (1 = classic, 2 = 64-bit offset, 5 = 64-bit data).
func isClassicMagic(head []byte) bool {
	if len(head) < 4 || !bytes.HasPrefix(head, []byte("CDF")) {
		return false
	}
	switch head[3] {
	case 1, 2, 5:
		return true
	}
	return false
}

// resolveAxes detects the time-dimension variant and decodes the three
// coordinate axes.
func (h *Handle) resolveAxes() error {
	var timeVar api.VarGetter
	for _, name := range timeDimNames {
		vg, err := h.group.GetVarGetter(name)
		if err == nil {
			h.timeDim, timeVar = name, vg
			break
		}
	}
	if timeVar == nil {
		return fmt.Errorf("%s: no recognized time dimension (tried %v)", h.path, timeDimNames)
	}

	times, err := decodeTimes(timeVar)
	if err != nil {
		return fmt.Errorf("%s: decode %s axis: %w", h.path, h.timeDim, err)
	}
	h.times = times

	h.lats, err = coordValues(h.group, coordLatitude)
	if err != nil {
		return fmt.Errorf("%s: %w", h.path, err)
	}
	h.lons, err = coordValues(h.group, coordLongitude)
	if err != nil {
		return fmt.Errorf("%s: %w", h.path, err)
	}
	return nil
}

// Steps returns the total number of time steps in the file.
func (h *Handle) Steps() int { return len(h.times) }

// TimeDim returns the resolved time-dimension name.
func (h *Handle) TimeDim() string { return h.timeDim }

// Backend returns the name of the decoder that opened the file.
func (h *Handle) Backend() string { return h.backend }

// LoadSlice materializes the time steps [start, end) fully into memory,
// decoding packed values and mapping fill values to NaN. The last slice of a
// file may be shorter than the requested window; end is clamped to the step
// count.
func (h *Handle) LoadSlice(start, end int) (*domain.Slice, error) {
	if start < 0 || start >= len(h.times) {
		return nil, fmt.Errorf("slice start %d out of range [0, %d)", start, len(h.times))
	}
	if end > len(h.times) {
		end = len(h.times)
	}
	if end <= start {
		return nil, fmt.Errorf("empty slice bounds [%d, %d)", start, end)
	}

	s := &domain.Slice{
		StartStep: start,
		EndStep:   end,
		Times:     h.times[start:end],
		Lats:      h.lats,
		Lons:      h.lons,
	}

	var err error
	if s.TempK, err = h.loadVariable(varTemperature, start, end); err != nil {
		return nil, err
	}
	if s.U10, err = h.loadVariable(varWindU, start, end); err != nil {
		return nil, err
	}
	if s.V10, err = h.loadVariable(varWindV, start, end); err != nil {
		return nil, err
	}
	return s, nil
}

// loadVariable reads one [time, lat, lon] variable for the given step range
// and decodes it to float64 with NaN fills.
func (h *Handle) loadVariable(name string, start, end int) ([][][]float64, error) {
	vg, err := h.group.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("%s: missing expected variable %s: %w", h.path, name, err)
	}

	dims := vg.Dimensions()
	if len(dims) != 3 || dims[0] != h.timeDim {
		return nil, fmt.Errorf("%s: variable %s has unexpected dimensions %v", h.path, name, dims)
	}

	raw, err := vg.GetSlice(int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("%s: read %s steps [%d, %d): %w", h.path, name, start, end, err)
	}

	cube, err := decodeCube(raw, vg.Attributes())
	if err != nil {
		return nil, fmt.Errorf("%s: decode %s: %w", h.path, name, err)
	}
	if len(cube) != end-start {
		return nil, fmt.Errorf("%s: %s returned %d steps, want %d", h.path, name, len(cube), end-start)
	}
	if err := validateExtents(cube, len(h.lats), len(h.lons)); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", h.path, name, err)
	}
	return cube, nil
}

// validateExtents checks every decoded step against the coordinate axes. A
// file can pass the magic check and still carry truncated or ragged variable
// data; such a cube must surface as an error, not as a downstream panic.
func validateExtents(cube [][][]float64, nLat, nLon int) error {
	for t, plane := range cube {
		if len(plane) != nLat {
			return fmt.Errorf("step %d has %d latitude rows, want %d", t, len(plane), nLat)
		}
		for i, row := range plane {
			if len(row) != nLon {
				return fmt.Errorf("step %d latitude row %d has %d values, want %d", t, i, len(row), nLon)
			}
		}
	}
	return nil
}

// Close releases the underlying file handle. Safe to call more than once.
func (h *Handle) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.group.Close()
}
