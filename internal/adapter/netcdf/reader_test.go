package netcdf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// padTo returns content right-padded with zeros to the given size.
func padTo(content []byte, size int) []byte {
	out := make([]byte, size)
	copy(out, content)
	return out
}

func TestValidate_TooSmall(t *testing.T) {
	path := writeTempFile(t, "tiny.nc", []byte("CDF\x01 not enough bytes"))
	err := Validate(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooSmall)
}

func TestValidate_BadSignature(t *testing.T) {
	// An HTML error page from the archive, large enough to pass the size check.
	page := padTo([]byte("<html><body>license not accepted</body></html>"), minPlausibleSize)
	path := writeTempFile(t, "error-page.nc", page)
	err := Validate(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestValidate_ClassicMagic(t *testing.T) {
	for _, version := range []byte{1, 2, 5} {
		head := append([]byte("CDF"), version)
		path := writeTempFile(t, "classic.nc", padTo(head, minPlausibleSize))
		assert.NoError(t, Validate(path), "version byte %d", version)
	}
}

func TestValidate_HDF5Magic(t *testing.T) {
	path := writeTempFile(t, "nc4.nc", padTo(hdf5Signature, minPlausibleSize))
	assert.NoError(t, Validate(path))
}

func TestValidate_MissingFile(t *testing.T) {
	err := Validate(filepath.Join(t.TempDir(), "absent.nc"))
	assert.Error(t, err)
}

func TestOpen_BadSignatureNeverReachesBackends(t *testing.T) {
	page := padTo([]byte("{\"error\": \"queue full\"}"), minPlausibleSize)
	path := writeTempFile(t, "queue.nc", page)

	_, err := Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestOpen_AllBackendsFailAggregatesErrors(t *testing.T) {
	// Valid classic magic but garbage body: validation passes, every backend
	// fails, and the error must name each attempted backend.
	body := padTo(append([]byte("CDF\x01"), bytes.Repeat([]byte{0xff}, 64)...), minPlausibleSize)
	path := writeTempFile(t, "corrupt.nc", body)

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend cdf")
	assert.Contains(t, err.Error(), "backend hdf5")
}

func TestValidateExtents(t *testing.T) {
	good := [][][]float64{{{1, 2}, {3, 4}}}
	assert.NoError(t, validateExtents(good, 2, 2))

	// A truncated step with no latitude rows at all.
	assert.Error(t, validateExtents([][][]float64{{}}, 2, 2))

	// Ragged data: second row short one longitude value.
	ragged := [][][]float64{{{1, 2}, {3}}}
	assert.Error(t, validateExtents(ragged, 2, 2))

	// Row count disagrees with the latitude axis.
	assert.Error(t, validateExtents(good, 3, 2))
}

func TestIsClassicMagic(t *testing.T) {
	assert.True(t, isClassicMagic([]byte{'C', 'D', 'F', 1, 0, 0, 0, 0}))
	assert.True(t, isClassicMagic([]byte{'C', 'D', 'F', 2, 0, 0, 0, 0}))
	assert.False(t, isClassicMagic([]byte{'C', 'D', 'F', 9, 0, 0, 0, 0}))
	assert.False(t, isClassicMagic([]byte("GRIB0000")))
	assert.False(t, isClassicMagic([]byte("CD")))
}
