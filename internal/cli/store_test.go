package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeDefaults(t *testing.T, args ...string) {
	t.Helper()
	base := []string{"defaults", "--wafer", "0", "--hicann", "84", "--author", "tester"}
	_, _, err := execute(t, append(base, args...)...)
	require.NoError(t, err)
}

func TestDefaults_FileBackends(t *testing.T) {
	for backend, ext := range map[string]string{"text": ".txt", "xml": ".xml", "binary": ".dat"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			storeDefaults(t, "--backend", backend, "--backend-opt", "path="+dir)
			assert.FileExists(t, filepath.Join(dir, "w0-h84"+ext))
		})
	}
}

func TestDefaults_JSON(t *testing.T) {
	dir := t.TempDir()
	out, _, err := execute(t, "defaults", "--format", "json", "--backend-opt", "path="+dir, "--wafer", "3", "--hicann", "7")
	require.NoError(t, err)

	var data map[string]string
	decodeData(t, out, &data)
	assert.Equal(t, "w3-h7", data["dataset"])
	assert.Equal(t, "text", data["backend"])
	assert.NotEmpty(t, data["revision"])
}

func TestDefaults_NegativeIDs(t *testing.T) {
	_, _, err := execute(t, "defaults", "--backend-opt", "path="+t.TempDir(), "--wafer", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestShow(t *testing.T) {
	dir := t.TempDir()
	storeDefaults(t, "--backend-opt", "path="+dir, "--comment", "bench 4")

	out, _, err := execute(t, "show", "w0-h84", "--backend-opt", "path="+dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Dataset:   w0-h84")
	assert.Contains(t, out, "Kind:      HICANNCollection")
	assert.Contains(t, out, "Author:    tester")
	assert.Contains(t, out, "Comment:   bench 4")
	assert.Contains(t, out, "HICANNCollection(speedup=10000")
	assert.NotContains(t, out, "History")
}

func TestShow_List(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, "show", "--backend-opt", "path="+dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No datasets found")

	storeDefaults(t, "--backend-opt", "path="+dir)
	out, _, err = execute(t, "show", "--format", "json", "--backend-opt", "path="+dir)
	require.NoError(t, err)
	var names []string
	decodeData(t, out, &names)
	assert.Equal(t, []string{"w0-h84"}, names)
}

func TestShow_SQLiteHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cal.db")
	storeDefaults(t, "--backend", "sqlite", "--backend-opt", "file="+db)
	storeDefaults(t, "--backend", "sqlite", "--backend-opt", "file="+db)

	out, _, err := execute(t, "show", "w0-h84", "--format", "json", "--backend", "sqlite", "--backend-opt", "file="+db)
	require.NoError(t, err)

	var info DatasetInfo
	decodeData(t, out, &info)
	assert.Equal(t, "HICANNCollection", info.Kind)
	require.Len(t, info.History, 2)
	assert.Equal(t, info.History[0].Hash, info.History[1].Hash)
	assert.NotEqual(t, info.History[0].Revision, info.History[1].Revision)
	assert.Contains(t, []string{info.History[0].Revision, info.History[1].Revision}, info.Revision)
}

func TestShow_Errors(t *testing.T) {
	dir := t.TempDir()
	storeDefaults(t, "--backend-opt", "path="+dir)

	t.Run("absent", func(t *testing.T) {
		out, _, err := execute(t, "show", "w1-h1", "--backend-opt", "path="+dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Empty(t, out)
	})

	t.Run("wrong kind", func(t *testing.T) {
		_, _, err := execute(t, "show", "w0-h84", "--kind", "ADCCalibration", "--backend-opt", "path="+dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, err.Error(), "does not match")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, _, err := execute(t, "show", "w0-h84", "--kind", "Teapot", "--backend-opt", "path="+dir)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	storeDefaults(t, "--backend-opt", "path="+dir)
	src := filepath.Join(dir, "w0-h84.txt")

	out, _, err := execute(t, "convert", src, filepath.Join(dir, "w0-h84.xml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Converted w0-h84 (text) to w0-h84 (xml)")

	out, _, err = execute(t, "convert", filepath.Join(dir, "w0-h84.xml"), filepath.Join(dir, "copy.dat"))
	require.NoError(t, err)
	assert.Contains(t, out, "to copy (binary)")

	db := filepath.Join(dir, "cal.db")
	_, _, err = execute(t, "convert", filepath.Join(dir, "copy.dat"), db, "--name", "w0-h84")
	require.NoError(t, err)

	var fromText, fromSQLite DatasetInfo
	out, _, err = execute(t, "show", "w0-h84", "--format", "json", "--backend-opt", "path="+dir)
	require.NoError(t, err)
	decodeData(t, out, &fromText)
	out, _, err = execute(t, "show", "w0-h84", "--format", "json", "--backend", "sqlite", "--backend-opt", "file="+db)
	require.NoError(t, err)
	decodeData(t, out, &fromSQLite)

	assert.Equal(t, fromText.Revision, fromSQLite.Revision)
	assert.Equal(t, fromText.Author, fromSQLite.Author)
	assert.True(t, fromText.CreatedAt.Equal(fromSQLite.CreatedAt))
	assert.Equal(t, fromText.Summary, fromSQLite.Summary)

	out, _, err = execute(t, "convert", db, filepath.Join(dir, "back.txt"), "--name", "w0-h84")
	require.NoError(t, err)
	assert.Contains(t, out, "to back (text)")
	assert.FileExists(t, filepath.Join(dir, "back.txt"))
}

func TestConvert_Errors(t *testing.T) {
	dir := t.TempDir()
	storeDefaults(t, "--backend-opt", "path="+dir)
	src := filepath.Join(dir, "w0-h84.txt")

	t.Run("unknown extension", func(t *testing.T) {
		_, _, err := execute(t, "convert", src, filepath.Join(dir, "out.json"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "cannot infer format")
	})

	t.Run("explicit format", func(t *testing.T) {
		_, _, err := execute(t, "convert", src, filepath.Join(dir, "out.json"), "--to", "xml")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(dir, "out.xml"))
	})

	t.Run("sqlite without name", func(t *testing.T) {
		a, b := filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")
		_, _, err := execute(t, "convert", a, b)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "--name")
	})

	t.Run("missing destination directory", func(t *testing.T) {
		_, _, err := execute(t, "convert", src, filepath.Join(dir, "absent", "x.xml"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("absent source", func(t *testing.T) {
		_, _, err := execute(t, "convert", filepath.Join(dir, "w5-h5.txt"), filepath.Join(dir, "w5-h5.xml"))
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		_, statErr := os.Stat(filepath.Join(dir, "w5-h5.xml"))
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestADCFit(t *testing.T) {
	out, _, err := execute(t, "adc", "fit", "testdata/measurements.yaml", "--order", "1", "--format", "json")
	require.NoError(t, err)

	var result ADCFitResult
	decodeData(t, out, &result)
	assert.Equal(t, "B201290", result.Serial)
	assert.True(t, result.Complete)
	assert.Empty(t, result.Stored)
	require.Len(t, result.Channels, 8)
	for _, c := range result.Channels {
		require.Len(t, c.Coefficients, 2)
		assert.InDelta(t, 0.1, c.Coefficients[0], 1e-9)
		assert.InDelta(t, 0.0005, c.Coefficients[1], 1e-12)
		assert.Equal(t, 3, c.Points)
		assert.Equal(t, 0.0, c.MeanLow)
		assert.Equal(t, 2000.0, c.MeanHigh)
	}
}

func TestADCFit_StoreQuadratic(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cal.db")
	sqlite := []string{"--backend", "sqlite", "--backend-opt", "file=" + db}

	out, _, err := execute(t, append([]string{"adc", "fit", "testdata/measurements.yaml", "--store", "--quadratic"}, sqlite...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Stored adc2-B201290")

	out, _, err = execute(t, append([]string{"show", "adc2-B201290", "--kind", "QuadraticADCCalibration"}, sqlite...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "QuadraticADCCalibration:")
	assert.Contains(t, out, "Channel(7)")
	assert.Contains(t, out, "History (1)")

	_, _, err = execute(t, append([]string{"show", "adc2-B201290", "--kind", "ADCCalibration"}, sqlite...)...)
	assert.Error(t, err)
}

func TestADCFit_Incomplete(t *testing.T) {
	out, _, err := execute(t, "adc", "fit", "testdata/partial.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Incomplete: 1 of 8 channels measured")

	_, _, err = execute(t, "adc", "fit", "testdata/partial.yaml", "--store", "--backend", "memory")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "incomplete")
}

func TestADCFit_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, _, err := execute(t, "adc", "fit", "testdata/absent.yaml")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("order too high", func(t *testing.T) {
		_, _, err := execute(t, "adc", "fit", "testdata/measurements.yaml", "--order", "3")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("quadratic into memory", func(t *testing.T) {
		_, _, err := execute(t, "adc", "fit", "testdata/measurements.yaml", "--order", "2", "--store", "--quadratic", "--backend", "memory")
		require.NoError(t, err)
	})
}
