package migrate

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/model"
)

func writeDarkSkyArchive(t *testing.T, dir, alias string, entries map[string]string) {
	t.Helper()
	path := filepath.Join(dir, alias+".zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for stamp, body := range entries {
		name := fmt.Sprintf("%s/%s-%s.json", alias, alias, stamp)
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestDeriveTemperatureHighFallsBackThroughChain(t *testing.T) {
	body := `{"daily":{"data":[{"temperatureMax":91.2}]},"hourly":{"data":[{"temperature":80},{"temperature":91.2}]}}`
	doc, err := parseDarkSky([]byte(body))
	require.NoError(t, err)
	h := derive("test", mustDate(t, "2023-06-15"), doc)
	require.NotNil(t, h.TemperatureHigh)
	assert.Equal(t, 91.2, *h.TemperatureHigh)
}

func TestDeriveTemperatureHighFallsBackToHourlyMax(t *testing.T) {
	body := `{"daily":{"data":[{}]},"hourly":{"data":[{"temperature":70},{"temperature":85.5},{"temperature":60}]}}`
	doc, err := parseDarkSky([]byte(body))
	require.NoError(t, err)
	h := derive("test", mustDate(t, "2023-06-15"), doc)
	require.NotNil(t, h.TemperatureHigh)
	assert.Equal(t, 85.5, *h.TemperatureHigh)
}

func TestDerivePrecipitationAmountScalesDailyIntensityBy24(t *testing.T) {
	body := `{"daily":{"data":[{"precipIntensity":0.5}]},"hourly":{"data":[]}}`
	doc, err := parseDarkSky([]byte(body))
	require.NoError(t, err)
	h := derive("test", mustDate(t, "2023-06-15"), doc)
	require.NotNil(t, h.PrecipitationAmount)
	assert.Equal(t, 12.0, *h.PrecipitationAmount)
}

func TestMigrateRejectsSameDirectory(t *testing.T) {
	dir, err := datadir.New(t.TempDir())
	require.NoError(t, err)
	_, err = Migrate(dir, dir, "test", false)
	assert.Error(t, err)
}

func TestMigrateAppendsCanonicalEntries(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()
	writeDarkSkyArchive(t, srcRoot, "test", map[string]string{
		"20230615": `{"daily":{"data":[{"temperatureHigh":85,"temperatureLow":62}]},"hourly":{"data":[]}}`,
	})

	src, err := datadir.New(srcRoot)
	require.NoError(t, err)
	dst, err := datadir.New(dstRoot)
	require.NoError(t, err)

	n, err := Migrate(src, dst, "test", false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.FileExists(t, filepath.Join(dstRoot, "test.zip"))
}

func TestMigrateRenamesExistingTargetWhenNotRetaining(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()
	writeDarkSkyArchive(t, srcRoot, "test", map[string]string{
		"20230615": `{"daily":{"data":[{"temperatureHigh":85}]},"hourly":{"data":[]}}`,
	})
	// pre-existing (unrelated) target archive
	writeDarkSkyArchive(t, dstRoot, "test", map[string]string{})

	src, err := datadir.New(srcRoot)
	require.NoError(t, err)
	dst, err := datadir.New(dstRoot)
	require.NoError(t, err)

	_, err = Migrate(src, dst, "test", false)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dstRoot, "test.zip.old"))
}

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	parsed, err := model.ParseDate(s)
	require.NoError(t, err)
	return parsed
}
