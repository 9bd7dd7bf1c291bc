package adc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calibtic/internal/backend"
	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
)

func memoryRepo(t *testing.T) backend.Backend {
	t.Helper()
	b, err := backend.OpenConfigured(context.Background(), "memory", calib.Env{}, nil)
	require.NoError(t, err)
	return b
}

func TestStoreLoadADCCalibration(t *testing.T) {
	ctx := context.Background()
	repo := memoryRepo(t)
	meta, err := calib.NewMetaData(calib.Env{}, "bob", "")
	require.NoError(t, err)

	require.NoError(t, StoreADCCalibration(ctx, repo, meta, "B201290", DefaultCalibration()))
	names, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"adc2-B201290"}, names)

	got := NewADCCalibration()
	gotMeta, err := LoadADCCalibration(ctx, repo, "B201290", got)
	require.NoError(t, err)
	assert.True(t, DefaultCalibration().Equal(got))
	assert.Equal(t, "bob", gotMeta.Author)

	q, err := ConvertToQuadraticADCCalibration(got)
	require.NoError(t, err)
	require.NoError(t, StoreADCCalibration(ctx, repo, meta, "quad", q))
	gotQ := &QuadraticADCCalibration{}
	_, err = LoadADCCalibration(ctx, repo, "quad", gotQ)
	require.NoError(t, err)
	assert.True(t, q.Equal(gotQ))
}

func TestStoreADCCalibration_Incomplete(t *testing.T) {
	meta, err := calib.NewMetaData(calib.Env{}, "bob", "")
	require.NoError(t, err)
	err = StoreADCCalibration(context.Background(), memoryRepo(t), meta, "B1", NewADCCalibration())
	require.Error(t, err)
	assert.True(t, calerr.IsUncalibrated(err))
}

func TestLoadADCCalibration_Errors(t *testing.T) {
	_, err := LoadADCCalibration(context.Background(), memoryRepo(t), "absent", NewADCCalibration())
	require.Error(t, err)
	assert.True(t, calerr.IsNotFound(err))

	_, err = LoadADCCalibration(context.Background(), nil, "absent", NewADCCalibration())
	assert.True(t, calerr.IsConfiguration(err))
}
