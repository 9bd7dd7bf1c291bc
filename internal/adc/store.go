package adc

import (
	"context"
	"fmt"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
)

// Repository is the part of a backend the ADC helpers need.
type Repository interface {
	Store(ctx context.Context, name string, meta *calib.MetaData, e schema.Entity) error
	Load(ctx context.Context, name string, meta *calib.MetaData, e schema.Entity) error
}

// StorageID is the dataset name of the calibration of the ADC board with
// the given USB serial.
func StorageID(serial string) string {
	return "adc2-" + serial
}

// StoreADCCalibration stores a complete calibration under StorageID(serial).
func StoreADCCalibration(ctx context.Context, repo Repository, meta *calib.MetaData, serial string, c Converter) error {
	if repo == nil {
		return calerr.Configuration("backend", "Invalid backend.")
	}
	if !c.IsComplete() {
		return calerr.Uncalibrated("Storing of ADCCalibration for %s aborted. The calibration is incomplete!", serial)
	}
	if err := repo.Store(ctx, StorageID(serial), meta, c); err != nil {
		return fmt.Errorf("store ADC calibration %s: %w", serial, err)
	}
	return nil
}

// LoadADCCalibration loads the calibration of serial into c and returns
// its metadata. Incomplete data is rejected.
func LoadADCCalibration(ctx context.Context, repo Repository, serial string, c Converter) (*calib.MetaData, error) {
	if repo == nil {
		return nil, calerr.Configuration("backend", "Invalid backend.")
	}
	meta := calib.EmptyMetaData()
	if err := repo.Load(ctx, StorageID(serial), meta, c); err != nil {
		return nil, fmt.Errorf("load ADC calibration %s: %w", serial, err)
	}
	if !c.IsComplete() {
		return nil, calerr.Uncalibrated("Loaded ADCCalibration for %s is corrupted", serial)
	}
	return meta, nil
}
