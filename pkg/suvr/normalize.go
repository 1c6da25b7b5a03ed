// Package suvr divides PET volumes by reference-region means and keeps the
// per-subject table of those means.
package suvr

import (
	"math"

	"petpipe/internal/models"
	"petpipe/pkg/volume"
)

// Normalize divides pet by its mean over mask and returns the SUVR volume
// together with that mean. The mean must be positive and finite.
func Normalize(pet, mask *models.Volume, region models.Region) (*models.Volume, float64, error) {
	mean, _, err := volume.MaskedMean(pet, mask, region.String())
	if err != nil {
		return nil, 0, err
	}
	if !(mean > 0) || math.IsInf(mean, 0) {
		return nil, mean, &models.InvalidReferenceError{Region: region.String(), Mean: mean}
	}
	return volume.Divide(pet, mean, models.RoleSUVR), mean, nil
}
