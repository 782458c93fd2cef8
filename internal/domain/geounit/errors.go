package geounit

import "errors"

var (
	// ErrUnitNotFound indicates a requested geounit doesn't exist.
	ErrUnitNotFound = errors.New("geounit not found")
	// ErrLevelMismatch indicates a unit was passed at the wrong geolevel.
	ErrLevelMismatch = errors.New("geounit not at requested geolevel")
)
