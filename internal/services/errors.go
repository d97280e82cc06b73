package services

import (
	"errors"

	"salesdash/internal/forecast"
	"salesdash/internal/geo"
)

// Dashboard service errors
var (
	// Request errors
	ErrInvalidMetric = errors.New("invalid state metric")
	ErrInvalidFormat = errors.New("invalid export format")
	ErrInvalidFilter = errors.New("invalid filter")

	// Map errors
	ErrBoundariesUnavailable = geo.ErrBoundariesUnavailable

	// Forecast errors
	ErrInsufficientHistory = forecast.ErrInsufficientHistory
)
