package errors

import (
	"errors"
	"fmt"
)

// Custom error types for the analytics service

// ErrVisitorIDRequired is returned when a tracking call carries no visitor ID
var ErrVisitorIDRequired = errors.New("visitorId is required")

// ErrActivityTypeRequired is returned when an activity is submitted without a type
var ErrActivityTypeRequired = errors.New("activity type is required")

// ErrUnsupportedDriver is returned when database.driver names an unknown backend
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// ErrGeoLookupFailed is returned by the IP lookup client when the upstream call fails.
// The resolver never lets it escape; it is logged and replaced by the unknown location.
type ErrGeoLookupFailed struct {
	IP     string
	Reason string
}

func (e ErrGeoLookupFailed) Error() string {
	return fmt.Sprintf("geo lookup failed for %s: %s", e.IP, e.Reason)
}

// ErrConfigLoad is returned when configuration loading fails
type ErrConfigLoad struct {
	Path   string
	Reason string
}

func (e ErrConfigLoad) Error() string {
	return fmt.Sprintf("failed to load config from %s: %s", e.Path, e.Reason)
}
