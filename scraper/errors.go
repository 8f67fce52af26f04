package scraper

import (
	"errors"
	"fmt"

	"smartcart/models"
)

var (
	ErrNotFound     = errors.New("retailer reported no results")
	ErrBlocked      = errors.New("bot challenge not resolved within the polling budget")
	ErrParseFailure = errors.New("embedded data missing or malformed")
	ErrTransport    = errors.New("navigation or network failure")
)

// AcquisitionError is the terminal failure of one (retailer, query) acquisition
type AcquisitionError struct {
	Kind     models.FailureKind
	Retailer string
	Query    string
	Snippet  string
	Err      error
}

func (e *AcquisitionError) Error() string {
	msg := fmt.Sprintf("%s search for %q failed: %s", e.Retailer, e.Query, kindSentinel(e.Kind))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause
func (e *AcquisitionError) Unwrap() []error {
	errs := []error{kindSentinel(e.Kind)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Failure converts the error into a recorded search failure
func (e *AcquisitionError) Failure() models.SearchFailure {
	msg := kindSentinel(e.Kind).Error()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return models.SearchFailure{
		Retailer: e.Retailer,
		Query:    e.Query,
		Kind:     e.Kind,
		Message:  msg,
	}
}

func kindSentinel(kind models.FailureKind) error {
	switch kind {
	case models.FailureNotFound:
		return ErrNotFound
	case models.FailureBlocked:
		return ErrBlocked
	case models.FailureParse:
		return ErrParseFailure
	default:
		return ErrTransport
	}
}
