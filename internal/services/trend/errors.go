package trend

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is returned for non-positive intervals, negative data ranges and negative counts.
var ErrInvalidParameter = errors.New("invalid parameter")

// ParamError names the offending parameter. It unwraps to ErrInvalidParameter.
type ParamError struct {
	Param  string
	Value  int64
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: %s=%d %s", ErrInvalidParameter, e.Param, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParameter }

func checkInterval(interval int) error {
	if interval <= 0 {
		return &ParamError{Param: "interval", Value: int64(interval), Reason: "must be positive"}
	}
	return nil
}

func checkDataRange(days int) error {
	if days < 0 {
		return &ParamError{Param: "dataRange", Value: int64(days), Reason: "must not be negative"}
	}
	return nil
}
