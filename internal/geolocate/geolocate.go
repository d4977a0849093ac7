// Package geolocate models the one-shot "current position" lookup the page
// performs before a session can start.
package geolocate

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/i474232898/mapsi/internal/geo"
)

// Code mirrors the browser PositionError codes.
type Code int

const (
	PermissionDenied    Code = 1
	PositionUnavailable Code = 2
	Timeout             Code = 3
)

func (c Code) String() string {
	switch c {
	case PermissionDenied:
		return "User denied Geolocation"
	case PositionUnavailable:
		return "Position unavailable"
	case Timeout:
		return "Timeout expired"
	default:
		return "Unknown geolocation error"
	}
}

// Error is returned when no position could be obtained.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.String()
}

// Is lets callers match on the code alone: errors.Is(err, &Error{Code: PermissionDenied}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrDenied      = &Error{Code: PermissionDenied}
	ErrUnavailable = &Error{Code: PositionUnavailable}
)

// Fix is a position (or failure) that was already determined, typically
// posted by the browser. It satisfies the controller's Geolocator.
type Fix struct {
	Point orb.Point
	Err   error
}

// Static returns a fix at lat/lng.
func Static(lat, lng float64) Fix {
	return Fix{Point: geo.LatLng(lat, lng)}
}

// Failed returns a fix carrying a browser error.
func Failed(code int, message string) Fix {
	return Fix{Err: &Error{Code: Code(code), Message: message}}
}

// CurrentPosition returns the stored result.
func (f Fix) CurrentPosition(ctx context.Context) (orb.Point, error) {
	if err := ctx.Err(); err != nil {
		return orb.Point{}, err
	}
	if f.Err != nil {
		return orb.Point{}, f.Err
	}
	if !geo.Valid(f.Point) {
		return orb.Point{}, &Error{
			Code:    PositionUnavailable,
			Message: fmt.Sprintf("invalid position %s", geo.Format(f.Point)),
		}
	}
	return f.Point, nil
}

// AsError normalises any failure into *Error so callers can report a code.
func AsError(err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	return &Error{Code: PositionUnavailable, Message: err.Error()}
}
