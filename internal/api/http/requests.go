package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/geolocate"
	"github.com/i474232898/mapsi/internal/mapview"
)

// createSessionRequest carries the browser's geolocation outcome: either a
// position or a PositionError code.
type createSessionRequest struct {
	Lat     *float64 `json:"lat" validate:"required_without=Code,omitempty,gte=-90,lte=90"`
	Lng     *float64 `json:"lng" validate:"required_without=Code,omitempty,gte=-180,lte=180"`
	Code    int      `json:"code" validate:"omitempty,oneof=1 2 3"`
	Message string   `json:"message" validate:"max=256"`
}

func (r createSessionRequest) locator() mapview.Geolocator {
	if r.Code != 0 {
		return geolocate.Failed(r.Code, r.Message)
	}
	return geolocate.Static(*r.Lat, *r.Lng)
}

type pointRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

func (r pointRequest) position() geo.Position {
	return geo.Position{Lat: *r.Lat, Lng: *r.Lng}
}

type searchRequest struct {
	Query string `json:"query" validate:"max=512"`
}

type layerRequest struct {
	Mode string `json:"mode" validate:"required,oneof=street satellite"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=normal locked"`
}

// bindBody parses and validates a JSON body.
func bindBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
