package httpapi

import (
	"context"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/geolocate"
	"github.com/i474232898/mapsi/internal/mapview"
	"github.com/i474232898/mapsi/internal/session"
	"github.com/i474232898/mapsi/internal/store"
	"github.com/i474232898/mapsi/internal/webui"
)

var validate = validator.New()

// sessionResponse is what every session endpoint answers with.
type sessionResponse struct {
	ID    string        `json:"id"`
	Phase mapview.Phase `json:"phase"`
	Epoch uint64        `json:"epoch"`
	View  webui.Model   `json:"view"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, sessions *session.Manager, history *store.MemoryStore, layers geo.Catalog) {
	v1 := app.Group("/api/v1")

	v1.Get("/layers", func(c *fiber.Ctx) error {
		out := make([]geo.TileLayer, 0, len(layers))
		for _, l := range layers {
			out = append(out, l)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Mode < out[j].Mode })
		return c.JSON(out)
	})

	v1.Post("/sessions", func(c *fiber.Ctx) error {
		var req createSessionRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}

		sess, err := sessions.Create(c.UserContext(), req.locator())
		if err != nil {
			return mapError(err)
		}
		return respond(c.Status(fiber.StatusCreated), sess)
	})

	v1.Get("/sessions/:id", withSession(sessions, func(c *fiber.Ctx, sess *session.Session) error {
		return respond(c, sess)
	}))

	v1.Get("/sessions/:id/events", withSession(sessions, streamEvents))

	v1.Post("/sessions/:id/click", withSession(sessions, func(c *fiber.Ctx, sess *session.Session) error {
		var req pointRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		if err := sess.View.Click(c.UserContext(), req.position().Point()); err != nil {
			return mapError(err)
		}
		return respond(c, sess)
	}))

	v1.Post("/sessions/:id/search", withSession(sessions, func(c *fiber.Ctx, sess *session.Session) error {
		var req searchRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		if err := sess.Controller.Search(c.UserContext(), req.Query); err != nil {
			return mapError(err)
		}
		return respond(c, sess)
	}))

	v1.Put("/sessions/:id/layer", withSession(sessions, func(c *fiber.Ctx, sess *session.Session) error {
		var req layerRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		mode, err := geo.ParseLayerMode(req.Mode)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := sess.Controller.SetTileLayer(c.UserContext(), mode); err != nil {
			return mapError(err)
		}
		return respond(c, sess)
	}))

	v1.Put("/sessions/:id/mode", withSession(sessions, func(c *fiber.Ctx, sess *session.Session) error {
		var req modeRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		mode, err := mapview.ParseInteractionMode(req.Mode)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := sess.Controller.SetInteractionMode(c.UserContext(), mode); err != nil {
			return mapError(err)
		}
		return respond(c, sess)
	}))

	v1.Post("/sessions/:id/panels/:panel/toggle", withSession(sessions, func(c *fiber.Ctx, sess *session.Session) error {
		var err error
		switch c.Params("panel") {
		case "weather":
			err = sess.Controller.ToggleWeatherPanel(c.UserContext())
		case "info":
			err = sess.Controller.ToggleInfoPanel(c.UserContext())
		default:
			return fiber.NewError(fiber.StatusBadRequest, "panel must be one of: weather, info")
		}
		if err != nil {
			return mapError(err)
		}
		return respond(c, sess)
	}))

	v1.Post("/sessions/:id/focus", withSession(sessions, func(c *fiber.Ctx, sess *session.Session) error {
		if err := sess.Controller.FocusMarker(c.UserContext()); err != nil {
			return mapError(err)
		}
		return respond(c, sess)
	}))

	v1.Get("/sessions/:id/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		id := c.Params("id")
		placements, err := history.GetRange(id, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no placement history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch placement history")
		}

		return c.JSON(fiber.Map{
			"session":    id,
			"from":       req.From,
			"to":         req.To,
			"placements": placements,
		})
	})

	v1.Delete("/sessions/:id", func(c *fiber.Ctx) error {
		if err := sessions.Close(c.Params("id")); err != nil {
			return mapError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func withSession(sessions *session.Manager, h func(c *fiber.Ctx, sess *session.Session) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := sessions.Get(c.Params("id"))
		if err != nil {
			return mapError(err)
		}
		return h(c, sess)
	}
}

// respond answers with the session state. With ?wait=true it first lets
// the pending location and weather lookups land.
func respond(c *fiber.Ctx, sess *session.Session) error {
	if c.QueryBool("wait") {
		sess.Controller.Wait()
	}

	st, err := sess.Controller.Snapshot(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(sessionResponse{
		ID:    sess.ID,
		Phase: st.Phase,
		Epoch: st.Epoch,
		View:  sess.View.Model(),
	})
}

func mapError(err error) error {
	var gerr *geolocate.Error
	switch {
	case errors.Is(err, session.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.As(err, &gerr):
		return fiber.NewError(fiber.StatusUnprocessableEntity, gerr.Error()+"! Allow location to continue")
	case errors.Is(err, mapview.ErrNotReady),
		errors.Is(err, mapview.ErrControlsLocked),
		errors.Is(err, mapview.ErrAlreadyInitialized):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, mapview.ErrStopped):
		return fiber.NewError(fiber.StatusGone, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
