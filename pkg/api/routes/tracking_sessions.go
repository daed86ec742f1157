package routes

import (
	"errors"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/ctdf"
	"github.com/travigo/fleettracker/pkg/realtime/vehicletracker"
)

var basicGroups = []string{"basic"}
var detailedGroups = []string{"basic", "detailed"}

type trackingSessionsHandler struct {
	tracker *vehicletracker.Tracker
}

func TrackingSessionsRouter(router fiber.Router, tracker *vehicletracker.Tracker) {
	handler := &trackingSessionsHandler{tracker: tracker}

	router.Post("/", handler.startSession)
	router.Get("/:identifier", handler.getSessionStatus)
	router.Get("/:identifier/detail", handler.getSessionDetail)
	router.Get("/:identifier/history", handler.getSessionHistory)

	router.Post("/:identifier/location", handler.postLocation)
	router.Post("/:identifier/heartbeat", handler.postHeartbeat)

	router.Post("/:identifier/pause", handler.pauseSession)
	router.Post("/:identifier/resume", handler.resumeSession)
	router.Post("/:identifier/stop", handler.stopSession)

	router.Post("/:identifier/emergency", handler.triggerEmergency)
	router.Post("/:identifier/emergency/resolve", handler.resolveEmergency)

	router.Post("/:identifier/alerts", handler.addAlert)
	router.Post("/:identifier/alerts/:alert/acknowledge", handler.acknowledgeAlert)
	router.Post("/:identifier/alerts/:alert/resolve", handler.resolveAlert)
}

func sendError(c *fiber.Ctx, err error) error {
	var validationError *vehicletracker.ValidationError
	var notFoundError *vehicletracker.NotFoundError
	var preconditionError *vehicletracker.PreconditionError
	var conflictError *vehicletracker.ConflictError

	switch {
	case errors.As(err, &validationError):
		c.Status(fiber.StatusBadRequest)
	case errors.As(err, &notFoundError):
		c.Status(fiber.StatusNotFound)
	case errors.As(err, &preconditionError):
		c.Status(fiber.StatusPreconditionFailed)
	case errors.As(err, &conflictError):
		c.Status(fiber.StatusConflict)
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("Tracking request failed")
		c.Status(fiber.StatusInternalServerError)
	}

	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}

func sendReduced(c *fiber.Ctx, status int, groups []string, data interface{}) error {
	reduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, data)
	if err != nil {
		c.Status(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce response",
		})
	}

	c.Status(status)
	return c.JSON(reduced)
}

// parseOptionalBody leaves out untouched when the request has no body
func parseOptionalBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}

	return c.BodyParser(out)
}

func sendBadBody(c *fiber.Ctx) error {
	c.Status(fiber.StatusBadRequest)
	return c.JSON(fiber.Map{
		"error": "Could not parse request body",
	})
}

func (h *trackingSessionsHandler) startSession(c *fiber.Ctx) error {
	var request vehicletracker.StartSessionRequest
	if err := c.BodyParser(&request); err != nil {
		return sendBadBody(c)
	}

	session, err := h.tracker.StartSession(request)
	if err != nil {
		return sendError(c, err)
	}

	return sendReduced(c, fiber.StatusCreated, detailedGroups, session)
}

func (h *trackingSessionsHandler) getSessionStatus(c *fiber.Ctx) error {
	status, err := h.tracker.Status(c.Params("identifier"))
	if err != nil {
		return sendError(c, err)
	}

	return sendReduced(c, fiber.StatusOK, basicGroups, status)
}

func (h *trackingSessionsHandler) getSessionDetail(c *fiber.Ctx) error {
	session, err := h.tracker.Session(c.Params("identifier"))
	if err != nil {
		return sendError(c, err)
	}

	return sendReduced(c, fiber.StatusOK, detailedGroups, session)
}

func (h *trackingSessionsHandler) getSessionHistory(c *fiber.Ctx) error {
	var maxAge time.Duration

	if maxAgeQuery := c.Query("max_age"); maxAgeQuery != "" {
		var err error
		maxAge, err = vehicletracker.ParseISODuration(maxAgeQuery, time.Now())
		if err != nil {
			c.Status(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameter max_age should be an ISO8601 duration",
			})
		}
	}

	history, err := h.tracker.LocationHistory(c.Params("identifier"), maxAge)
	if err != nil {
		return sendError(c, err)
	}

	if c.Query("format") == "csv" {
		csvContent, err := gocsv.MarshalBytes(&history)
		if err != nil {
			return sendError(c, err)
		}

		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, "attachment; filename=\"history.csv\"")
		return c.Send(csvContent)
	}

	if history == nil {
		history = []ctdf.LocationHistoryEntry{}
	}

	return sendReduced(c, fiber.StatusOK, basicGroups, history)
}

func (h *trackingSessionsHandler) postLocation(c *fiber.Ctx) error {
	var update ctdf.LocationUpdate
	if err := c.BodyParser(&update); err != nil {
		return sendBadBody(c)
	}

	session, err := h.tracker.ApplyLocationUpdate(c.Params("identifier"), update)
	if err != nil {
		return sendError(c, err)
	}

	return sendReduced(c, fiber.StatusOK, basicGroups, session)
}

func (h *trackingSessionsHandler) postHeartbeat(c *fiber.Ctx) error {
	var heartbeat ctdf.Heartbeat
	if err := parseOptionalBody(c, &heartbeat); err != nil {
		return sendBadBody(c)
	}

	if err := h.tracker.Heartbeat(c.Params("identifier"), heartbeat); err != nil {
		return sendError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *trackingSessionsHandler) pauseSession(c *fiber.Ctx) error {
	if err := h.tracker.PauseSession(c.Params("identifier")); err != nil {
		return sendError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *trackingSessionsHandler) resumeSession(c *fiber.Ctx) error {
	if err := h.tracker.ResumeSession(c.Params("identifier")); err != nil {
		return sendError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *trackingSessionsHandler) stopSession(c *fiber.Ctx) error {
	var request vehicletracker.StopRequest
	if err := parseOptionalBody(c, &request); err != nil {
		return sendBadBody(c)
	}

	summary, err := h.tracker.StopSession(c.Params("identifier"), request)
	if err != nil {
		return sendError(c, err)
	}

	return sendReduced(c, fiber.StatusOK, detailedGroups, summary)
}

func (h *trackingSessionsHandler) triggerEmergency(c *fiber.Ctx) error {
	var request vehicletracker.EmergencyRequest
	if err := parseOptionalBody(c, &request); err != nil {
		return sendBadBody(c)
	}

	emergency, err := h.tracker.TriggerEmergency(c.Params("identifier"), request)
	if err != nil {
		return sendError(c, err)
	}

	return sendReduced(c, fiber.StatusOK, detailedGroups, emergency)
}

func (h *trackingSessionsHandler) resolveEmergency(c *fiber.Ctx) error {
	var request vehicletracker.ResolveEmergencyRequest
	if err := parseOptionalBody(c, &request); err != nil {
		return sendBadBody(c)
	}

	emergency, err := h.tracker.ResolveEmergency(c.Params("identifier"), request)
	if err != nil {
		return sendError(c, err)
	}

	return sendReduced(c, fiber.StatusOK, detailedGroups, emergency)
}

func (h *trackingSessionsHandler) addAlert(c *fiber.Ctx) error {
	var data vehicletracker.AlertData
	if err := c.BodyParser(&data); err != nil {
		return sendBadBody(c)
	}

	alert, err := h.tracker.AddAlert(c.Params("identifier"), data)
	if err != nil {
		return sendError(c, err)
	}

	return sendReduced(c, fiber.StatusCreated, detailedGroups, alert)
}

type acknowledgeRequest struct {
	AcknowledgedBy string
}

func (h *trackingSessionsHandler) acknowledgeAlert(c *fiber.Ctx) error {
	var request acknowledgeRequest
	if err := parseOptionalBody(c, &request); err != nil {
		return sendBadBody(c)
	}

	alert, err := h.tracker.AcknowledgeAlert(c.Params("identifier"), c.Params("alert"), request.AcknowledgedBy)
	if err != nil {
		return sendError(c, err)
	}

	return sendReduced(c, fiber.StatusOK, detailedGroups, alert)
}

func (h *trackingSessionsHandler) resolveAlert(c *fiber.Ctx) error {
	alert, err := h.tracker.ResolveAlert(c.Params("identifier"), c.Params("alert"))
	if err != nil {
		return sendError(c, err)
	}

	return sendReduced(c, fiber.StatusOK, detailedGroups, alert)
}
