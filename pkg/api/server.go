package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/fleettracker/pkg/api/routes"
	"github.com/travigo/fleettracker/pkg/realtime/vehicletracker"
)

func NewApp(tracker *vehicletracker.Tracker) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	webApp.Get("version", routes.APIVersion)

	routes.TrackingSessionsRouter(webApp.Group("/tracking/sessions"), tracker)

	return webApp
}

func SetupServer(listen string, tracker *vehicletracker.Tracker) error {
	return NewApp(tracker).Listen(listen)
}
