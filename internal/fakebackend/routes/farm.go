package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agro-insight/agroinsight/internal/fakebackend/farm"
)

// RegisterFarmRoutes wires farm, plot, task, cost, report and pest routes.
// replay guards cost registration against duplicate submissions.
func RegisterFarmRoutes(r fiber.Router, h *farm.Handler, replay fiber.Handler) {
	r.Get("/farms", h.ListFarms)
	r.Post("/farms", h.CreateFarm)
	r.Get("/farms/:id", h.GetFarm)
	r.Get("/farms/:id/plots", h.ListPlots)
	r.Post("/farms/:id/plots", h.CreatePlot)
	r.Get("/farms/:id/tasks", h.ListTasks)
	r.Post("/farms/:id/tasks", h.CreateTask)
	r.Get("/farms/:id/reports/financial", h.Report)

	r.Get("/crops", h.ListCrops)

	r.Get("/tasks/:id", h.GetTask)
	r.Post("/tasks/:id/assign", h.AssignTask)
	r.Post("/tasks/:id/complete", h.CompleteTask)

	r.Post("/costs", replay, h.RegisterCost)
	r.Post("/pest-detection", h.DetectPest)
}
