package farm

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/agro-insight/agroinsight/internal/fakebackend/auth"
	"github.com/agro-insight/agroinsight/internal/fakebackend/middleware"
	"github.com/agro-insight/agroinsight/internal/validation"
)

const maxImageBytes = 8 << 20

// Handler exposes the farm endpoints. Every route expects the bearer
// middleware to have run.
type Handler struct {
	svc *Service
}

// NewHandler builds the farm handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func viewer(c *fiber.Ctx) (Viewer, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return Viewer{}, fiber.NewError(http.StatusUnauthorized, "not authenticated")
	}
	return Viewer{UserID: user.ID, Role: user.Role, FarmID: user.FarmID}, nil
}

func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func fail(c *fiber.Ctx, err error) error {
	var verr *validation.Error
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrForbidden):
		// 401 and 403 end the client's session; a role denial must not.
		return fiber.NewError(http.StatusConflict, "not allowed for your role")
	case errors.As(err, &verr):
		return auth.ValidationProblem(c, err)
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

// ListFarms handles GET /farms.
func (h *Handler) ListFarms(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	return c.JSON(h.svc.ListFarms(v))
}

// GetFarm handles GET /farms/:id.
func (h *Handler) GetFarm(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	f, err := h.svc.GetFarm(v, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(f)
}

// CreateFarm handles POST /farms.
func (h *Handler) CreateFarm(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	var form validation.Farm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.CreateFarm(v, form)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(f)
}

// ListPlots handles GET /farms/:id/plots.
func (h *Handler) ListPlots(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	plots, err := h.svc.ListPlots(v, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(plots)
}

// CreatePlot handles POST /farms/:id/plots.
func (h *Handler) CreatePlot(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var form validation.Plot
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	form.FarmID = id
	p, err := h.svc.CreatePlot(v, form)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(p)
}

// ListCrops handles GET /crops.
func (h *Handler) ListCrops(c *fiber.Ctx) error {
	return c.JSON(h.svc.ListCrops())
}

// ListTasks handles GET /farms/:id/tasks.
func (h *Handler) ListTasks(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	tasks, err := h.svc.ListTasks(v, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tasks)
}

// CreateTask handles POST /farms/:id/tasks.
func (h *Handler) CreateTask(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var form validation.Task
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	form.FarmID = id
	t, err := h.svc.CreateTask(v, form)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(t)
}

// GetTask handles GET /tasks/:id.
func (h *Handler) GetTask(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.GetTask(v, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(t)
}

type assignRequest struct {
	UserID string `json:"user_id"`
}

// AssignTask handles POST /tasks/:id/assign.
func (h *Handler) AssignTask(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return fail(c, &validation.Error{Fields: []validation.FieldError{{Field: "user_id", Message: "assignee is required"}}})
	}
	t, err := h.svc.AssignTask(v, id, req.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(t)
}

// CompleteTask handles POST /tasks/:id/complete.
func (h *Handler) CompleteTask(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.CompleteTask(v, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(t)
}

type costRequest struct {
	validation.Cost
	Description string `json:"description"`
}

// RegisterCost handles POST /costs.
func (h *Handler) RegisterCost(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	var req costRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	cost, err := h.svc.RegisterCost(v, req.Cost, req.Description)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(cost)
}

// Report handles GET /farms/:id/reports/financial.
func (h *Handler) Report(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	report, err := h.svc.Report(v, id, c.Query("from"), c.Query("to"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(report)
}

// DetectPest handles the multipart POST /pest-detection.
func (h *Handler) DetectPest(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	plotID, err := strconv.ParseInt(c.FormValue("plot_id"), 10, 64)
	if err != nil || plotID <= 0 {
		return fail(c, &validation.Error{Fields: []validation.FieldError{{Field: "plot_id", Message: "plot is required"}}})
	}
	header, err := c.FormFile("image")
	if err != nil {
		return fail(c, &validation.Error{Fields: []validation.FieldError{{Field: "image", Message: "an image is required"}}})
	}
	f, err := header.Open()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()
	image, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.DetectPest(v, plotID, image)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}
