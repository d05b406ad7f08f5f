package farm

import (
	"crypto/sha256"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/agro-insight/agroinsight/internal/agro"
	"github.com/agro-insight/agroinsight/internal/validation"
)

var (
	// ErrNotFound hides records outside the caller's reach as well as
	// missing ones.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a role may see a record but not change it.
	ErrForbidden = errors.New("forbidden")
)

const (
	dateLayout     = "2006-01-02"
	reportCurrency = "USD"
)

// Viewer is the authenticated caller.
type Viewer struct {
	UserID string
	Role   string
	FarmID int64
}

func (v Viewer) canSee(f agro.Farm) bool {
	switch v.Role {
	case agro.RoleAdmin:
		return true
	case agro.RoleManager:
		return f.OwnerID == v.UserID || f.ID == v.FarmID
	default:
		return f.ID == v.FarmID
	}
}

func (v Viewer) canManage() bool {
	return v.Role == agro.RoleAdmin || v.Role == agro.RoleManager
}

// Service applies visibility rules over the store. Workers only see their
// own farm and may only complete tasks assigned to them.
type Service struct {
	store *Store
}

// NewService builds the farm service.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// ListFarms returns the farms v can see.
func (s *Service) ListFarms(v Viewer) []agro.Farm {
	out := []agro.Farm{}
	for _, f := range s.store.listFarms() {
		if v.canSee(f) {
			out = append(out, f)
		}
	}
	return out
}

// GetFarm returns one visible farm.
func (s *Service) GetFarm(v Viewer, id int64) (agro.Farm, error) {
	f, ok := s.store.farm(id)
	if !ok || !v.canSee(f) {
		return agro.Farm{}, ErrNotFound
	}
	return f, nil
}

// CreateFarm adds a farm owned by v.
func (s *Service) CreateFarm(v Viewer, form validation.Farm) (agro.Farm, error) {
	if !v.canManage() {
		return agro.Farm{}, ErrForbidden
	}
	if err := validation.Struct(form); err != nil {
		return agro.Farm{}, err
	}
	return s.store.addFarm(agro.Farm{Name: strings.TrimSpace(form.Name), Location: form.Location, AreaHa: form.AreaHa, OwnerID: v.UserID}), nil
}

// ListPlots returns the plots of a visible farm.
func (s *Service) ListPlots(v Viewer, farmID int64) ([]agro.Plot, error) {
	if _, err := s.GetFarm(v, farmID); err != nil {
		return nil, err
	}
	plots := s.store.listPlots(farmID)
	if plots == nil {
		plots = []agro.Plot{}
	}
	return plots, nil
}

// CreatePlot adds a plot to a visible farm.
func (s *Service) CreatePlot(v Viewer, form validation.Plot) (agro.Plot, error) {
	if err := validation.Struct(form); err != nil {
		return agro.Plot{}, err
	}
	if _, err := s.GetFarm(v, form.FarmID); err != nil {
		return agro.Plot{}, err
	}
	if !v.canManage() {
		return agro.Plot{}, ErrForbidden
	}
	return s.store.addPlot(agro.Plot{FarmID: form.FarmID, Name: form.Name, AreaHa: form.AreaHa, CropID: form.CropID}), nil
}

// ListCrops returns the crop catalogue.
func (s *Service) ListCrops() []agro.Crop {
	return s.store.listCrops()
}

// ListTasks returns the tasks of a visible farm.
func (s *Service) ListTasks(v Viewer, farmID int64) ([]agro.Task, error) {
	if _, err := s.GetFarm(v, farmID); err != nil {
		return nil, err
	}
	return s.store.listTasks(farmID), nil
}

// GetTask returns a task on a visible farm.
func (s *Service) GetTask(v Viewer, id int64) (agro.Task, error) {
	t, ok := s.store.task(id)
	if !ok {
		return agro.Task{}, ErrNotFound
	}
	if _, err := s.GetFarm(v, t.FarmID); err != nil {
		return agro.Task{}, err
	}
	return t, nil
}

// CreateTask opens a pending task.
func (s *Service) CreateTask(v Viewer, form validation.Task) (agro.Task, error) {
	if err := validation.Struct(form); err != nil {
		return agro.Task{}, err
	}
	if _, err := s.GetFarm(v, form.FarmID); err != nil {
		return agro.Task{}, err
	}
	if !v.canManage() {
		return agro.Task{}, ErrForbidden
	}
	if form.PlotID != 0 {
		if p, ok := s.store.plot(form.PlotID); !ok || p.FarmID != form.FarmID {
			return agro.Task{}, &validation.Error{Fields: []validation.FieldError{{Field: "plot_id", Message: "plot does not belong to this farm"}}}
		}
	}
	return s.store.addTask(agro.Task{
		FarmID:      form.FarmID,
		PlotID:      form.PlotID,
		Title:       strings.TrimSpace(form.Title),
		Description: form.Description,
		DueDate:     form.DueDate,
		Status:      agro.TaskPending,
	}), nil
}

// AssignTask gives a task to userID and moves it to in progress.
func (s *Service) AssignTask(v Viewer, id int64, userID string) (agro.Task, error) {
	if _, err := s.GetTask(v, id); err != nil {
		return agro.Task{}, err
	}
	if !v.canManage() {
		return agro.Task{}, ErrForbidden
	}
	t, _ := s.store.updateTask(id, func(t *agro.Task) {
		t.AssigneeID = userID
		if t.Status == agro.TaskPending {
			t.Status = agro.TaskInProgress
		}
	})
	return t, nil
}

// CompleteTask marks a task completed. Workers may only complete their own.
func (s *Service) CompleteTask(v Viewer, id int64) (agro.Task, error) {
	t, err := s.GetTask(v, id)
	if err != nil {
		return agro.Task{}, err
	}
	if !v.canManage() && t.AssigneeID != v.UserID {
		return agro.Task{}, ErrForbidden
	}
	t, _ = s.store.updateTask(id, func(t *agro.Task) { t.Status = agro.TaskCompleted })
	return t, nil
}

// RegisterCost records an expense against a visible farm.
func (s *Service) RegisterCost(v Viewer, form validation.Cost, description string) (agro.Cost, error) {
	if err := validation.Struct(form); err != nil {
		return agro.Cost{}, err
	}
	if _, err := s.GetFarm(v, form.FarmID); err != nil {
		return agro.Cost{}, err
	}
	if form.TaskID != 0 {
		if t, ok := s.store.task(form.TaskID); !ok || t.FarmID != form.FarmID {
			return agro.Cost{}, &validation.Error{Fields: []validation.FieldError{{Field: "task_id", Message: "task does not belong to this farm"}}}
		}
	}
	return s.store.addCost(agro.Cost{
		FarmID:      form.FarmID,
		TaskID:      form.TaskID,
		Category:    form.Category,
		Amount:      form.Amount,
		Date:        form.Date,
		Description: description,
	}), nil
}

// Report sums the costs of a farm between from and to, both inclusive
// YYYY-MM-DD dates. Empty bounds leave the period open.
func (s *Service) Report(v Viewer, farmID int64, from, to string) (agro.FinancialReport, error) {
	if _, err := s.GetFarm(v, farmID); err != nil {
		return agro.FinancialReport{}, err
	}
	report := agro.FinancialReport{
		FarmID:     farmID,
		From:       from,
		To:         to,
		Currency:   reportCurrency,
		ByCategory: map[string]float64{},
		Entries:    []agro.Cost{},
	}
	for _, c := range s.store.listCosts(farmID) {
		if from != "" && c.Date < from {
			continue
		}
		if to != "" && c.Date > to {
			continue
		}
		report.Entries = append(report.Entries, c)
		report.ByCategory[c.Category] += c.Amount
		report.TotalCost += c.Amount
	}
	sort.Slice(report.Entries, func(i, j int) bool { return report.Entries[i].Date < report.Entries[j].Date })
	report.TotalCost = math.Round(report.TotalCost*100) / 100
	return report, nil
}

type diagnosis struct {
	label          string
	healthy        bool
	recommendation string
}

var diagnoses = []diagnosis{
	{label: "healthy", healthy: true, recommendation: "No action needed."},
	{label: "coffee leaf rust", recommendation: "Remove infected leaves and apply a copper-based fungicide."},
	{label: "aphids", recommendation: "Release ladybirds or apply neem oil on the underside of leaves."},
	{label: "fall armyworm", recommendation: "Scout whorls daily and apply Bacillus thuringiensis early."},
	{label: "late blight", recommendation: "Improve drainage and apply a preventive fungicide before rain."},
}

// DetectPest classifies an image on a visible plot. The verdict is derived
// from the image digest, so the same photo always gets the same answer.
func (s *Service) DetectPest(v Viewer, plotID int64, image []byte) (agro.PestDetection, error) {
	p, ok := s.store.plot(plotID)
	if !ok {
		return agro.PestDetection{}, ErrNotFound
	}
	if _, err := s.GetFarm(v, p.FarmID); err != nil {
		return agro.PestDetection{}, err
	}
	if len(image) == 0 {
		return agro.PestDetection{}, &validation.Error{Fields: []validation.FieldError{{Field: "image", Message: "an image is required"}}}
	}
	sum := sha256.Sum256(image)
	d := diagnoses[int(sum[0])%len(diagnoses)]
	confidence := 0.6 + float64(sum[1])/255*0.39
	return agro.PestDetection{
		PlotID:         plotID,
		Label:          d.label,
		Confidence:     math.Round(confidence*100) / 100,
		Healthy:        d.healthy,
		Recommendation: d.recommendation,
	}, nil
}
