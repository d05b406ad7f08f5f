package farm

import (
	"errors"
	"testing"

	"github.com/agro-insight/agroinsight/internal/agro"
	"github.com/agro-insight/agroinsight/internal/validation"
)

var (
	manager = Viewer{UserID: "owner-1", Role: agro.RoleManager, FarmID: 1}
	worker  = Viewer{UserID: "worker-1", Role: agro.RoleWorker, FarmID: 1}
	admin   = Viewer{UserID: "admin-1", Role: agro.RoleAdmin}
)

func newSeededService() *Service {
	store := NewStore()
	store.Seed(manager.UserID, worker.UserID)
	return NewService(store)
}

func TestFarmVisibilityByRole(t *testing.T) {
	svc := newSeededService()
	tests := []struct {
		name   string
		viewer Viewer
		want   int
	}{
		{name: "admin sees all", viewer: admin, want: 2},
		{name: "owner sees both farms", viewer: manager, want: 2},
		{name: "worker sees own farm", viewer: worker, want: 1},
		{name: "stranger sees nothing", viewer: Viewer{UserID: "x", Role: agro.RoleWorker, FarmID: 9}, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := len(svc.ListFarms(tc.viewer)); got != tc.want {
				t.Fatalf("expected %d farms, got %d", tc.want, got)
			}
		})
	}

	if _, err := svc.GetTask(worker, 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected task on another farm to be hidden, got %v", err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	svc := newSeededService()

	if _, err := svc.CreateTask(worker, validation.Task{FarmID: 1, Title: "Weed"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected workers to be unable to create tasks, got %v", err)
	}

	task, err := svc.CreateTask(manager, validation.Task{FarmID: 1, PlotID: 2, Title: "Weed the flat", DueDate: "2026-11-01"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != agro.TaskPending {
		t.Fatalf("expected pending, got %s", task.Status)
	}

	if _, err := svc.CompleteTask(worker, task.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected unassigned worker to be refused, got %v", err)
	}
	task, err = svc.AssignTask(manager, task.ID, worker.UserID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if task.Status != agro.TaskInProgress || task.AssigneeID != worker.UserID {
		t.Fatalf("unexpected task after assign: %+v", task)
	}
	task, err = svc.CompleteTask(worker, task.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if task.Status != agro.TaskCompleted {
		t.Fatalf("expected completed, got %s", task.Status)
	}
}

func TestCreateTaskRejectsForeignPlot(t *testing.T) {
	svc := newSeededService()
	_, err := svc.CreateTask(manager, validation.Task{FarmID: 1, PlotID: 3, Title: "Wrong plot"})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Field("plot_id"); !ok {
		t.Fatalf("expected plot_id field error, got %v", err)
	}
}

func TestReportFiltersByPeriod(t *testing.T) {
	svc := newSeededService()
	for _, c := range []validation.Cost{
		{FarmID: 1, Category: "labor", Amount: 100, Date: "2026-01-10"},
		{FarmID: 1, Category: "labor", Amount: 50.5, Date: "2026-01-20"},
		{FarmID: 1, Category: "other", Amount: 10, Date: "2026-02-01"},
	} {
		if _, err := svc.RegisterCost(manager, c, ""); err != nil {
			t.Fatalf("register cost: %v", err)
		}
	}

	report, err := svc.Report(manager, 1, "2026-01-01", "2026-01-31")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.TotalCost != 150.5 || len(report.Entries) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.ByCategory["labor"] != 150.5 {
		t.Fatalf("expected labor total 150.5, got %v", report.ByCategory["labor"])
	}
	if report.Entries[0].Date != "2026-01-10" {
		t.Fatalf("expected entries ordered by date, got %+v", report.Entries)
	}
}

func TestDetectPestIsDeterministic(t *testing.T) {
	svc := newSeededService()
	image := []byte("leaf photo bytes")

	first, err := svc.DetectPest(worker, 1, image)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	second, _ := svc.DetectPest(worker, 1, image)
	if first != second {
		t.Fatalf("expected identical verdicts, got %+v and %+v", first, second)
	}
	if first.Confidence < 0.6 || first.Confidence > 0.99 {
		t.Fatalf("confidence out of range: %v", first.Confidence)
	}
	if _, err := svc.DetectPest(worker, 3, image); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected plot on another farm to be hidden, got %v", err)
	}
}
