package farm

import (
	"sort"
	"sync"
	"time"

	"github.com/agro-insight/agroinsight/internal/agro"
)

// Store holds the fake backend's farm data in memory.
type Store struct {
	mu     sync.RWMutex
	farms  map[int64]agro.Farm
	plots  map[int64]agro.Plot
	crops  map[int64]agro.Crop
	tasks  map[int64]agro.Task
	costs  []agro.Cost
	nextID int64
	now    func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		farms:  make(map[int64]agro.Farm),
		plots:  make(map[int64]agro.Plot),
		crops:  make(map[int64]agro.Crop),
		tasks:  make(map[int64]agro.Task),
		nextID: 100,
		now:    time.Now,
	}
}

// Seed loads a demo farm owned by ownerID, with workerID assigned to its
// first task. Calling it twice is a no-op.
func (s *Store) Seed(ownerID, workerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.farms[1]; ok {
		return
	}
	now := s.now().UTC()

	s.crops[1] = agro.Crop{ID: 1, Name: "Coffee", Variety: "Castillo", CycleDays: 270}
	s.crops[2] = agro.Crop{ID: 2, Name: "Maize", Variety: "ICA V-305", CycleDays: 120}
	s.crops[3] = agro.Crop{ID: 3, Name: "Plantain", Variety: "Dominico Harton", CycleDays: 365}

	s.farms[1] = agro.Farm{ID: 1, Name: "La Esperanza", Location: "Huila", AreaHa: 42.5, OwnerID: ownerID}
	s.farms[2] = agro.Farm{ID: 2, Name: "El Mirador", Location: "Tolima", AreaHa: 18, OwnerID: ownerID}

	s.plots[1] = agro.Plot{ID: 1, FarmID: 1, Name: "North slope", AreaHa: 12, CropID: 1, CropName: "Coffee"}
	s.plots[2] = agro.Plot{ID: 2, FarmID: 1, Name: "River flat", AreaHa: 8.5, CropID: 2, CropName: "Maize"}
	s.plots[3] = agro.Plot{ID: 3, FarmID: 2, Name: "Main block", AreaHa: 18, CropID: 3, CropName: "Plantain"}

	s.tasks[1] = agro.Task{ID: 1, FarmID: 1, PlotID: 1, Title: "Prune coffee rows", Status: agro.TaskInProgress,
		AssigneeID: workerID, DueDate: now.AddDate(0, 0, 3).Format(dateLayout), CreatedAt: now}
	s.tasks[2] = agro.Task{ID: 2, FarmID: 1, PlotID: 2, Title: "Apply fertiliser", Status: agro.TaskPending,
		DueDate: now.AddDate(0, 0, 7).Format(dateLayout), CreatedAt: now}
	s.tasks[3] = agro.Task{ID: 3, FarmID: 2, PlotID: 3, Title: "Harvest bunches", Status: agro.TaskPending, CreatedAt: now}

	s.costs = append(s.costs,
		agro.Cost{ID: 1, FarmID: 1, TaskID: 1, Category: "labor", Amount: 320, Date: now.AddDate(0, 0, -10).Format(dateLayout), Description: "Pruning crew"},
		agro.Cost{ID: 2, FarmID: 1, TaskID: 2, Category: "material", Amount: 540.75, Date: now.AddDate(0, 0, -4).Format(dateLayout), Description: "NPK 17-6-18"},
		agro.Cost{ID: 3, FarmID: 2, Category: "equipment", Amount: 95, Date: now.AddDate(0, 0, -2).Format(dateLayout)},
	)
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) farm(id int64) (agro.Farm, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.farms[id]
	return f, ok
}

func (s *Store) listFarms() []agro.Farm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]agro.Farm, 0, len(s.farms))
	for _, f := range s.farms {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) addFarm(f agro.Farm) agro.Farm {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = s.id()
	s.farms[f.ID] = f
	return f
}

func (s *Store) plot(id int64) (agro.Plot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plots[id]
	return p, ok
}

func (s *Store) listPlots(farmID int64) []agro.Plot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []agro.Plot
	for _, p := range s.plots {
		if p.FarmID == farmID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) addPlot(p agro.Plot) agro.Plot {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	if c, ok := s.crops[p.CropID]; ok {
		p.CropName = c.Name
	}
	s.plots[p.ID] = p
	return p
}

func (s *Store) listCrops() []agro.Crop {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]agro.Crop, 0, len(s.crops))
	for _, c := range s.crops {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) task(id int64) (agro.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

func (s *Store) listTasks(farmID int64) []agro.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []agro.Task{}
	for _, t := range s.tasks {
		if t.FarmID == farmID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) addTask(t agro.Task) agro.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	t.CreatedAt = s.now().UTC()
	s.tasks[t.ID] = t
	return t
}

// updateTask applies fn to the stored task under the write lock.
func (s *Store) updateTask(id int64, fn func(*agro.Task)) (agro.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return agro.Task{}, false
	}
	fn(&t)
	s.tasks[id] = t
	return t, true
}

func (s *Store) addCost(c agro.Cost) agro.Cost {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.costs = append(s.costs, c)
	return c
}

func (s *Store) listCosts(farmID int64) []agro.Cost {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []agro.Cost
	for _, c := range s.costs {
		if c.FarmID == farmID {
			out = append(out, c)
		}
	}
	return out
}
