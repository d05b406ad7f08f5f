package agro

import (
	"strings"
	"time"
)

// Roles reported by the backend.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleWorker  = "worker"
)

// User is the signed-in account.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	FarmID    int64  `json:"farm_id,omitempty"`
}

// Name is the display name, falling back to the email.
func (u User) Name() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// LoginResult is the first authentication step's answer.
type LoginResult struct {
	Message              string `json:"message"`
	Email                string `json:"email"`
	RequiresVerification bool   `json:"requires_verification"`
}

// TokenGrant is issued once the second factor is verified.
type TokenGrant struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	User        *User  `json:"user,omitempty"`
}

// MessageResult is the shape of acknowledgement-only endpoints.
type MessageResult struct {
	Message string `json:"message"`
}

// RegisterResult acknowledges a new account.
type RegisterResult struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// Farm is a managed property.
type Farm struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Location string  `json:"location,omitempty"`
	AreaHa   float64 `json:"area_ha"`
	OwnerID  string  `json:"owner_id,omitempty"`
}

// Plot is a parcel of a farm.
type Plot struct {
	ID       int64   `json:"id"`
	FarmID   int64   `json:"farm_id"`
	Name     string  `json:"name"`
	AreaHa   float64 `json:"area_ha"`
	CropID   int64   `json:"crop_id,omitempty"`
	CropName string  `json:"crop_name,omitempty"`
}

// Crop is a catalogue entry.
type Crop struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Variety   string `json:"variety,omitempty"`
	CycleDays int    `json:"cycle_days,omitempty"`
}

// TaskStatus is the lifecycle of a field task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// Task is a unit of field work.
type Task struct {
	ID          int64      `json:"id"`
	FarmID      int64      `json:"farm_id"`
	PlotID      int64      `json:"plot_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	DueDate     string     `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Cost is a registered expense.
type Cost struct {
	ID          int64   `json:"id"`
	FarmID      int64   `json:"farm_id"`
	TaskID      int64   `json:"task_id,omitempty"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description,omitempty"`
}

// FinancialReport summarises the costs of a farm over a period.
type FinancialReport struct {
	FarmID     int64              `json:"farm_id"`
	From       string             `json:"from,omitempty"`
	To         string             `json:"to,omitempty"`
	Currency   string             `json:"currency"`
	TotalCost  float64            `json:"total_cost"`
	ByCategory map[string]float64 `json:"by_category"`
	Entries    []Cost             `json:"entries"`
}

// PestDetection is the classifier's verdict for one image.
type PestDetection struct {
	PlotID         int64   `json:"plot_id"`
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
	Healthy        bool    `json:"healthy"`
	Recommendation string  `json:"recommendation,omitempty"`
}
