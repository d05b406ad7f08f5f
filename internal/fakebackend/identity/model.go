package identity

import "time"

// Roles a fake account can hold.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleWorker  = "worker"
)

// User is a registered account.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Role         string
	FarmID       int64
	PasswordHash []byte
	CreatedAt    time.Time
}

// Credentials is the login form.
type Credentials struct {
	Email    string
	Password string
}

// RegisterInput creates an account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
	FarmID    int64
}
