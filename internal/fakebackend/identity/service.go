package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Demo accounts seeded by Seed.
const (
	DemoEmail          = "demo@agroinsight.dev"
	DemoPassword       = "Agro#Demo2024"
	DemoWorkerEmail    = "worker@agroinsight.dev"
	DemoWorkerPassword = "Agro#Work2024"
)

// Service manages identity lifecycle.
type Service struct {
	repo Repository
	cost int
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// WithHashCost lowers the bcrypt cost, for tests.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// Register creates a user with a hashed password. Input shape is checked by
// the handler; this only enforces uniqueness.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}

	role := in.Role
	if role == "" {
		role = RoleManager
	}
	user := User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		FarmID:       in.FarmID,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies the password.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Lookup finds a user by email.
func (s *Service) Lookup(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Get finds a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// SetPassword replaces a user's password.
func (s *Service) SetPassword(ctx context.Context, id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, hash)
}

// Seed creates the demo accounts when they do not exist yet.
func (s *Service) Seed(ctx context.Context) error {
	seeds := []RegisterInput{
		{FirstName: "Demo", LastName: "Manager", Email: DemoEmail, Password: DemoPassword, Role: RoleManager, FarmID: 1},
		{FirstName: "Demo", LastName: "Worker", Email: DemoWorkerEmail, Password: DemoWorkerPassword, Role: RoleWorker, FarmID: 1},
	}
	for _, in := range seeds {
		if _, err := s.Register(ctx, in); err != nil && !errors.Is(err, ErrEmailTaken) {
			return err
		}
	}
	return nil
}
