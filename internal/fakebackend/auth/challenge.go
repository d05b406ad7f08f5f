package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoChallenge means no code is pending, or it expired.
var ErrNoChallenge = errors.New("no pending code")

// ChallengeStore keeps pending one-time codes keyed by purpose and email.
type ChallengeStore interface {
	Put(ctx context.Context, key, code string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type memoryChallenge struct {
	code    string
	expires time.Time
}

type memoryChallenges struct {
	mu    sync.Mutex
	items map[string]memoryChallenge
	now   func() time.Time
}

// NewMemoryChallengeStore keeps codes in process memory.
func NewMemoryChallengeStore() ChallengeStore {
	return &memoryChallenges{items: make(map[string]memoryChallenge), now: time.Now}
}

func (m *memoryChallenges) Put(_ context.Context, key, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memoryChallenge{code: code, expires: m.now().Add(ttl)}
	return nil
}

func (m *memoryChallenges) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return "", ErrNoChallenge
	}
	if !m.now().Before(it.expires) {
		delete(m.items, key)
		return "", ErrNoChallenge
	}
	return it.code, nil
}

func (m *memoryChallenges) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

const challengePrefix = "agrofake:challenge:"

type redisChallenges struct {
	client *redis.Client
}

// NewRedisChallengeStore keeps codes in Redis with native expiry.
func NewRedisChallengeStore(client *redis.Client) ChallengeStore {
	return &redisChallenges{client: client}
}

func (r *redisChallenges) Put(ctx context.Context, key, code string, ttl time.Duration) error {
	if err := r.client.Set(ctx, challengePrefix+key, code, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (r *redisChallenges) Get(ctx context.Context, key string) (string, error) {
	code, err := r.client.Get(ctx, challengePrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoChallenge
	}
	if err != nil {
		return "", fmt.Errorf("load challenge: %w", err)
	}
	return code, nil
}

func (r *redisChallenges) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, challengePrefix+key).Err()
}
