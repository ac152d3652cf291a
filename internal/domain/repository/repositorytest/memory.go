// Package repositorytest provides an in-memory UserRepository for tests.
package repositorytest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/internal/domain/repository"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

// Memory is a concurrency-safe UserRepository. Subscriptions and watch
// history are seeded directly through the exported fields.
type Memory struct {
	mu     sync.Mutex
	users  map[string]*entity.User
	nextID int

	// Subscriptions maps channel id to subscriber ids.
	Subscriptions map[string][]string
	// History maps user id to videos in watch order.
	History map[string][]entity.Video

	// Fail, when set, is returned by every method.
	Fail error
}

func NewMemory() *Memory {
	return &Memory{
		users:         map[string]*entity.User{},
		Subscriptions: map[string][]string{},
		History:       map[string][]entity.Video{},
	}
}

// User returns a stored copy including secrets, or nil.
func (m *Memory) User(id string) *entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

// Delete removes a user row.
func (m *Memory) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *Memory) taken(exceptID, username, email string) bool {
	for id, u := range m.users {
		if id == exceptID {
			continue
		}
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return true
		}
	}
	return false
}

func (m *Memory) Create(_ context.Context, u *entity.User, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	if m.taken("", u.Username, u.Email) {
		return repository.ErrDuplicate
	}
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return err
	}
	m.nextID++
	now := time.Now().UTC()
	u.ID = "user-" + strconv.Itoa(m.nextID)
	u.PasswordHash = hash
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) get(id string) (*entity.User, error) {
	if m.Fail != nil {
		return nil, m.Fail
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (m *Memory) GetByID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return u.WithoutSecrets(), nil
}

func (m *Memory) GetCredentialsByID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) FindByUsernameOrEmail(_ context.Context, username, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	for _, u := range m.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Memory) mutate(id string, fn func(u *entity.User) error) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = time.Now().UTC()
	return u.WithoutSecrets(), nil
}

func (m *Memory) SetRefreshToken(_ context.Context, id, token string) error {
	_, err := m.mutate(id, func(u *entity.User) error { u.RefreshToken = token; return nil })
	return err
}

func (m *Memory) ClearRefreshToken(ctx context.Context, id string) error {
	return m.SetRefreshToken(ctx, id, "")
}

func (m *Memory) UpdatePassword(_ context.Context, id, password string) error {
	_, err := m.mutate(id, func(u *entity.User) error {
		hash, err := helpers.HashPassword(password)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		return nil
	})
	return err
}

func (m *Memory) UpdateProfile(_ context.Context, id, fullname, email string) (*entity.User, error) {
	return m.mutate(id, func(u *entity.User) error {
		if m.taken(id, "", email) {
			return repository.ErrDuplicate
		}
		u.Fullname, u.Email = fullname, email
		return nil
	})
}

func (m *Memory) UpdateAvatar(_ context.Context, id, url string) (*entity.User, error) {
	return m.mutate(id, func(u *entity.User) error { u.AvatarURL = url; return nil })
}

func (m *Memory) UpdateCoverImage(_ context.Context, id, url string) (*entity.User, error) {
	return m.mutate(id, func(u *entity.User) error { u.CoverImageURL = url; return nil })
}

func (m *Memory) GetChannelProfile(_ context.Context, username, viewerID string) (*entity.ChannelProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	for _, u := range m.users {
		if u.Username != username {
			continue
		}
		p := &entity.ChannelProfile{
			ID: u.ID, Fullname: u.Fullname, Username: u.Username, Email: u.Email,
			AvatarURL: u.AvatarURL, CoverImageURL: u.CoverImageURL,
		}
		for _, sub := range m.Subscriptions[u.ID] {
			p.SubscribersCount++
			if viewerID != "" && sub == viewerID {
				p.IsSubscribed = true
			}
		}
		for _, subs := range m.Subscriptions {
			for _, sub := range subs {
				if sub == u.ID {
					p.ChannelsSubscribedToCount++
				}
			}
		}
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (m *Memory) GetWatchHistory(_ context.Context, userID string) ([]entity.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	out := append([]entity.Video{}, m.History[userID]...)
	return out, nil
}

var _ repository.UserRepository = (*Memory)(nil)
