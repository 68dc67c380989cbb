package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence boundary. Lookups return (nil, nil) when nothing
// matches; unique-field conflicts return ErrDuplicate.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	// PushUserThought appends thoughtID to the user's thought list.
	PushUserThought(ctx context.Context, userID, thoughtID string) error
	// AddFriend inserts friendID into the user's friend set and returns the
	// updated user, or nil when userID does not exist.
	AddFriend(ctx context.Context, userID, friendID string) (*User, error)
	// Thought operations
	CreateThought(ctx context.Context, t *Thought) (*Thought, error)
	GetThought(ctx context.Context, id string) (*Thought, error)
	GetThoughtsByIDs(ctx context.Context, ids []string) ([]*Thought, error)
	// ListThoughts returns thoughts newest first, filtered by author when
	// username is not empty.
	ListThoughts(ctx context.Context, username string) ([]*Thought, error)
	// AddReaction appends r to the thought and returns the updated thought,
	// or nil when thoughtID does not exist.
	AddReaction(ctx context.Context, thoughtID string, r *Reaction) (*Thought, error)
	// lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// MemStore keeps everything in process memory.
type MemStore struct {
	mu       sync.RWMutex
	users    map[string]*User
	thoughts map[string]*Thought
}

func NewMemoryStore() *MemStore {
	return &MemStore{users: map[string]*User{}, thoughts: map[string]*Thought{}}
}

func copyUser(u *User) *User {
	c := *u
	c.ThoughtIDs = append([]string(nil), u.ThoughtIDs...)
	c.FriendIDs = append([]string(nil), u.FriendIDs...)
	return &c
}

func copyThought(t *Thought) *Thought {
	c := *t
	c.Reactions = append([]Reaction(nil), t.Reactions...)
	return &c
}

func (m *MemStore) CreateUser(_ context.Context, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return nil, ErrDuplicate
		}
	}
	c := copyUser(u)
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	m.users[c.ID] = c
	return copyUser(c), nil
}

func (m *MemStore) GetUserByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (m *MemStore) findUser(match func(*User) bool) *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			return copyUser(u)
		}
	}
	return nil
}

func (m *MemStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	return m.findUser(func(u *User) bool { return u.Email == email }), nil
}

func (m *MemStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	return m.findUser(func(u *User) bool { return u.Username == username }), nil
}

func (m *MemStore) GetUsersByIDs(_ context.Context, ids []string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, copyUser(u))
		}
	}
	return out, nil
}

func (m *MemStore) ListUsers(_ context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) PushUserThought(_ context.Context, userID, thoughtID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.ThoughtIDs = append(u.ThoughtIDs, thoughtID)
	return nil
}

func (m *MemStore) AddFriend(_ context.Context, userID, friendID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	for _, f := range u.FriendIDs {
		if f == friendID {
			return copyUser(u), nil
		}
	}
	u.FriendIDs = append(u.FriendIDs, friendID)
	return copyUser(u), nil
}

func (m *MemStore) CreateThought(_ context.Context, t *Thought) (*Thought, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := copyThought(t)
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	m.thoughts[c.ID] = c
	return copyThought(c), nil
}

func (m *MemStore) GetThought(_ context.Context, id string) (*Thought, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.thoughts[id]; ok {
		return copyThought(t), nil
	}
	return nil, nil
}

func (m *MemStore) GetThoughtsByIDs(_ context.Context, ids []string) ([]*Thought, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Thought, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.thoughts[id]; ok {
			out = append(out, copyThought(t))
		}
	}
	return out, nil
}

func (m *MemStore) ListThoughts(_ context.Context, username string) ([]*Thought, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Thought, 0, len(m.thoughts))
	for _, t := range m.thoughts {
		if username == "" || t.Username == username {
			out = append(out, copyThought(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) AddReaction(_ context.Context, thoughtID string, r *Reaction) (*Thought, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.thoughts[thoughtID]
	if !ok {
		return nil, nil
	}
	c := *r
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	t.Reactions = append(t.Reactions, c)
	return copyThought(t), nil
}

func (m *MemStore) Ping(context.Context) error { return nil }
func (m *MemStore) Close() error               { return nil }
