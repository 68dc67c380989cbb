package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Resolver implements the queries and mutations of the API on top of a Store.
type Resolver struct {
	Store  Store
	Tokens *TokenCodec
	Log    logrus.FieldLogger
}

func NewResolver(store Store, tokens *TokenCodec, log logrus.FieldLogger) *Resolver {
	return &Resolver{Store: store, Tokens: tokens, Log: log}
}

func (r *Resolver) populateUser(ctx context.Context, u *User) (*UserView, error) {
	thoughts, err := r.Store.GetThoughtsByIDs(ctx, u.ThoughtIDs)
	if err != nil {
		return nil, err
	}
	friends, err := r.Store.GetUsersByIDs(ctx, u.FriendIDs)
	if err != nil {
		return nil, err
	}
	v := &UserView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FriendCount: len(u.FriendIDs),
		Thoughts:    make([]*ThoughtView, 0, len(thoughts)),
		Friends:     make([]FriendView, 0, len(friends)),
	}
	for _, t := range thoughts {
		v.Thoughts = append(v.Thoughts, newThoughtView(t))
	}
	for _, f := range friends {
		v.Friends = append(v.Friends, FriendView{ID: f.ID, Username: f.Username})
	}
	return v, nil
}

func thoughtViews(ts []*Thought) []*ThoughtView {
	out := make([]*ThoughtView, 0, len(ts))
	for _, t := range ts {
		out = append(out, newThoughtView(t))
	}
	return out
}

// Me returns the caller's own profile.
func (r *Resolver) Me(ctx context.Context) (*UserView, error) {
	return authorized(ctx, func(id Identity) (*UserView, error) {
		u, err := r.Store.GetUserByID(ctx, id.ID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, fmt.Errorf("user %s: %w", id.Username, ErrNotFound)
		}
		return r.populateUser(ctx, u)
	})
}

func (r *Resolver) Users(ctx context.Context) ([]*UserView, error) {
	users, err := r.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*UserView, 0, len(users))
	for _, u := range users {
		v, err := r.populateUser(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Resolver) User(ctx context.Context, username string) (*UserView, error) {
	u, err := r.Store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return r.populateUser(ctx, u)
}

// Thoughts lists thoughts newest first, optionally only those by username.
func (r *Resolver) Thoughts(ctx context.Context, username string) ([]*ThoughtView, error) {
	ts, err := r.Store.ListThoughts(ctx, username)
	if err != nil {
		return nil, err
	}
	return thoughtViews(ts), nil
}

func (r *Resolver) Thought(ctx context.Context, id string) (*ThoughtView, error) {
	t, err := r.Store.GetThought(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("thought %s: %w", id, ErrNotFound)
	}
	return newThoughtView(t), nil
}

func (r *Resolver) issueAuth(ctx context.Context, u *User) (*Auth, error) {
	token, err := r.Tokens.Issue(u.identity())
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	view, err := r.populateUser(ctx, u)
	if err != nil {
		return nil, err
	}
	return &Auth{Token: token, User: view}, nil
}

// AddUser registers a user and signs them in.
func (r *Resolver) AddUser(ctx context.Context, in registerInput) (*Auth, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	u, err := r.Store.CreateUser(ctx, &User{Username: in.Username, Email: in.Email, Password: hashed})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, newValidationError("user", "username or email already exists")
		}
		return nil, err
	}
	r.Log.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username}).Info("user registered")
	return r.issueAuth(ctx, u)
}

// Login exchanges email and password for a token. Unknown email and wrong
// password fail identically.
func (r *Resolver) Login(ctx context.Context, in loginInput) (*Auth, error) {
	u, err := r.Store.GetUserByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if !comparePassword(u.Password, in.Password) {
		return nil, ErrInvalidCredentials
	}
	return r.issueAuth(ctx, u)
}

// AddThought stores a thought by the caller and then appends it to the
// caller's thought list. The two writes are separate: if the second fails the
// thought exists without a back-reference and the error is returned.
func (r *Resolver) AddThought(ctx context.Context, in thoughtInput) (*ThoughtView, error) {
	return authorized(ctx, func(id Identity) (*ThoughtView, error) {
		if err := validateInput(&in); err != nil {
			return nil, err
		}
		t, err := r.Store.CreateThought(ctx, &Thought{ThoughtText: in.ThoughtText, Username: id.Username})
		if err != nil {
			return nil, err
		}
		if err := r.Store.PushUserThought(ctx, id.ID, t.ID); err != nil {
			r.Log.WithError(err).WithFields(logrus.Fields{"user_id": id.ID, "thought_id": t.ID}).
				Error("thought stored without user reference")
			return nil, err
		}
		return newThoughtView(t), nil
	})
}

// AddReaction appends a reaction by the caller to the given thought.
func (r *Resolver) AddReaction(ctx context.Context, in reactionInput) (*ThoughtView, error) {
	return authorized(ctx, func(id Identity) (*ThoughtView, error) {
		if err := validateInput(&in); err != nil {
			return nil, err
		}
		t, err := r.Store.AddReaction(ctx, in.ThoughtID, &Reaction{ReactionBody: in.ReactionBody, Username: id.Username})
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("thought %s: %w", in.ThoughtID, ErrNotFound)
		}
		return newThoughtView(t), nil
	})
}

// AddFriend adds friendId to the caller's friend set. Repeating it is a no-op.
func (r *Resolver) AddFriend(ctx context.Context, in friendInput) (*UserView, error) {
	return authorized(ctx, func(id Identity) (*UserView, error) {
		if err := validateInput(&in); err != nil {
			return nil, err
		}
		friend, err := r.Store.GetUserByID(ctx, in.FriendID)
		if err != nil {
			return nil, err
		}
		if friend == nil {
			return nil, fmt.Errorf("user %s: %w", in.FriendID, ErrNotFound)
		}
		u, err := r.Store.AddFriend(ctx, id.ID, friend.ID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, fmt.Errorf("user %s: %w", id.Username, ErrNotFound)
		}
		return r.populateUser(ctx, u)
	})
}
