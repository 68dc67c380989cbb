package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, r *Resolver, username string) *Auth {
	t.Helper()
	auth, err := r.AddUser(context.Background(), registerInput{
		Username: username,
		Email:    username + "@x.io",
		Password: "hunter22",
	})
	require.NoError(t, err)
	return auth
}

func TestAddUser(t *testing.T) {
	r := newTestResolver(t, NewMemoryStore())
	auth, err := r.AddUser(context.Background(), registerInput{
		Username: "  alice ",
		Email:    "a@x.io",
		Password: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", auth.User.Username)
	assert.Equal(t, 0, auth.User.FriendCount)
	assert.Empty(t, auth.User.Thoughts)

	id, err := r.Tokens.Verify(auth.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.User.ID, id.ID)
	assert.Equal(t, "alice", id.Username)

	stored, err := r.Store.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored.Password)
	assert.True(t, comparePassword(stored.Password, "hunter22"))
}

func TestAddUserValidation(t *testing.T) {
	r := newTestResolver(t, NewMemoryStore())
	tests := []struct {
		name  string
		in    registerInput
		field string
	}{
		{"missing username", registerInput{Email: "a@x.io", Password: "hunter22"}, "username"},
		{"blank username", registerInput{Username: "   ", Email: "a@x.io", Password: "hunter22"}, "username"},
		{"bad email", registerInput{Username: "alice", Email: "nope", Password: "hunter22"}, "email"},
		{"short password", registerInput{Username: "alice", Email: "a@x.io", Password: "abc"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.AddUser(context.Background(), tt.in)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestAddUserDuplicate(t *testing.T) {
	r := newTestResolver(t, NewMemoryStore())
	register(t, r, "alice")

	_, err := r.AddUser(context.Background(), registerInput{Username: "alice", Email: "other@x.io", Password: "hunter22"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = r.AddUser(context.Background(), registerInput{Username: "alice2", Email: "alice@x.io", Password: "hunter22"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestLogin(t *testing.T) {
	r := newTestResolver(t, NewMemoryStore())
	register(t, r, "alice")

	auth, err := r.Login(context.Background(), loginInput{Email: "alice@x.io", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "alice", auth.User.Username)
	assert.NotEmpty(t, auth.Token)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	r := newTestResolver(t, NewMemoryStore())
	register(t, r, "alice")

	_, wrongPassword := r.Login(context.Background(), loginInput{Email: "alice@x.io", Password: "nope!"})
	_, unknownEmail := r.Login(context.Background(), loginInput{Email: "ghost@x.io", Password: "hunter22"})

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())

	s1, b1 := classify(wrongPassword)
	s2, b2 := classify(unknownEmail)
	assert.Equal(t, s1, s2)
	assert.Equal(t, b1, b2)
}

func TestGatedOperationsWithoutIdentity(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore()}
	r := newTestResolver(t, store)
	ctx := context.Background()

	_, err := r.Me(ctx)
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = r.AddThought(ctx, thoughtInput{ThoughtText: "hello"})
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = r.AddReaction(ctx, reactionInput{ThoughtID: missingID, ReactionBody: "hi"})
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = r.AddFriend(ctx, friendInput{FriendID: missingID})
	require.ErrorIs(t, err, ErrUnauthenticated)

	assert.Equal(t, int32(0), store.writes.Load())
}

func TestAddThought(t *testing.T) {
	r := newTestResolver(t, NewMemoryStore())
	alice := register(t, r, "alice")
	ctx := asUser(context.Background(), alice.User)

	th, err := r.AddThought(ctx, thoughtInput{ThoughtText: "Go is fun"})
	require.NoError(t, err)
	assert.Equal(t, "alice", th.Username)
	assert.Equal(t, 0, th.ReactionCount)
	assert.NotNil(t, th.Reactions)

	me, err := r.Me(ctx)
	require.NoError(t, err)
	require.Len(t, me.Thoughts, 1)
	assert.Equal(t, th.ID, me.Thoughts[0].ID)
}

func TestAddThoughtValidation(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore()}
	r := newTestResolver(t, store)
	alice := register(t, r, "alice")
	ctx := asUser(context.Background(), alice.User)
	before := store.writes.Load()

	_, err := r.AddThought(ctx, thoughtInput{})
	require.ErrorIs(t, err, ErrValidation)
	_, err = r.AddThought(ctx, thoughtInput{ThoughtText: strings.Repeat("x", 281)})
	require.ErrorIs(t, err, ErrValidation)
	_, err = r.AddThought(ctx, thoughtInput{ThoughtText: strings.Repeat("é", 280)})
	require.NoError(t, err)

	assert.Equal(t, before+2, store.writes.Load())
}

func TestAddThoughtSecondWriteFails(t *testing.T) {
	boom := errors.New("connection reset")
	store := &countingStore{Store: NewMemoryStore()}
	r := newTestResolver(t, store)
	alice := register(t, r, "alice")
	ctx := asUser(context.Background(), alice.User)

	store.failPush = boom
	_, err := r.AddThought(ctx, thoughtInput{ThoughtText: "orphaned"})
	require.ErrorIs(t, err, boom)

	// the first write is not rolled back
	all, err := r.Thoughts(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, all, 1)
	me, err := r.Me(ctx)
	require.NoError(t, err)
	assert.Empty(t, me.Thoughts)

	status, _ := classify(err)
	assert.Equal(t, 500, status)
}

func TestAddReaction(t *testing.T) {
	r := newTestResolver(t, NewMemoryStore())
	alice := register(t, r, "alice")
	bob := register(t, r, "bob")

	th, err := r.AddThought(asUser(context.Background(), alice.User), thoughtInput{ThoughtText: "hello"})
	require.NoError(t, err)

	bobCtx := asUser(context.Background(), bob.User)
	updated, err := r.AddReaction(bobCtx, reactionInput{ThoughtID: th.ID, ReactionBody: "hi!"})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ReactionCount)
	assert.Equal(t, "bob", updated.Reactions[0].Username)

	_, err = r.AddReaction(bobCtx, reactionInput{ThoughtID: missingID, ReactionBody: "hi!"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = r.AddReaction(bobCtx, reactionInput{ThoughtID: th.ID})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAddFriend(t *testing.T) {
	r := newTestResolver(t, NewMemoryStore())
	alice := register(t, r, "alice")
	bob := register(t, r, "bob")
	ctx := asUser(context.Background(), alice.User)

	once, err := r.AddFriend(ctx, friendInput{FriendID: bob.User.ID})
	require.NoError(t, err)
	twice, err := r.AddFriend(ctx, friendInput{FriendID: bob.User.ID})
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, twice.FriendCount)
	assert.Equal(t, []FriendView{{ID: bob.User.ID, Username: "bob"}}, twice.Friends)

	_, err = r.AddFriend(ctx, friendInput{FriendID: missingID})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.AddFriend(ctx, friendInput{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestQueriesNotFound(t *testing.T) {
	r := newTestResolver(t, NewMemoryStore())
	_, err := r.User(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.Thought(context.Background(), missingID)
	require.ErrorIs(t, err, ErrNotFound)
}

// Alice and bob sign up; alice posts, bob reacts and befriends alice.
func TestEndToEnd(t *testing.T) {
	r := newTestResolver(t, NewMemoryStore())
	ctx := context.Background()

	aliceAuth, err := r.AddUser(ctx, registerInput{Username: "alice", Email: "a@x.io", Password: "secret1"})
	require.NoError(t, err)
	aliceID, err := r.Tokens.Verify(aliceAuth.Token)
	require.NoError(t, err)
	aliceCtx := withIdentity(ctx, aliceID)

	th, err := r.AddThought(aliceCtx, thoughtInput{ThoughtText: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "alice", th.Username)

	me, err := r.Me(aliceCtx)
	require.NoError(t, err)
	require.Len(t, me.Thoughts, 1)
	assert.Equal(t, th.ID, me.Thoughts[0].ID)

	bobAuth, err := r.AddUser(ctx, registerInput{Username: "bob", Email: "b@x.io", Password: "secret2"})
	require.NoError(t, err)
	bobID, err := r.Tokens.Verify(bobAuth.Token)
	require.NoError(t, err)
	bobCtx := withIdentity(ctx, bobID)

	reacted, err := r.AddReaction(bobCtx, reactionInput{ThoughtID: th.ID, ReactionBody: "hi!"})
	require.NoError(t, err)
	require.Len(t, reacted.Reactions, 1)
	assert.Equal(t, "bob", reacted.Reactions[0].Username)

	bobView, err := r.AddFriend(bobCtx, friendInput{FriendID: aliceID.ID})
	require.NoError(t, err)
	require.Len(t, bobView.Friends, 1)
	assert.Equal(t, "alice", bobView.Friends[0].Username)

	thoughts, err := r.Thoughts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, thoughts, 1)
	assert.Equal(t, 1, thoughts[0].ReactionCount)

	_, err = r.Login(ctx, loginInput{Email: "a@x.io", Password: "secret1"})
	require.NoError(t, err)
}
