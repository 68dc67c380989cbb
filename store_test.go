package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// missingID is a well-formed id that no store ever assigns.
const missingID = "000000000000000000000000"

// runStoreContract checks the behavior every Store adapter must share. Names
// are suffixed per run so the contract can share a database with other data.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	newUser := func(t *testing.T, name string) *User {
		t.Helper()
		u, err := s.CreateUser(ctx, &User{
			Username: name + suffix,
			Email:    name + suffix + "@x.io",
			Password: "hash",
		})
		require.NoError(t, err)
		return u
	}

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, s.Ping(ctx))
	})

	t.Run("create and find user", func(t *testing.T) {
		u := newUser(t, "carol")
		require.NotEmpty(t, u.ID)
		assert.False(t, u.CreatedAt.IsZero())
		assert.Empty(t, u.ThoughtIDs)
		assert.Empty(t, u.FriendIDs)

		byID, err := s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, u.Username, byID.Username)
		assert.Equal(t, "hash", byID.Password)

		byEmail, err := s.GetUserByEmail(ctx, u.Email)
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, u.ID, byEmail.ID)

		byName, err := s.GetUserByUsername(ctx, u.Username)
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, u.ID, byName.ID)

		all, err := s.ListUsers(ctx)
		require.NoError(t, err)
		var ids []string
		for _, x := range all {
			ids = append(ids, x.ID)
		}
		assert.Contains(t, ids, u.ID)
	})

	t.Run("missing user is nil", func(t *testing.T) {
		u, err := s.GetUserByID(ctx, missingID)
		require.NoError(t, err)
		assert.Nil(t, u)
		u, err = s.GetUserByEmail(ctx, "nobody"+suffix+"@x.io")
		require.NoError(t, err)
		assert.Nil(t, u)
		u, err = s.GetUserByUsername(ctx, "nobody"+suffix)
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("duplicates rejected", func(t *testing.T) {
		u := newUser(t, "dave")
		_, err := s.CreateUser(ctx, &User{Username: u.Username, Email: "other" + suffix + "@x.io", Password: "h"})
		require.ErrorIs(t, err, ErrDuplicate)
		_, err = s.CreateUser(ctx, &User{Username: "other" + suffix, Email: u.Email, Password: "h"})
		require.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("thought lifecycle", func(t *testing.T) {
		u := newUser(t, "erin")
		first, err := s.CreateThought(ctx, &Thought{ThoughtText: "first", Username: u.Username})
		require.NoError(t, err)
		require.NotEmpty(t, first.ID)
		assert.Empty(t, first.Reactions)
		require.NoError(t, s.PushUserThought(ctx, u.ID, first.ID))

		// keep createdAt distinct at millisecond precision
		time.Sleep(5 * time.Millisecond)
		second, err := s.CreateThought(ctx, &Thought{ThoughtText: "second", Username: u.Username})
		require.NoError(t, err)
		require.NoError(t, s.PushUserThought(ctx, u.ID, second.ID))

		got, err := s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{first.ID, second.ID}, got.ThoughtIDs)

		listed, err := s.ListThoughts(ctx, u.Username)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, "second", listed[0].ThoughtText)
		assert.Equal(t, "first", listed[1].ThoughtText)

		everyone, err := s.ListThoughts(ctx, "")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(everyone), 2)

		byIDs, err := s.GetThoughtsByIDs(ctx, []string{second.ID, missingID, first.ID})
		require.NoError(t, err)
		require.Len(t, byIDs, 2)
		assert.Equal(t, second.ID, byIDs[0].ID)
		assert.Equal(t, first.ID, byIDs[1].ID)

		none, err := s.GetThought(ctx, missingID)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("push onto missing user", func(t *testing.T) {
		th, err := s.CreateThought(ctx, &Thought{ThoughtText: "orphan", Username: "ghost" + suffix})
		require.NoError(t, err)
		require.ErrorIs(t, s.PushUserThought(ctx, missingID, th.ID), ErrNotFound)
	})

	t.Run("reactions", func(t *testing.T) {
		th, err := s.CreateThought(ctx, &Thought{ThoughtText: "react to me", Username: "frank" + suffix})
		require.NoError(t, err)

		updated, err := s.AddReaction(ctx, th.ID, &Reaction{ReactionBody: "nice", Username: "gina" + suffix})
		require.NoError(t, err)
		require.NotNil(t, updated)
		require.Len(t, updated.Reactions, 1)
		assert.NotEmpty(t, updated.Reactions[0].ID)
		assert.Equal(t, "nice", updated.Reactions[0].ReactionBody)
		assert.Equal(t, "gina"+suffix, updated.Reactions[0].Username)

		time.Sleep(5 * time.Millisecond)
		updated, err = s.AddReaction(ctx, th.ID, &Reaction{ReactionBody: "agreed", Username: "hank" + suffix})
		require.NoError(t, err)
		require.Len(t, updated.Reactions, 2)
		assert.Equal(t, "agreed", updated.Reactions[1].ReactionBody)

		missing, err := s.AddReaction(ctx, missingID, &Reaction{ReactionBody: "x", Username: "y"})
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("friends are a set", func(t *testing.T) {
		u := newUser(t, "ivan")
		f := newUser(t, "judy")

		got, err := s.AddFriend(ctx, u.ID, f.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, []string{f.ID}, got.FriendIDs)

		got, err = s.AddFriend(ctx, u.ID, f.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{f.ID}, got.FriendIDs)

		friends, err := s.GetUsersByIDs(ctx, got.FriendIDs)
		require.NoError(t, err)
		require.Len(t, friends, 1)
		assert.Equal(t, f.Username, friends[0].Username)

		nobody, err := s.AddFriend(ctx, missingID, f.ID)
		require.NoError(t, err)
		assert.Nil(t, nobody)
	})
}

func TestMemStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	runStoreContract(t, s)
}

func TestMemStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u, err := s.CreateUser(ctx, &User{Username: "kim", Email: "k@x.io"})
	require.NoError(t, err)
	u.FriendIDs = append(u.FriendIDs, "tampered")

	again, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, again.FriendIDs)
}

func TestDollarPlaceholders(t *testing.T) {
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", dollarPlaceholders("SELECT 1 WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT 1", dollarPlaceholders("SELECT 1"))
}
