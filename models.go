package main

import "time"

// Identity is the claim set carried inside a session token.
type Identity struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// User represents a registered user
type User struct {
	ID         string
	Username   string
	Email      string
	Password   string
	ThoughtIDs []string
	FriendIDs  []string
	CreatedAt  time.Time
}

func (u *User) identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Thought is a short post owned by the user named in Username.
type Thought struct {
	ID          string     `json:"_id"`
	ThoughtText string     `json:"thoughtText"`
	Username    string     `json:"username"`
	CreatedAt   time.Time  `json:"createdAt"`
	Reactions   []Reaction `json:"reactions"`
}

// Reaction is a reply embedded in a Thought.
type Reaction struct {
	ID           string    `json:"_id"`
	ReactionBody string    `json:"reactionBody"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ThoughtView is the serialized form of a Thought.
type ThoughtView struct {
	*Thought
	ReactionCount int `json:"reactionCount"`
}

func newThoughtView(t *Thought) *ThoughtView {
	if t.Reactions == nil {
		t.Reactions = []Reaction{}
	}
	return &ThoughtView{Thought: t, ReactionCount: len(t.Reactions)}
}

// FriendView is the trimmed user embedded in another user's friend list.
type FriendView struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// UserView is the serialized form of a User with thoughts and friends populated.
type UserView struct {
	ID          string         `json:"_id"`
	Username    string         `json:"username"`
	Email       string         `json:"email"`
	FriendCount int            `json:"friendCount"`
	Thoughts    []*ThoughtView `json:"thoughts"`
	Friends     []FriendView   `json:"friends"`
}

// Auth is returned by login and registration.
type Auth struct {
	Token string    `json:"token"`
	User  *UserView `json:"user"`
}
