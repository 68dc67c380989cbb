package main

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// sqlStore implements Store over database/sql. Dialects differ only in
// placeholder syntax and in how they report unique violations.
type sqlStore struct {
	db       *sql.DB
	bind     func(string) string
	isUnique func(error) bool
}

// questionMarks leaves "?" placeholders as they are.
func questionMarks(q string) string { return q }

// dollarPlaceholders rewrites "?" placeholders to "$1", "$2", ...
func dollarPlaceholders(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unixNano(t time.Time) int64 { return t.UnixNano() }
func fromUnixNano(n int64) time.Time { return time.Unix(0, n).UTC() }

func (s *sqlStore) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.bind(q), args...)
}

func (s *sqlStore) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.bind(q), args...)
}

func (s *sqlStore) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.bind(q), args...)
}

func (s *sqlStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	c := copyUser(u)
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	_, err := s.exec(ctx, `INSERT INTO users(id,username,email,password,created_at) VALUES(?,?,?,?,?)`,
		c.ID, c.Username, c.Email, c.Password, unixNano(c.CreatedAt))
	if err != nil {
		if s.isUnique(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

func (s *sqlStore) getUser(ctx context.Context, field, value string) (*User, error) {
	row := s.queryRow(ctx, `SELECT id,username,email,password,created_at FROM users WHERE `+field+` = ?`, value)
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.CreatedAt = fromUnixNano(created)
	var err error
	if u.ThoughtIDs, err = s.column(ctx, `SELECT thought_id FROM user_thoughts WHERE user_id = ? ORDER BY position`, u.ID); err != nil {
		return nil, err
	}
	if u.FriendIDs, err = s.column(ctx, `SELECT friend_id FROM friends WHERE user_id = ? ORDER BY added_at`, u.ID); err != nil {
		return nil, err
	}
	return &u, nil
}

// column runs a single-column query.
func (s *sqlStore) column(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *sqlStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *sqlStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *sqlStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *sqlStore) GetUsersByIDs(ctx context.Context, ids []string) ([]*User, error) {
	out := make([]*User, 0, len(ids))
	for _, id := range ids {
		u, err := s.getUser(ctx, "id", id)
		if err != nil {
			return nil, err
		}
		if u != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *sqlStore) ListUsers(ctx context.Context) ([]*User, error) {
	ids, err := s.column(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return s.GetUsersByIDs(ctx, ids)
}

func (s *sqlStore) userExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

func (s *sqlStore) PushUserThought(ctx context.Context, userID, thoughtID string) error {
	ok, err := s.userExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	_, err = s.exec(ctx, `INSERT INTO user_thoughts(user_id,thought_id,position) VALUES(?,?,?)`,
		userID, thoughtID, time.Now().UnixNano())
	return err
}

func (s *sqlStore) AddFriend(ctx context.Context, userID, friendID string) (*User, error) {
	ok, err := s.userExists(ctx, userID)
	if err != nil || !ok {
		return nil, err
	}
	_, err = s.exec(ctx, `INSERT INTO friends(user_id,friend_id,added_at) VALUES(?,?,?) ON CONFLICT DO NOTHING`,
		userID, friendID, time.Now().UnixNano())
	if err != nil {
		return nil, err
	}
	return s.getUser(ctx, "id", userID)
}

func (s *sqlStore) CreateThought(ctx context.Context, t *Thought) (*Thought, error) {
	c := copyThought(t)
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	_, err := s.exec(ctx, `INSERT INTO thoughts(id,thought_text,username,created_at) VALUES(?,?,?,?)`,
		c.ID, c.ThoughtText, c.Username, unixNano(c.CreatedAt))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *sqlStore) GetThought(ctx context.Context, id string) (*Thought, error) {
	row := s.queryRow(ctx, `SELECT id,thought_text,username,created_at FROM thoughts WHERE id = ?`, id)
	var t Thought
	var created int64
	if err := row.Scan(&t.ID, &t.ThoughtText, &t.Username, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.CreatedAt = fromUnixNano(created)
	reactions, err := s.reactions(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Reactions = reactions
	return &t, nil
}

func (s *sqlStore) reactions(ctx context.Context, thoughtID string) ([]Reaction, error) {
	rows, err := s.query(ctx, `SELECT id,reaction_body,username,created_at FROM reactions WHERE thought_id = ? ORDER BY created_at`, thoughtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Reaction{}
	for rows.Next() {
		var r Reaction
		var created int64
		if err := rows.Scan(&r.ID, &r.ReactionBody, &r.Username, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = fromUnixNano(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqlStore) GetThoughtsByIDs(ctx context.Context, ids []string) ([]*Thought, error) {
	out := make([]*Thought, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetThought(ctx, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *sqlStore) ListThoughts(ctx context.Context, username string) ([]*Thought, error) {
	ids, err := s.column(ctx, `SELECT id FROM thoughts WHERE CAST(? AS TEXT) = '' OR username = ? ORDER BY created_at DESC`, username, username)
	if err != nil {
		return nil, err
	}
	return s.GetThoughtsByIDs(ctx, ids)
}

func (s *sqlStore) AddReaction(ctx context.Context, thoughtID string, r *Reaction) (*Thought, error) {
	t, err := s.GetThought(ctx, thoughtID)
	if err != nil || t == nil {
		return nil, err
	}
	_, err = s.exec(ctx, `INSERT INTO reactions(id,thought_id,reaction_body,username,created_at) VALUES(?,?,?,?,?)`,
		uuid.NewString(), thoughtID, r.ReactionBody, r.Username, time.Now().UnixNano())
	if err != nil {
		return nil, err
	}
	return s.GetThought(ctx, thoughtID)
}

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqlStore) Close() error                   { return s.db.Close() }
