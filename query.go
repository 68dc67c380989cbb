package main

import (
	"context"
	"encoding/json"
	"net/http"
)

// queryRequest is the body of POST /api/query. Token is read by the session
// middleware, not here.
type queryRequest struct {
	Operation string          `json:"operation"`
	Variables json.RawMessage `json:"variables"`
	Token     string          `json:"token,omitempty"`
}

type queryError struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type queryResponse struct {
	Data   map[string]any `json:"data,omitempty"`
	Errors []queryError   `json:"errors,omitempty"`
}

type operation func(ctx context.Context, r *Resolver, vars json.RawMessage) (any, error)

// bind decodes vars into T and passes it to fn. Absent variables decode as
// the zero value.
func bind[T any](fn func(*Resolver, context.Context, T) (any, error)) operation {
	return func(ctx context.Context, r *Resolver, vars json.RawMessage) (any, error) {
		var in T
		if len(vars) > 0 && string(vars) != "null" {
			if err := json.Unmarshal(vars, &in); err != nil {
				return nil, newValidationError("variables", err.Error())
			}
		}
		return fn(r, ctx, in)
	}
}

type usernameVars struct {
	Username string `json:"username"`
}

type idVars struct {
	ID string `json:"_id"`
}

var operations = map[string]operation{
	"me": bind(func(r *Resolver, ctx context.Context, _ struct{}) (any, error) { return r.Me(ctx) }),
	"users": bind(func(r *Resolver, ctx context.Context, _ struct{}) (any, error) {
		return r.Users(ctx)
	}),
	"user": bind(func(r *Resolver, ctx context.Context, v usernameVars) (any, error) {
		return r.User(ctx, v.Username)
	}),
	"thoughts": bind(func(r *Resolver, ctx context.Context, v usernameVars) (any, error) {
		return r.Thoughts(ctx, v.Username)
	}),
	"thought": bind(func(r *Resolver, ctx context.Context, v idVars) (any, error) {
		return r.Thought(ctx, v.ID)
	}),
	"login": bind(func(r *Resolver, ctx context.Context, in loginInput) (any, error) {
		return r.Login(ctx, in)
	}),
	"addUser": bind(func(r *Resolver, ctx context.Context, in registerInput) (any, error) {
		return r.AddUser(ctx, in)
	}),
	"addThought": bind(func(r *Resolver, ctx context.Context, in thoughtInput) (any, error) {
		return r.AddThought(ctx, in)
	}),
	"addReaction": bind(func(r *Resolver, ctx context.Context, in reactionInput) (any, error) {
		return r.AddReaction(ctx, in)
	}),
	"addFriend": bind(func(r *Resolver, ctx context.Context, in friendInput) (any, error) {
		return r.AddFriend(ctx, in)
	}),
}

// HandleQuery runs one named operation. Resolver failures are reported as
// error entries with status 200; only malformed requests get a 4xx.
// POST /api/query
func (a *App) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	op, ok := operations[req.Operation]
	if !ok {
		writeError(w, http.StatusBadRequest, "UNKNOWN_OPERATION", "Unknown operation: "+req.Operation)
		return
	}
	result, err := op(r.Context(), a.Resolver, req.Variables)
	if err != nil {
		status, body := classify(err)
		if status == http.StatusInternalServerError {
			a.Log.WithError(err).WithField("operation", req.Operation).Error("operation failed")
		}
		writeJSON(w, http.StatusOK, queryResponse{Errors: []queryError{{
			Message: body.Message,
			Code:    body.Code,
			Fields:  body.Fields,
		}}})
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Data: map[string]any{req.Operation: result}})
}
