package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return false
	}
	return true
}

func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if !decodeBody(w, r, &in) {
		return
	}
	auth, err := a.Resolver.AddUser(r.Context(), in)
	if err != nil {
		a.writeResolverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, auth)
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if !decodeBody(w, r, &in) {
		return
	}
	auth, err := a.Resolver.Login(r.Context(), in)
	if err != nil {
		a.writeResolverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auth)
}

// HandleSession reports the identity the session middleware attached.
// GET /api/auth/session
func (a *App) HandleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"active": true, "identity": id})
}

func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	me, err := a.Resolver.Me(r.Context())
	if err != nil {
		a.writeResolverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (a *App) HandleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.Resolver.Users(r.Context())
	if err != nil {
		a.writeResolverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleUser returns a profile by username. Callers asking for their own
// profile are sent to /api/me.
func (a *App) HandleUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	if IsSelf(r.Context(), username) {
		http.Redirect(w, r, "/api/me", http.StatusSeeOther)
		return
	}
	user, err := a.Resolver.User(r.Context(), username)
	if err != nil {
		a.writeResolverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *App) HandleAddFriend(w http.ResponseWriter, r *http.Request) {
	user, err := a.Resolver.AddFriend(r.Context(), friendInput{FriendID: mux.Vars(r)["friendId"]})
	if err != nil {
		a.writeResolverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *App) HandleThoughts(w http.ResponseWriter, r *http.Request) {
	thoughts, err := a.Resolver.Thoughts(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		a.writeResolverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thoughts)
}

func (a *App) HandleThought(w http.ResponseWriter, r *http.Request) {
	thought, err := a.Resolver.Thought(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeResolverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thought)
}

func (a *App) HandleAddThought(w http.ResponseWriter, r *http.Request) {
	var in thoughtInput
	if !decodeBody(w, r, &in) {
		return
	}
	thought, err := a.Resolver.AddThought(r.Context(), in)
	if err != nil {
		a.writeResolverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, thought)
}

func (a *App) HandleAddReaction(w http.ResponseWriter, r *http.Request) {
	var in reactionInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.ThoughtID = mux.Vars(r)["id"]
	thought, err := a.Resolver.AddReaction(r.Context(), in)
	if err != nil {
		a.writeResolverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, thought)
}
