package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
)

type ctxKey string

const identityKey ctxKey = "identity"

// maxTokenPeek bounds how much of a JSON body is buffered to look for a token.
const maxTokenPeek = 1 << 20

// withIdentity returns a context carrying a verified identity.
func withIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// identityFrom returns the verified identity in ctx, if any.
func identityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// RequireAuth returns the caller's identity or ErrUnauthenticated.
func RequireAuth(ctx context.Context) (*Identity, error) {
	id, ok := identityFrom(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return id, nil
}

// IsSelf reports whether the caller is the user named username.
func IsSelf(ctx context.Context, username string) bool {
	id, ok := identityFrom(ctx)
	return ok && username != "" && id.Username == username
}

// authorized runs fn with the caller's identity, or fails with
// ErrUnauthenticated without calling fn.
func authorized[T any](ctx context.Context, fn func(Identity) (T, error)) (T, error) {
	id, err := RequireAuth(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(*id)
}

// tokenSources holds the raw token carriers of one request.
type tokenSources struct {
	Body   string
	Query  string
	Header string
}

// candidate picks body, then query, then header. Only the header value has
// its Bearer scheme stripped.
func (s tokenSources) candidate() string {
	if s.Body != "" {
		return s.Body
	}
	if s.Query != "" {
		return s.Query
	}
	if s.Header == "" {
		return ""
	}
	h := strings.TrimSpace(s.Header)
	h = strings.TrimPrefix(h, "Bearer")
	return strings.TrimSpace(h)
}

// sourcesFromRequest collects token carriers from r. At most maxTokenPeek
// bytes of a JSON body are read; they are put back in front of the unread
// rest so later handlers see the whole body. A token is only found when the
// whole body fits in the peek.
func sourcesFromRequest(r *http.Request) tokenSources {
	src := tokenSources{
		Query:  r.URL.Query().Get("token"),
		Header: r.Header.Get("Authorization"),
	}
	if r.Body == nil || r.Body == http.NoBody {
		return src
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/json" {
		return src
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxTokenPeek))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), r.Body), r.Body}
	if err != nil {
		return src
	}
	var body struct {
		Token string `json:"token"`
	}
	if json.Unmarshal(raw, &body) == nil {
		src.Body = body.Token
	}
	return src
}

// Session attaches the caller's identity to the request context when a valid
// token is presented. Missing, malformed and expired tokens leave the request
// anonymous; the request itself is never rejected here.
func (a *App) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sourcesFromRequest(r).candidate()
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := a.Tokens.Verify(token)
		if err != nil {
			a.Log.WithError(err).WithField("path", r.URL.Path).Debug("ignoring invalid session token")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}
