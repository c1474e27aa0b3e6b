package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"coin-dashboard/internal/domain"
)

// Request headers read by HeaderResolver.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// ErrBadIdentity is returned for a malformed user header.
var ErrBadIdentity = errors.New("invalid user identity")

// UserResolver identifies the caller. It returns nil and no error for
// anonymous requests.
type UserResolver interface {
	CurrentUser(r *http.Request) (*domain.User, error)
}

// AnonymousResolver treats every request as anonymous.
type AnonymousResolver struct{}

// CurrentUser implements UserResolver.
func (AnonymousResolver) CurrentUser(*http.Request) (*domain.User, error) { return nil, nil }

// HoldingsSource loads a user's currency amounts.
type HoldingsSource interface {
	Holdings(ctx context.Context, userID int64) (map[domain.Symbol]decimal.Decimal, error)
}

// HeaderResolver trusts the X-User-ID header set by an upstream
// authenticating proxy and loads holdings for that user.
type HeaderResolver struct {
	Holdings HoldingsSource
}

// CurrentUser implements UserResolver.
func (h HeaderResolver) CurrentUser(r *http.Request) (*domain.User, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrBadIdentity
	}

	name := strings.TrimSpace(r.Header.Get(HeaderUserName))
	if name == "" {
		name = fmt.Sprintf("User %d", id)
	}

	user := &domain.User{ID: id, Name: name, Holdings: map[domain.Symbol]decimal.Decimal{}}
	if h.Holdings != nil {
		holdings, err := h.Holdings.Holdings(r.Context(), id)
		if err != nil {
			return nil, fmt.Errorf("load holdings: %w", err)
		}
		user.Holdings = holdings
	}
	return user, nil
}

type userKey struct{}

// userFrom returns the user stored by authenticated.
func userFrom(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userKey{}).(*domain.User)
	return u
}

// authenticated rejects anonymous callers and stores the user in the request
// context.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.users.CurrentUser(r)
		switch {
		case errors.Is(err, ErrBadIdentity):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			s.writeFailure(w, r, err)
			return
		case user == nil:
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	}
}

// optionalUser resolves the caller without rejecting anonymous requests.
// Resolution failures are logged and treated as anonymous.
func (s *Server) optionalUser(r *http.Request) *domain.User {
	user, err := s.users.CurrentUser(r)
	if err != nil {
		s.log.WithError(err).Debug("resolving user failed, continuing anonymously")
		return nil
	}
	return user
}
