package identity

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient   Role = "patient"
	RoleTherapist Role = "therapist"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleTherapist
}

// Actor is the authenticated caller as asserted by the upstream identity
// provider. The core trusts this pair and only checks it against the
// appointment's recorded parties.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

var ErrUnauthenticated = errors.New("missing or malformed actor identity")

// Provider resolves the calling actor from an incoming request.
type Provider interface {
	Authenticate(r *http.Request) (Actor, error)
}

// HeaderProvider trusts X-Actor-Id / X-Actor-Role headers set by the
// authenticating gateway in front of this service.
type HeaderProvider struct{}

func (HeaderProvider) Authenticate(r *http.Request) (Actor, error) {
	id, err := uuid.Parse(r.Header.Get("X-Actor-Id"))
	if err != nil {
		return Actor{}, ErrUnauthenticated
	}

	role := Role(r.Header.Get("X-Actor-Role"))
	if !role.Valid() {
		return Actor{}, ErrUnauthenticated
	}

	return Actor{ID: id, Role: role}, nil
}

type contextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}
