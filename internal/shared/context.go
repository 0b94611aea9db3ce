package shared

import (
	"context"
	"errors"
)

// ErrLocationForbidden indicates the actor is not entitled to the location.
var ErrLocationForbidden = errors.New("actor has no access to this location")

// ValidationError marks malformed input so transport layers can answer 400
// instead of 500.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid wraps a message as a ValidationError.
func Invalid(msg string) error { return &ValidationError{Msg: msg} }

// Actor is the pre-validated caller identity supplied by the upstream
// authentication layer. The core performs no authentication of its own; it
// trusts this context and only checks location access where relevant.
type Actor struct {
	UserID int64
	Role   string
	// LocationAccess lists location ids the actor may post against. Empty
	// means unrestricted (admin and service callers).
	LocationAccess []int64
}

// CanAccessLocation reports whether the actor may operate on the location.
func (a Actor) CanAccessLocation(locationID int64) bool {
	if len(a.LocationAccess) == 0 {
		return true
	}
	for _, id := range a.LocationAccess {
		if id == locationID {
			return true
		}
	}
	return false
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor is
// returned for unauthenticated internal callers (jobs, seeds).
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
