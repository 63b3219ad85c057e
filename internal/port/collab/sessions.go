// Package collab defines the port for the collaborative session service in which agents
// and humans discuss an iteration.
package collab

import "context"

// Session kinds.
const (
	KindIteration = "iteration"
)

// Sessions creates collaboration sessions and posts messages into them.
type Sessions interface {
	// CreateSession opens (or reuses) the session identified by key and returns its id.
	CreateSession(ctx context.Context, key, kind string) (string, error)

	// PostMessage appends a message. Hints carry routing information such as
	// the target agents or the step the message is about.
	PostMessage(ctx context.Context, sessionID, text string, hints map[string]string) error
}
