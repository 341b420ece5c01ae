// Package idgen generates the 128-bit random identifiers ZMesh uses for
// DEALER routing identities and question correlation ids.
package idgen

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewCorrelationID returns a 128-bit random value, hex-encoded, suitable as
// a QuestionMessage/AnswerMessage CorrelationId.
func NewCorrelationID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// NewRoutingIdentity returns a 128-bit random value for a DEALER socket's
// routing identity, set before the socket dials its peer.
func NewRoutingIdentity() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
