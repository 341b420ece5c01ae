package node

import (
	"errors"
	"fmt"
)

// ErrUnknownBox is returned by At for a name absent from the node's system map.
var ErrUnknownBox = errors.New("node: unknown box")

// ErrTransport wraps a non-transient ZeroMQ bind/listen failure.
var ErrTransport = errors.New("node: transport error")

func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}
