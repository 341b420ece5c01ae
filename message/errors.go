package message

import "errors"

// ErrMalformedMessage is returned when a frame cannot be decoded into one of
// the three wire shapes: a required field is missing, the type_string is
// unrecognized, or the payload isn't valid JSON.
var ErrMalformedMessage = errors.New("message: malformed frame")
