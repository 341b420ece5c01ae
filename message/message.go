// Package message defines the ZMesh wire types and their JSON encoding.
//
// Three message shapes cross the wire: TellMessage (one-way), QuestionMessage
// (request half of an ask/answer exchange) and AnswerMessage (reply half).
// Field names match the wire contract exactly so implementations on either
// side of a link agree on the JSON shape without further negotiation.
package message

// Type identifies which of the three wire shapes a frame carries.
type Type string

const (
	TypeTell     Type = "Tell"
	TypeQuestion Type = "Question"
	TypeAnswer   Type = "Answer"
)

// ParseType validates a frame's type_string against the three known kinds.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeTell, TypeQuestion, TypeAnswer:
		return Type(s), nil
	default:
		return "", ErrMalformedMessage
	}
}

// TellMessage is a one-way notification addressed to a message box.
type TellMessage struct {
	ContentType    string  `json:"ContentType"`
	Content        *string `json:"Content"`
	MessageBoxName string  `json:"MessageBoxName"`
}

// QuestionMessage is the request half of an ask/answer exchange.
type QuestionMessage struct {
	ContentType       string  `json:"ContentType"`
	Content           *string `json:"Content"`
	MessageBoxName    string  `json:"MessageBoxName"`
	CorrelationId     string  `json:"CorrelationId"`
	AnswerContentType *string `json:"AnswerContentType"`
}

// AnswerMessage is the reply half of an ask/answer exchange.
type AnswerMessage struct {
	ContentType    string  `json:"ContentType"`
	Content        *string `json:"Content"`
	MessageBoxName string  `json:"MessageBoxName"`
	CorrelationId  string  `json:"CorrelationId"`
}

// Answer is the value handed back to an Ask caller or returned by an answer
// handler: an AnswerMessage stripped of routing envelope fields.
type Answer struct {
	ContentType string
	Content     *string
}

// StrPtr is a convenience constructor for the optional Content/AnswerContentType fields.
func StrPtr(s string) *string { return &s }
