package message

import (
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// Wire framing tag. Every encoded payload carries one leading byte so the
// decoding side can tell a raw JSON body from a zstd-compressed one without
// the ContentType or any other field contract changing. This is a codec
// concern only: TellMessage/QuestionMessage/AnswerMessage never see it.
const (
	frameRaw      byte = 0x00
	frameZstd     byte = 0x01
	minCompressed      = 1 // +flag byte
)

var (
	encOnce sync.Once
	enc     *zstd.Encoder
	decOnce sync.Once
	dec     *zstd.Decoder
)

func encoder() *zstd.Encoder {
	encOnce.Do(func() {
		enc, _ = zstd.NewWriter(nil)
	})
	return enc
}

func decoder() *zstd.Decoder {
	decOnce.Do(func() {
		dec, _ = zstd.NewReader(nil)
	})
	return dec
}

// The compressionThreshold argument of EncodeTell/EncodeQuestion/EncodeAnswer
// is the minimum JSON body length (bytes) that gets zstd-compressed; a
// non-positive threshold (the zero value) disables compression entirely.
// Boxes configure this via config.BoxConfig.CompressionThreshold.

// EncodeTell serializes a TellMessage into a framed wire payload.
func EncodeTell(m TellMessage, compressionThreshold int) ([]byte, error) {
	return encode(m, compressionThreshold)
}

// EncodeQuestion serializes a QuestionMessage into a framed wire payload.
func EncodeQuestion(m QuestionMessage, compressionThreshold int) ([]byte, error) {
	return encode(m, compressionThreshold)
}

// EncodeAnswer serializes an AnswerMessage into a framed wire payload.
func EncodeAnswer(m AnswerMessage, compressionThreshold int) ([]byte, error) {
	return encode(m, compressionThreshold)
}

func encode(v interface{}, compressionThreshold int) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("message: encode: %w", err)
	}

	if compressionThreshold > 0 && len(body) >= compressionThreshold {
		compressed := encoder().EncodeAll(body, make([]byte, 0, len(body)))
		framed := make([]byte, 0, len(compressed)+1)
		framed = append(framed, frameZstd)
		framed = append(framed, compressed...)
		return framed, nil
	}

	framed := make([]byte, 0, len(body)+1)
	framed = append(framed, frameRaw)
	framed = append(framed, body...)
	return framed, nil
}

func unframe(payload []byte) ([]byte, error) {
	if len(payload) < minCompressed {
		return nil, ErrMalformedMessage
	}

	tag, body := payload[0], payload[1:]
	switch tag {
	case frameRaw:
		return body, nil
	case frameZstd:
		out, err := decoder().DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrMalformedMessage, err)
		}
		return out, nil
	default:
		return nil, ErrMalformedMessage
	}
}

// DecodeTell parses a framed wire payload into a TellMessage.
func DecodeTell(payload []byte) (TellMessage, error) {
	var m TellMessage
	body, err := unframe(payload)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.ContentType == "" || m.MessageBoxName == "" {
		return m, ErrMalformedMessage
	}
	return m, nil
}

// DecodeQuestion parses a framed wire payload into a QuestionMessage.
func DecodeQuestion(payload []byte) (QuestionMessage, error) {
	var m QuestionMessage
	body, err := unframe(payload)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.ContentType == "" || m.MessageBoxName == "" || m.CorrelationId == "" {
		return m, ErrMalformedMessage
	}
	return m, nil
}

// DecodeAnswer parses a framed wire payload into an AnswerMessage.
func DecodeAnswer(payload []byte) (AnswerMessage, error) {
	var m AnswerMessage
	body, err := unframe(payload)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.CorrelationId == "" {
		return m, ErrMalformedMessage
	}
	return m, nil
}

// Decode parses a framed wire payload according to its type_string.
func Decode(t Type, payload []byte) (interface{}, error) {
	switch t {
	case TypeTell:
		return DecodeTell(payload)
	case TypeQuestion:
		return DecodeQuestion(payload)
	case TypeAnswer:
		return DecodeAnswer(payload)
	default:
		return nil, ErrMalformedMessage
	}
}
