package message

import (
	"strings"
	"testing"
)

func TestEncodeDecodeTellRoundTrip(t *testing.T) {
	content := "hi"
	m := TellMessage{ContentType: "greeting", Content: &content, MessageBoxName: "B"}

	payload, err := EncodeTell(m, 0)
	if err != nil {
		t.Fatalf("EncodeTell failed: %v", err)
	}

	got, err := DecodeTell(payload)
	if err != nil {
		t.Fatalf("DecodeTell failed: %v", err)
	}

	if got.ContentType != m.ContentType || got.MessageBoxName != m.MessageBoxName {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
	if got.Content == nil || *got.Content != content {
		t.Fatalf("content mismatch: got %v, want %q", got.Content, content)
	}
}

func TestEncodeDecodeQuestionRoundTrip(t *testing.T) {
	content := "42"
	answerType := "int"
	m := QuestionMessage{
		ContentType:       "sum",
		Content:           &content,
		MessageBoxName:    "B",
		CorrelationId:     "abcd1234",
		AnswerContentType: &answerType,
	}

	payload, err := EncodeQuestion(m, 0)
	if err != nil {
		t.Fatalf("EncodeQuestion failed: %v", err)
	}

	got, err := DecodeQuestion(payload)
	if err != nil {
		t.Fatalf("DecodeQuestion failed: %v", err)
	}
	if got.CorrelationId != m.CorrelationId {
		t.Fatalf("correlation id mismatch: got %q, want %q", got.CorrelationId, m.CorrelationId)
	}
	if got.AnswerContentType == nil || *got.AnswerContentType != answerType {
		t.Fatalf("answer content type mismatch: got %v", got.AnswerContentType)
	}
}

func TestContentAbsentDistinctFromEmpty(t *testing.T) {
	empty := ""
	withEmpty := TellMessage{ContentType: "x", Content: &empty, MessageBoxName: "B"}
	withAbsent := TellMessage{ContentType: "x", Content: nil, MessageBoxName: "B"}

	p1, _ := EncodeTell(withEmpty, 0)
	p2, _ := EncodeTell(withAbsent, 0)

	d1, err := DecodeTell(p1)
	if err != nil {
		t.Fatalf("decode withEmpty: %v", err)
	}
	d2, err := DecodeTell(p2)
	if err != nil {
		t.Fatalf("decode withAbsent: %v", err)
	}

	if d1.Content == nil || *d1.Content != "" {
		t.Fatalf("expected present-empty content, got %v", d1.Content)
	}
	if d2.Content != nil {
		t.Fatalf("expected absent content, got %v", d2.Content)
	}
}

func TestDecodeMalformedMissingField(t *testing.T) {
	m := TellMessage{ContentType: "", MessageBoxName: "B"}
	payload, _ := EncodeTell(m, 0)

	if _, err := DecodeTell(payload); err == nil {
		t.Fatal("expected MalformedMessage error for missing ContentType")
	}
}

func TestDecodeMalformedTruncatedPayload(t *testing.T) {
	if _, err := DecodeTell(nil); err == nil {
		t.Fatal("expected error decoding empty payload")
	}
	if _, err := DecodeTell([]byte{frameRaw}); err == nil {
		t.Fatal("expected error decoding empty JSON body")
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	content := strings.Repeat("a", 4096)
	m := TellMessage{ContentType: "bulk", Content: &content, MessageBoxName: "B"}

	payload, err := EncodeTell(m, 16)
	if err != nil {
		t.Fatalf("EncodeTell with compression failed: %v", err)
	}
	if payload[0] != frameZstd {
		t.Fatalf("expected zstd frame tag, got %v", payload[0])
	}

	got, err := DecodeTell(payload)
	if err != nil {
		t.Fatalf("DecodeTell of compressed payload failed: %v", err)
	}
	if got.Content == nil || *got.Content != content {
		t.Fatal("compressed content round trip mismatch")
	}
}

func TestParseType(t *testing.T) {
	cases := map[string]bool{"Tell": true, "Question": true, "Answer": true, "Bogus": false}
	for s, want := range cases {
		_, err := ParseType(s)
		if (err == nil) != want {
			t.Errorf("ParseType(%q): got err=%v, want valid=%v", s, err, want)
		}
	}
}
