package flow

import (
	"context"
	"testing"

	"github.com/digicsc/sevaflow/internal/models"
	"github.com/digicsc/sevaflow/internal/schema"
)

func TestExtractFieldUsesModelValue(t *testing.T) {
	model := &stubModel{replyFn: func(_, _ string) (string, error) {
		return "  Ramesh Kumar  ", nil
	}}
	extractor := NewExtractor(model)

	got := extractor.ExtractField(context.Background(), models.FieldSpec{Name: "name"}, "my name is ramesh kumar")
	if got != "Ramesh Kumar" {
		t.Errorf("expected trimmed model value, got %q", got)
	}
}

func TestExtractFieldFallsBackToRawMessage(t *testing.T) {
	extractor := NewExtractor(failingModel())

	got := extractor.ExtractField(context.Background(), models.FieldSpec{Name: "city"}, "  Dehradun ")
	if got != "Dehradun" {
		t.Errorf("expected trimmed raw message on model failure, got %q", got)
	}

	noneExtractor := NewExtractor(verbatimExtractorModel())
	got = noneExtractor.ExtractField(context.Background(), models.FieldSpec{Name: "city"}, "Dehradun")
	if got != "Dehradun" {
		t.Errorf("expected raw message on NONE reply, got %q", got)
	}
}

func TestExtractFieldEmptyMessageYieldsEmpty(t *testing.T) {
	extractor := NewExtractor(echoModel())

	if got := extractor.ExtractField(context.Background(), models.FieldSpec{Name: "name"}, "   "); got != "" {
		t.Errorf("expected empty value for whitespace message, got %q", got)
	}
}

func TestExtractCorrectionsParsesJSON(t *testing.T) {
	model := &stubModel{replyFn: func(_, _ string) (string, error) {
		return `{"city": "Haldwani", "pin_code": "263139", "unknown_field": "x", "state": ""}`, nil
	}}
	extractor := NewExtractor(model)

	docSchema, err := schema.Get(models.DocumentTypePANCard)
	if err != nil {
		t.Fatalf("schema lookup failed: %v", err)
	}
	got := extractor.ExtractCorrections(context.Background(), docSchema, "actually the city is Haldwani, pin 263139")
	if len(got) != 2 {
		t.Fatalf("expected 2 corrections, got %v", got)
	}
	if got["city"] != "Haldwani" || got["pin_code"] != "263139" {
		t.Errorf("unexpected corrections: %v", got)
	}
}

func TestExtractCorrectionsToleratesMarkdownFences(t *testing.T) {
	model := &stubModel{replyFn: func(_, _ string) (string, error) {
		return "```json\n{\"dob\": \"02/02/1992\"}\n```", nil
	}}
	extractor := NewExtractor(model)

	docSchema, _ := schema.Get(models.DocumentTypePANCard)
	got := extractor.ExtractCorrections(context.Background(), docSchema, "dob should be 02/02/1992")
	if got["dob"] != "02/02/1992" {
		t.Errorf("expected fenced JSON parsed, got %v", got)
	}
}

func TestExtractCorrectionsUnparseableReplyYieldsNil(t *testing.T) {
	model := &stubModel{replyFn: func(_, _ string) (string, error) {
		return "sorry, I cannot do that", nil
	}}
	extractor := NewExtractor(model)

	docSchema, _ := schema.Get(models.DocumentTypePANCard)
	if got := extractor.ExtractCorrections(context.Background(), docSchema, "no"); got != nil {
		t.Errorf("expected nil for unparseable reply, got %v", got)
	}

	if got := NewExtractor(failingModel()).ExtractCorrections(context.Background(), docSchema, "no"); got != nil {
		t.Errorf("expected nil on model failure, got %v", got)
	}
}
