package flow

import (
	"strings"
	"testing"

	"github.com/digicsc/sevaflow/internal/models"
	"github.com/digicsc/sevaflow/internal/schema"
)

func TestResolveLanguage(t *testing.T) {
	cases := map[string]string{
		"english":  LanguageEnglish,
		"Hindi":    LanguageHindi,
		"kumaoni":  LanguageHindi,
		"garhwali": LanguageHindi,
		"gharwali": LanguageHindi,
		"":         LanguageEnglish,
		"french":   LanguageEnglish,
	}
	for in, want := range cases {
		if got := ResolveLanguage(in); got != want {
			t.Errorf("ResolveLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFlowStartedIncludesFirstPrompt(t *testing.T) {
	formatter := NewFormatter()
	docSchema, err := schema.Get(models.DocumentTypeRTI)
	if err != nil {
		t.Fatalf("schema lookup failed: %v", err)
	}

	got := formatter.FlowStarted(docSchema, "english")
	if !strings.Contains(got, docSchema.Title) {
		t.Errorf("missing title in %q", got)
	}
	if !strings.Contains(got, docSchema.Fields[0].Prompt) {
		t.Errorf("missing first prompt in %q", got)
	}
}

func TestConfirmationSummaryListsFieldsInSchemaOrder(t *testing.T) {
	formatter := NewFormatter()
	docSchema, _ := schema.Get(models.DocumentTypeUTURegistration)
	s := &models.CollectionSession{
		Fields: map[string]string{
			"name":        "Asha Rawat",
			"father_name": "Mohan Rawat",
			"dob":         "05/07/2001",
			"mobile_no":   "9876501234",
			"email":       "asha@example.com",
			"course":      "B.TECH.",
		},
	}

	got := formatter.ConfirmationSummary(docSchema, s, "english")
	last := -1
	for _, field := range docSchema.Fields {
		label := strings.ReplaceAll(field.Name, "_", " ")
		idx := strings.Index(got, label+": ")
		if idx < 0 {
			t.Fatalf("summary missing field %s: %q", field.Name, got)
		}
		if idx < last {
			t.Errorf("field %s out of schema order", field.Name)
		}
		last = idx
	}
	if !strings.Contains(got, "'yes'") {
		t.Errorf("summary missing confirmation ask: %q", got)
	}
}

func TestHindiPhrasesForRegionalLanguages(t *testing.T) {
	formatter := NewFormatter()
	docSchema, _ := schema.Get(models.DocumentTypePANCard)

	for _, language := range []string{"hindi", "kumaoni", "garhwali"} {
		got := formatter.FlowCancelled(docSchema, language)
		if got != formatter.FlowCancelled(docSchema, "hindi") {
			t.Errorf("%s: expected the hindi phrase, got %q", language, got)
		}
		if got == formatter.FlowCancelled(docSchema, "english") {
			t.Errorf("%s: expected a non-english phrase", language)
		}
	}
}

func TestApologyNeverEmpty(t *testing.T) {
	formatter := NewFormatter()
	for _, language := range []string{"english", "hindi", "klingon", ""} {
		if strings.TrimSpace(formatter.Apology(language)) == "" {
			t.Errorf("empty apology for language %q", language)
		}
	}
}
