package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/digicsc/sevaflow/internal/models"
	"github.com/digicsc/sevaflow/internal/session"
)

func newTestController(store session.Store, model *stubModel, submitter Submitter) *Controller {
	return NewController(store, NewExtractor(model), NewFormatter(), submitter, time.Hour)
}

func TestStartFlowUnknownType(t *testing.T) {
	controller := newTestController(session.NewMemoryStore(), verbatimExtractorModel(), &stubSubmitter{})

	_, err := controller.StartFlow(context.Background(), "user-1", models.DocumentType("passport"), "english")
	if !errors.Is(err, models.ErrUnknownDocumentType) {
		t.Errorf("expected ErrUnknownDocumentType, got %v", err)
	}
}

func TestFieldTurnEmptyExtractionReprompts(t *testing.T) {
	store := session.NewMemoryStore()
	controller := newTestController(store, verbatimExtractorModel(), &stubSubmitter{})
	ctx := context.Background()

	if _, err := controller.StartFlow(ctx, "user-1", models.DocumentTypePANCard, "english"); err != nil {
		t.Fatalf("StartFlow failed: %v", err)
	}
	s, _ := store.Load(ctx, "user-1")

	reply, err := controller.HandleActiveTurn(ctx, s, "   ")
	if err != nil {
		t.Fatalf("HandleActiveTurn failed: %v", err)
	}
	if !strings.Contains(reply, "full name") {
		t.Errorf("expected the same prompt repeated, got %q", reply)
	}

	s, _ = store.Load(ctx, "user-1")
	if s.FieldIndex != 0 {
		t.Errorf("expected field index unchanged, got %d", s.FieldIndex)
	}
}

func TestFieldTurnSkipUsesDefault(t *testing.T) {
	store := session.NewMemoryStore()
	controller := newTestController(store, verbatimExtractorModel(), &stubSubmitter{})
	ctx := context.Background()

	// UTU's course field carries a default.
	seed := &models.CollectionSession{
		SessionKey:   "user-1",
		DocumentType: models.DocumentTypeUTURegistration,
		FieldIndex:   5,
		Fields: map[string]string{
			"name": "Asha Rawat", "father_name": "Mohan Rawat", "dob": "05/07/2001",
			"mobile_no": "9876501234", "email": "asha@example.com",
		},
		Language: "english",
	}
	if err := store.Save(ctx, seed, time.Hour); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	reply, err := controller.HandleActiveTurn(ctx, seed, "skip")
	if err != nil {
		t.Fatalf("HandleActiveTurn failed: %v", err)
	}
	if !strings.Contains(reply, "B.TECH.") {
		t.Errorf("expected default course in summary, got %q", reply)
	}

	s, _ := store.Load(ctx, "user-1")
	if s.Fields["course"] != "B.TECH." {
		t.Errorf("expected default applied, got %q", s.Fields["course"])
	}
	if !s.AtConfirmation() {
		t.Errorf("expected confirmation state, got index %d", s.FieldIndex)
	}
}

func TestConfirmationCorrectionsOverwriteFields(t *testing.T) {
	store := session.NewMemoryStore()
	model := &stubModel{replyFn: func(systemPrompt, _ string) (string, error) {
		if strings.Contains(systemPrompt, "JSON object") {
			return `{"city": "Haldwani"}`, nil
		}
		return "NONE", nil
	}}
	controller := newTestController(store, model, &stubSubmitter{})
	ctx := context.Background()

	seed := &models.CollectionSession{
		SessionKey:   "user-1",
		DocumentType: models.DocumentTypePANCard,
		FieldIndex:   models.FieldIndexConfirmation,
		Fields: map[string]string{
			"name": "Ramesh Kumar", "father_name": "Suresh Kumar", "dob": "01/01/1990",
			"address": "12 Mall Road", "city": "Dehradun", "state": "Uttarakhand", "pin_code": "248001",
		},
		Language: "english",
	}
	if err := store.Save(ctx, seed, time.Hour); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	reply, err := controller.HandleActiveTurn(ctx, seed, "the city should be Haldwani")
	if err != nil {
		t.Fatalf("HandleActiveTurn failed: %v", err)
	}
	if !strings.Contains(reply, "Haldwani") {
		t.Errorf("expected corrected value in re-rendered summary, got %q", reply)
	}

	s, _ := store.Load(ctx, "user-1")
	if s.Fields["city"] != "Haldwani" {
		t.Errorf("expected correction persisted, got %q", s.Fields["city"])
	}
	if !s.AtConfirmation() {
		t.Error("expected session still at confirmation")
	}
}

func TestAffirmationMatching(t *testing.T) {
	yes := []string{"yes", "YES", "ok", "okay, do it", "please proceed", "go ahead!", "confirm."}
	no := []string{"yesterday", "no thanks", "cancel", "smoke", "nope"}

	for _, msg := range yes {
		if !isAffirmation(msg) {
			t.Errorf("expected %q to affirm", msg)
		}
	}
	for _, msg := range no {
		if isAffirmation(msg) {
			t.Errorf("expected %q not to affirm", msg)
		}
	}
}

func TestDispatchFailureSurfacesError(t *testing.T) {
	store := session.NewMemoryStore()
	submitter := &stubSubmitter{failWith: errors.New("queue full")}
	controller := newTestController(store, verbatimExtractorModel(), submitter)
	ctx := context.Background()

	seed := &models.CollectionSession{
		SessionKey:   "user-1",
		DocumentType: models.DocumentTypePMKisan,
		FieldIndex:   models.FieldIndexConfirmation,
		Fields:       map[string]string{"adhaar_no": "123412341234", "mobile_no": "9876543210", "state": "UTTARAKHAND"},
		Language:     "english",
	}
	if err := store.Save(ctx, seed, time.Hour); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, err := controller.HandleActiveTurn(ctx, seed, "yes"); err == nil {
		t.Fatal("expected an error when dispatch fails")
	}
	if s, _ := store.Load(ctx, "user-1"); s == nil {
		t.Error("expected session kept when dispatch fails")
	}
}
