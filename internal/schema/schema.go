// Package schema provides the field schema registry for intake flows.
//
// Each document type owns an ordered list of required fields and the trigger
// phrases that open its flow. The registry is populated at init time and is
// read-only afterwards; field order defines prompt sequencing and is never
// reordered while sessions are in flight.
package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/digicsc/sevaflow/internal/models"
)

type entry struct {
	schema   models.DocumentSchema
	triggers []string
}

var (
	mu       sync.RWMutex
	registry = make(map[models.DocumentType]entry)
	order    []models.DocumentType
)

// Register associates a document schema and its trigger phrases with the
// schema's type. Registration order is significant: it is the tie-break
// order for keyword matching.
func Register(s models.DocumentSchema, triggers []string) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[s.Type]; !exists {
		order = append(order, s.Type)
	}
	lowered := make([]string, len(triggers))
	for i, t := range triggers {
		lowered[i] = strings.ToLower(t)
	}
	registry[s.Type] = entry{schema: s, triggers: lowered}
}

// Get retrieves the schema for a document type.
func Get(dt models.DocumentType) (models.DocumentSchema, error) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := registry[dt]
	if !ok {
		return models.DocumentSchema{}, fmt.Errorf("%w: %s", models.ErrUnknownDocumentType, dt)
	}
	return e.schema, nil
}

// Types returns all registered document types in declaration order.
func Types() []models.DocumentType {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]models.DocumentType, len(order))
	copy(out, order)
	return out
}

// Triggers returns the lowercase trigger phrases for a document type.
func Triggers(dt models.DocumentType) []string {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := registry[dt]
	if !ok {
		return nil
	}
	out := make([]string, len(e.triggers))
	copy(out, e.triggers)
	return out
}

// Register default document schemas. Field sets mirror the government portal
// forms each flow ultimately submits to.
func init() {
	personal := []models.FieldSpec{
		{Name: "name", Prompt: "Please provide your full name:"},
		{Name: "father_name", Prompt: "Please provide your father's name:"},
		{Name: "dob", Prompt: "Please provide your date of birth (DD-MM-YYYY):"},
		{Name: "address", Prompt: "Please provide your street address:"},
		{Name: "city", Prompt: "Please provide your city:"},
		{Name: "state", Prompt: "Please provide your state:", Default: "Uttarakhand"},
		{Name: "pin_code", Prompt: "Please provide your PIN code:"},
	}

	Register(models.DocumentSchema{
		Type:   models.DocumentTypePANCard,
		Title:  "PAN Card Application",
		Fields: personal,
	}, []string{"pan card", "pancard", "apply pan", "make pan card", "create pan card", "generate pan card"})

	Register(models.DocumentSchema{
		Type:   models.DocumentTypeLearnerLicense,
		Title:  "Learner Driving License",
		Fields: personal,
	}, []string{"learner license", "learner licence", "driving license", "driving licence", "apply license", "learning license"})

	Register(models.DocumentSchema{
		Type:   models.DocumentTypeVoterID,
		Title:  "Voter ID Registration",
		Fields: personal,
	}, []string{"voter id", "voter card", "voter registration"})

	Register(models.DocumentSchema{
		Type:  models.DocumentTypeUTURegistration,
		Title: "UTU Provisional Registration",
		Fields: []models.FieldSpec{
			{Name: "name", Prompt: "Please provide your full name:"},
			{Name: "father_name", Prompt: "Please provide your father's name:"},
			{Name: "dob", Prompt: "Please provide your date of birth (DD-MM-YYYY):"},
			{Name: "mobile_no", Prompt: "Please provide your mobile number:"},
			{Name: "email", Prompt: "Please provide your email address:"},
			{Name: "course", Prompt: "Which course are you registering for?", Default: "B.TECH."},
		},
	}, []string{"utu registration", "utu", "university registration", "provisional registration"})

	Register(models.DocumentSchema{
		Type:  models.DocumentTypePMKisan,
		Title: "PM-Kisan Farmer Registration",
		Fields: []models.FieldSpec{
			{Name: "adhaar_no", Prompt: "Please provide your Aadhaar number:"},
			{Name: "mobile_no", Prompt: "Please provide your mobile number:"},
			{Name: "state", Prompt: "Please provide your state:", Default: "UTTARAKHAND"},
		},
	}, []string{"pm kisan", "pm-kisan", "pmkisan", "kisan registration", "farmer registration"})

	Register(models.DocumentSchema{
		Type:  models.DocumentTypeRTI,
		Title: "RTI Filing",
		Fields: []models.FieldSpec{
			{Name: "public_authority", Prompt: "Which public authority is this RTI addressed to?"},
			{Name: "name", Prompt: "Please provide your full name:"},
			{Name: "gender", Prompt: "Please provide your gender (M/F/Other):"},
			{Name: "email", Prompt: "Please provide your email address:"},
			{Name: "mobile_no", Prompt: "Please provide your mobile number:"},
			{Name: "address", Prompt: "Please provide your street address:"},
			{Name: "city", Prompt: "Please provide your city:"},
			{Name: "state", Prompt: "Please provide your state:", Default: "Uttarakhand"},
			{Name: "pin_code", Prompt: "Please provide your PIN code:"},
			{Name: "rti_text", Prompt: "What information are you requesting? Describe your RTI query:"},
		},
	}, []string{"rti", "right to information", "file rti", "rti application"})
}
