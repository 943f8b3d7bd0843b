// Package models defines the core data structures for SevaFlow.
//
// It includes document schemas, intake session state, intent decisions, and
// submission records, which are shared across modules.
package models

import "errors"

// DocumentType identifies a government-service document flow.
type DocumentType string

const (
	// DocumentTypePANCard is a PAN card application.
	DocumentTypePANCard DocumentType = "pan_card"
	// DocumentTypeLearnerLicense is a learner driving license application.
	DocumentTypeLearnerLicense DocumentType = "learner_license"
	// DocumentTypeVoterID is a voter ID registration.
	DocumentTypeVoterID DocumentType = "voter_id"
	// DocumentTypeUTURegistration is a UTU provisional university registration.
	DocumentTypeUTURegistration DocumentType = "utu_registration"
	// DocumentTypePMKisan is a PM-Kisan farmer registration.
	DocumentTypePMKisan DocumentType = "pm_kisan"
	// DocumentTypeRTI is an RTI (Right to Information) filing.
	DocumentTypeRTI DocumentType = "rti"
)

// FieldSpec describes a single field collected during an intake flow.
type FieldSpec struct {
	// Name is the unique field key within a document schema.
	Name string `json:"name"`
	// Prompt is the question shown to the user when the field is requested.
	Prompt string `json:"prompt"`
	// Default, when non-empty, is used if the user declines to provide a value.
	Default string `json:"default,omitempty"`
}

// DocumentSchema is the ordered field sequence for one document type.
// Field order is significant: it defines prompt sequencing and must remain
// stable for the lifetime of any session collecting against it.
type DocumentSchema struct {
	Type   DocumentType `json:"type"`
	Title  string       `json:"title"`
	Fields []FieldSpec  `json:"fields"`
}

// FieldIndex returns the position of the named field, or -1 if absent.
func (s DocumentSchema) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// IntentKind classifies an inbound message.
type IntentKind string

const (
	// IntentContinue routes the message into the active intake flow.
	IntentContinue IntentKind = "continue"
	// IntentStart opens a new intake flow for a document type.
	IntentStart IntentKind = "start"
	// IntentFreelancer asks for a human freelancer handoff.
	IntentFreelancer IntentKind = "freelancer"
	// IntentAIResponse means the message deserves a free-form AI reply.
	IntentAIResponse IntentKind = "ai_response"
)

// IntentDecision is the transient result of classifying one message.
// It is never persisted.
type IntentDecision struct {
	Kind         IntentKind
	DocumentType DocumentType // set only when Kind == IntentStart
}

// Error variables for better error handling and testability
var (
	ErrUnknownDocumentType = errors.New("unknown document type")
	ErrStoreUnavailable    = errors.New("session store unavailable")
	ErrModelUnavailable    = errors.New("language model unavailable")
	ErrNoActiveSession     = errors.New("no active intake session")
	ErrFlowAlreadyActive   = errors.New("an intake flow is already active")
	ErrEmptySessionKey     = errors.New("session key cannot be empty")
	ErrEmptyMessage        = errors.New("message cannot be empty")
)

// API Response types for consistent JSON responses

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
