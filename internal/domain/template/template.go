// Package template holds the notification-template domain model shared by
// the validators, the generator and the HTTP layer.
package template

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Channel is the delivery channel of a template.
type Channel string

const (
	// ChannelAlimtalk is the informational channel for transactional messages.
	ChannelAlimtalk Channel = "alimtalk"
	// ChannelFriendtalk is the broadcast channel that permits promotional content.
	ChannelFriendtalk Channel = "friendtalk"
)

func (c Channel) Valid() bool {
	return c == ChannelAlimtalk || c == ChannelFriendtalk
}

// Category is the content classification of a template.
type Category string

const (
	CategoryTransaction Category = "transaction"
	CategoryMarketing   Category = "marketing"
	CategoryMixed       Category = "mixed"
	CategoryReview      Category = "needs_manual_review"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryTransaction, CategoryMarketing, CategoryMixed, CategoryReview:
		return true
	default:
		return false
	}
}

// ButtonType distinguishes the link kinds a button can carry.
type ButtonType string

const (
	// ButtonWebLink opens a web URL.
	ButtonWebLink ButtonType = "WL"
	// ButtonAppLink opens an app scheme.
	ButtonAppLink ButtonType = "AL"
	// ButtonDeliveryTracking opens the carrier's tracking page.
	ButtonDeliveryTracking ButtonType = "DS"
)

func (b ButtonType) Valid() bool {
	return b == ButtonWebLink || b == ButtonAppLink || b == ButtonDeliveryTracking
}

// Button is a single action attached to a template. URL fields apply to
// WL buttons, scheme fields to AL buttons; DS buttons carry neither.
type Button struct {
	Name          string     `json:"name"`
	Type          ButtonType `json:"type"`
	LinkMobile    string     `json:"link_mobile,omitempty"`
	LinkPC        string     `json:"link_pc,omitempty"`
	SchemeIOS     string     `json:"scheme_ios,omitempty"`
	SchemeAndroid string     `json:"scheme_android,omitempty"`
}

const (
	MaxTitleLength    = 50
	MaxBodyLength     = 1000
	MaxButtons        = 5
	MaxButtonName     = 14
	MaxRenderedBody   = 1000
	MaxGeneratedTitle = 10
)

// Template is the unit of validation and the output of generation.
// Treated as immutable once it enters a pipeline.
type Template struct {
	ID        string            `json:"id,omitempty"`
	Channel   Channel           `json:"channel"`
	Title     string            `json:"title,omitempty"`
	Body      string            `json:"body"`
	Variables map[string]string `json:"variables,omitempty"`
	Buttons   []Button          `json:"buttons,omitempty"`
	Category  Category          `json:"category"`
}

// Validate is the schema gate applied when a template is decoded, before
// any rule-driven validation runs. Messages are user-facing.
func (t *Template) Validate() error {
	if t == nil {
		return fmt.Errorf("템플릿이 비어 있습니다")
	}
	bodyLen := utf8.RuneCountInString(t.Body)
	if bodyLen == 0 {
		return fmt.Errorf("본문은 필수입니다")
	}
	if bodyLen > MaxBodyLength {
		return fmt.Errorf("본문은 %d자를 초과할 수 없습니다 (현재: %d자)", MaxBodyLength, bodyLen)
	}
	if titleLen := utf8.RuneCountInString(t.Title); titleLen > MaxTitleLength {
		return fmt.Errorf("제목은 %d자를 초과할 수 없습니다 (현재: %d자)", MaxTitleLength, titleLen)
	}
	if !t.Channel.Valid() {
		return fmt.Errorf("지원하지 않는 채널입니다: %s", t.Channel)
	}
	if !t.Category.Valid() {
		return fmt.Errorf("지원하지 않는 분류입니다: %s", t.Category)
	}
	if len(t.Buttons) > MaxButtons {
		return fmt.Errorf("버튼은 최대 %d개까지 허용됩니다 (현재: %d개)", MaxButtons, len(t.Buttons))
	}
	for i, b := range t.Buttons {
		nameLen := utf8.RuneCountInString(b.Name)
		if nameLen == 0 {
			return fmt.Errorf("버튼 %d의 이름은 필수입니다", i+1)
		}
		if nameLen > MaxButtonName {
			return fmt.Errorf("버튼 이름은 %d자를 초과할 수 없습니다 (현재: %d자)", MaxButtonName, nameLen)
		}
		if !b.Type.Valid() {
			return fmt.Errorf("지원하지 않는 버튼 유형입니다: %s", b.Type)
		}
	}
	return nil
}

var placeholderPattern = regexp.MustCompile(`#\{([^}]+)\}`)

// Placeholders returns the distinct `#{name}` tokens in text, in first
// appearance order.
func Placeholders(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// ValidationStage identifies which gate produced a ValidationResult.
type ValidationStage string

const (
	StageConstraint ValidationStage = "constraint"
	StageSemantic   ValidationStage = "semantic"
	StageFinal      ValidationStage = "final"
)

// ValidationResult is the outcome of one validation stage. The final
// stage's result unions every prior stage's errors and warnings.
type ValidationResult struct {
	Stage    ValidationStage `json:"stage"`
	IsValid  bool            `json:"is_valid"`
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Details  map[string]any  `json:"details,omitempty"`
}

func NewValidationResult(stage ValidationStage) *ValidationResult {
	return &ValidationResult{
		Stage:    stage,
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
		Details:  map[string]any{},
	}
}

func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.IsValid = false
}

func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Merge folds another stage's findings into this result.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if len(r.Errors) > 0 {
		r.IsValid = false
	}
	for k, v := range other.Details {
		r.Details[k] = v
	}
}

// GenerationMethod records which strategy produced a generated template.
type GenerationMethod string

const (
	MethodReferenceBased GenerationMethod = "reference_based"
	MethodPolicyGuided   GenerationMethod = "policy_guided"
	MethodNewCreation    GenerationMethod = "new_creation"
	MethodFailed         GenerationMethod = "failed"
)

// GenerationRequest is the caller's input to the generation pipeline.
type GenerationRequest struct {
	UserText              string   `json:"user_text"`
	CategoryMain          string   `json:"category_main"`
	CategorySubCandidates []string `json:"category_sub_candidates"`
	Model                 string   `json:"model,omitempty"`
}

func (r *GenerationRequest) Validate() error {
	if r == nil || r.UserText == "" {
		return fmt.Errorf("요청 내용은 필수입니다")
	}
	if r.CategoryMain == "" {
		return fmt.Errorf("대분류는 필수입니다")
	}
	if len(r.CategorySubCandidates) == 0 {
		return fmt.Errorf("소분류 후보 목록은 필수입니다")
	}
	return nil
}

// GenerationResult is always returned, even on total failure, with
// Method set to MethodFailed and ErrorMessage explaining why.
type GenerationResult struct {
	TemplateText      string           `json:"template_text"`
	TemplateTitle     string           `json:"template_title"`
	VariablesDetected []string         `json:"variables_detected"`
	Method            GenerationMethod `json:"generation_method"`
	ReferenceIDs      []string         `json:"reference_ids,omitempty"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
	ErrorMessage      string           `json:"error_message,omitempty"`
}
