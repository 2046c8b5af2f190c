package validation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yeoul-labs/alimguard-backend/internal/domain/template"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/chroma"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
)

// Absolute ceilings enforced even when the rule corpus is unreachable.
const (
	hardBodyLimit   = 2000
	hardButtonLimit = 10
)

// ConstraintValidator evaluates a template against every constraint and
// rule document in the corpus. Checking is exhaustive: rules are listed,
// never similarity-searched.
type ConstraintValidator struct {
	log   *logger.Logger
	store chroma.VectorStore
}

func NewConstraintValidator(log *logger.Logger, store chroma.VectorStore) (*ConstraintValidator, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store required")
	}
	return &ConstraintValidator{
		log:   log.With("service", "ConstraintValidator"),
		store: store,
	}, nil
}

func (v *ConstraintValidator) Validate(ctx context.Context, t *template.Template) *template.ValidationResult {
	result := template.NewValidationResult(template.StageConstraint)

	// Hard invariants come first so a dead rule store never waves a
	// grossly oversized template through.
	if bodyLen := utf8.RuneCountInString(t.Body); bodyLen > hardBodyLimit {
		result.AddError(fmt.Sprintf("본문이 절대 한도 %d자를 초과했습니다 (현재: %d자)", hardBodyLimit, bodyLen))
	}
	if len(t.Buttons) > hardButtonLimit {
		result.AddError(fmt.Sprintf("버튼이 절대 한도 %d개를 초과했습니다 (현재: %d개)", hardButtonLimit, len(t.Buttons)))
	}

	docs, err := v.store.ListAll(ctx, map[string]any{
		"type": map[string]any{"$in": []any{"constraint", "rule"}},
	})
	if err != nil {
		v.log.Warn("rule listing failed, constraint stage degraded", "error", err.Error())
		result.AddWarning("규칙 저장소를 조회할 수 없어 기본 검증만 수행했습니다")
		result.Details["rules_checked"] = 0
		return result
	}

	for _, doc := range docs {
		rule := ruleFromDocument(doc)
		for _, violation := range v.checkRule(rule, t) {
			if rule.IsError() {
				result.AddError(violation)
			} else {
				result.AddWarning(violation)
			}
		}
	}
	result.Details["rules_checked"] = len(docs)
	return result
}

// checkRule dispatches on exact metadata fields first, then falls back to
// category-name heuristics when the metadata is sparse.
func (v *ConstraintValidator) checkRule(rule Rule, t *template.Template) []string {
	switch {
	case rule.MaxLength > 0:
		return checkMaxLength(rule, t)
	case len(rule.ForbiddenWords) > 0:
		return checkForbiddenWords(rule.ForbiddenWords, t)
	case rule.MaxButtons > 0:
		return checkMaxButtons(rule.MaxButtons, t)
	case len(rule.RequiredFields) > 0:
		return checkRequiredFields(rule.RequiredFields, t)
	}

	category := strings.ToLower(rule.Category)
	switch {
	case strings.Contains(category, "length"):
		return checkMaxLength(Rule{MaxLength: template.MaxBodyLength, Field: "body"}, t)
	case strings.Contains(category, "forbidden"):
		return checkForbiddenWords(rule.ForbiddenWords, t)
	case strings.Contains(category, "button"):
		return checkMaxButtons(template.MaxButtons, t)
	case strings.Contains(category, "variable"):
		return checkVariables(t)
	case strings.Contains(category, "url"), strings.Contains(category, "domain"):
		return checkURLs(t)
	case strings.Contains(category, "marketing"):
		return checkMarketingDisclosure(t)
	case strings.Contains(category, "privacy"):
		return checkPrivacy(t)
	default:
		return nil
	}
}

func checkMaxLength(rule Rule, t *template.Template) []string {
	field := rule.Field
	if field == "" {
		field = "body"
	}
	var text, label string
	switch field {
	case "title":
		text, label = t.Title, "제목"
	default:
		text, label = t.Body, "본문"
	}
	if n := utf8.RuneCountInString(text); n > rule.MaxLength {
		return []string{fmt.Sprintf("%s이(가) %d자를 초과했습니다 (현재: %d자)", label, rule.MaxLength, n)}
	}
	return nil
}

func checkForbiddenWords(words []string, t *template.Template) []string {
	var violations []string
	full := t.Title + "\n" + t.Body
	for _, word := range words {
		if word != "" && strings.Contains(full, word) {
			violations = append(violations, fmt.Sprintf("금지 표현이 포함되어 있습니다: %q", word))
		}
	}
	return violations
}

func checkMaxButtons(limit int, t *template.Template) []string {
	if len(t.Buttons) > limit {
		return []string{fmt.Sprintf("버튼은 최대 %d개까지 허용됩니다 (현재: %d개)", limit, len(t.Buttons))}
	}
	return nil
}

func checkRequiredFields(fields []string, t *template.Template) []string {
	var violations []string
	for _, f := range fields {
		missing := false
		switch strings.ToLower(f) {
		case "title":
			missing = strings.TrimSpace(t.Title) == ""
		case "body":
			missing = strings.TrimSpace(t.Body) == ""
		case "buttons":
			missing = len(t.Buttons) == 0
		case "variables":
			missing = len(t.Variables) == 0
		}
		if missing {
			violations = append(violations, fmt.Sprintf("필수 항목이 비어 있습니다: %s", f))
		}
	}
	return violations
}

func checkVariables(t *template.Template) []string {
	var violations []string
	for _, name := range template.Placeholders(t.Body) {
		if _, ok := t.Variables[name]; !ok {
			violations = append(violations, fmt.Sprintf("본문에 사용된 치환자 #{%s}의 값이 정의되지 않았습니다", name))
		}
	}
	return violations
}

func checkURLs(t *template.Template) []string {
	var violations []string
	for _, b := range t.Buttons {
		for _, link := range []string{b.LinkMobile, b.LinkPC} {
			if link == "" {
				continue
			}
			if err := checkURL(link); err != nil {
				violations = append(violations, err.Error())
			}
		}
	}
	for _, raw := range urlPattern.FindAllString(t.Body, -1) {
		if err := checkURL(raw); err != nil {
			violations = append(violations, err.Error())
		}
	}
	return violations
}

func checkMarketingDisclosure(t *template.Template) []string {
	if t.Category != template.CategoryMarketing {
		return nil
	}
	if !strings.Contains(t.Body, AdDisclosureMarker) {
		return []string{fmt.Sprintf("광고성 템플릿의 본문에 %s 표기가 없습니다", AdDisclosureMarker)}
	}
	return nil
}

func checkPrivacy(t *template.Template) []string {
	var violations []string
	full := t.Title + "\n" + t.Body
	for _, pattern := range privacyPatterns {
		if match := pattern.FindString(full); match != "" {
			violations = append(violations, fmt.Sprintf("개인정보로 보이는 값이 포함되어 있습니다: %s", match))
		}
	}
	return violations
}
