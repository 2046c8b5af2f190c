package validation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yeoul-labs/alimguard-backend/internal/domain/template"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/openai"
	"github.com/yeoul-labs/alimguard-backend/internal/retrieval"
)

const (
	// policyAlignmentThreshold gates which retrieved guideline documents
	// count as relevant to the template under validation.
	policyAlignmentThreshold = 0.7
	// contentConfidenceThreshold below which classification is flagged
	// for manual review.
	contentConfidenceThreshold = 0.7
	maxPolicyExcerpts          = 5
)

// SemanticValidator runs the content-level checks: heuristic
// classification, RAG policy alignment, rendering, channel requirements
// and the final model adjudication.
type SemanticValidator struct {
	log       *logger.Logger
	retriever *retrieval.Engine
	llm       openai.Client
}

func NewSemanticValidator(log *logger.Logger, retriever *retrieval.Engine, llm openai.Client) (*SemanticValidator, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retrieval engine required")
	}
	if llm == nil {
		return nil, fmt.Errorf("llm client required")
	}
	return &SemanticValidator{
		log:       log.With("service", "SemanticValidator"),
		retriever: retriever,
		llm:       llm,
	}, nil
}

// Validate runs all five checks and folds them into one semantic-stage
// result. constraintResult feeds the final adjudication prompt and may be
// nil.
func (v *SemanticValidator) Validate(ctx context.Context, t *template.Template, constraintResult *template.ValidationResult) *template.ValidationResult {
	result := template.NewValidationResult(template.StageSemantic)

	v.checkContentClassification(t, result)
	policies := v.checkPolicyAlignment(ctx, t, result)
	v.checkRendering(t, result)
	v.checkChannelRequirements(t, result)
	v.runFinalGate(ctx, t, constraintResult, policies, result)

	return result
}

// checkContentClassification scores the body against the transaction and
// marketing keyword sets. Deterministic, no model call.
func (v *SemanticValidator) checkContentClassification(t *template.Template, result *template.ValidationResult) {
	full := t.Title + "\n" + t.Body
	txScore := countKeywordHits(full, transactionKeywords)
	mkScore := countKeywordHits(full, marketingKeywords)

	var predicted template.Category
	var topScore int
	switch {
	case txScore > mkScore:
		predicted, topScore = template.CategoryTransaction, txScore
	case mkScore > txScore:
		predicted, topScore = template.CategoryMarketing, mkScore
	default:
		predicted, topScore = template.CategoryMixed, txScore
	}

	confidence := float64(topScore) / float64(txScore+mkScore+1)
	result.Details["predicted_category"] = string(predicted)
	result.Details["classification_confidence"] = confidence

	if confidence < contentConfidenceThreshold {
		result.Details["needs_manual_review"] = true
		result.AddWarning(fmt.Sprintf("내용 분류 신뢰도가 낮습니다 (%.2f). 수동 검토가 필요합니다", confidence))
	}
	if predicted != template.CategoryMixed && t.Category != template.CategoryMixed && predicted != t.Category {
		result.AddWarning(fmt.Sprintf("신고된 분류(%s)와 내용 분석 결과(%s)가 다릅니다", t.Category, predicted))
	}
}

// checkPolicyAlignment retrieves guideline documents similar to the
// template text and applies each one's category predicate. Returns the
// relevant candidates for reuse by the final gate.
func (v *SemanticValidator) checkPolicyAlignment(ctx context.Context, t *template.Template, result *template.ValidationResult) []retrieval.Candidate {
	query := strings.TrimSpace(t.Title + " " + t.Body)
	candidates, err := v.retriever.Search(ctx, query, maxPolicyExcerpts, map[string]any{
		"type": map[string]any{"$in": []any{"policy", "recommendation"}},
	})
	if err != nil {
		v.log.Warn("policy retrieval failed, alignment check skipped", "error", err.Error())
		result.AddWarning("정책 문서를 조회할 수 없어 정책 정합성 검사를 건너뛰었습니다")
		return nil
	}

	relevant := make([]retrieval.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity <= policyAlignmentThreshold {
			continue
		}
		relevant = append(relevant, c)

		rule := ruleFromDocument(candidateDocument(c))
		for _, violation := range policyViolations(rule, t) {
			if isHighPriority(rule.Priority) {
				result.AddError(violation)
			} else {
				result.AddWarning(violation)
			}
		}
	}
	result.Details["policies_matched"] = len(relevant)
	return relevant
}

// checkRendering substitutes variables and re-validates the rendered
// text. Some violations only appear after substitution.
func (v *SemanticValidator) checkRendering(t *template.Template, result *template.ValidationResult) {
	rendered := Render(t)

	for _, name := range rendered.Missing {
		result.AddWarning(fmt.Sprintf("치환자 #{%s}에 대입할 값이 없어 렌더링 검증이 불완전합니다", name))
	}
	if n := utf8.RuneCountInString(rendered.Body); n > template.MaxRenderedBody {
		result.AddError(fmt.Sprintf("치환 후 본문이 %d자를 초과했습니다 (현재: %d자)", template.MaxRenderedBody, n))
	}
	for _, raw := range rendered.ButtonURLs {
		if err := checkURL(raw); err != nil {
			result.AddError(err.Error())
		}
	}
	for _, raw := range urlPattern.FindAllString(rendered.Body, -1) {
		if err := checkURL(raw); err != nil {
			result.AddError(err.Error())
		}
	}
}

// checkChannelRequirements enforces the promotional-content rules:
// disclosure marker is mandatory, an opt-out mention is expected.
func (v *SemanticValidator) checkChannelRequirements(t *template.Template, result *template.ValidationResult) {
	if t.Category != template.CategoryMarketing {
		return
	}
	if !strings.Contains(t.Body, AdDisclosureMarker) {
		result.AddError(fmt.Sprintf("광고성 템플릿의 본문에 %s 표기가 없습니다", AdDisclosureMarker))
	}
	hasOptOut := false
	for _, marker := range optOutMarkers {
		if strings.Contains(t.Body, marker) {
			hasOptOut = true
			break
		}
	}
	if !hasOptOut {
		result.AddWarning("광고성 템플릿에 수신거부 안내(무료수신거부 080 번호)가 없습니다")
	}
}

func isHighPriority(priority string) bool {
	p := strings.ToLower(priority)
	return p == "critical" || p == "high"
}

// policyViolations applies the category-specific predicate of a guideline
// document to the template.
func policyViolations(rule Rule, t *template.Template) []string {
	category := strings.ToLower(rule.Category)
	full := t.Title + "\n" + t.Body

	switch {
	case strings.Contains(category, "length"):
		if n := utf8.RuneCountInString(t.Body); n > template.MaxBodyLength {
			return []string{fmt.Sprintf("본문이 %d자를 초과했습니다 (현재: %d자)", template.MaxBodyLength, n)}
		}
	case strings.Contains(category, "marketing"):
		if t.Category == template.CategoryMarketing && !strings.Contains(t.Body, AdDisclosureMarker) {
			return []string{fmt.Sprintf("광고성 템플릿의 본문에 %s 표기가 없습니다", AdDisclosureMarker)}
		}
	case strings.Contains(category, "privacy"):
		var violations []string
		for _, pattern := range privacyPatterns {
			if match := pattern.FindString(full); match != "" {
				violations = append(violations, fmt.Sprintf("개인정보로 보이는 값이 포함되어 있습니다: %s", match))
			}
		}
		return violations
	case strings.Contains(category, "financial"):
		var violations []string
		for _, phrase := range financialPhrases {
			if strings.Contains(full, phrase) {
				violations = append(violations, fmt.Sprintf("금융 관련 과장 표현이 포함되어 있습니다: %q", phrase))
			}
		}
		return violations
	case strings.Contains(category, "medical"):
		var violations []string
		for _, phrase := range medicalPhrases {
			if strings.Contains(full, phrase) {
				violations = append(violations, fmt.Sprintf("의료 효능 표현이 포함되어 있습니다: %q", phrase))
			}
		}
		return violations
	case strings.Contains(category, "content"):
		if len(rule.ForbiddenWords) > 0 {
			return checkForbiddenWords(rule.ForbiddenWords, t)
		}
	}
	return nil
}
