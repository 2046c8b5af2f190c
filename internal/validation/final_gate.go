package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/yeoul-labs/alimguard-backend/internal/domain/template"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/openai"
	"github.com/yeoul-labs/alimguard-backend/internal/retrieval"
)

// Verdict is the structured output of the final adjudication call.
type Verdict struct {
	Passed     bool        `json:"passed"`
	Summary    string      `json:"summary"`
	Violations []Violation `json:"violations"`
	Autofix    Autofix     `json:"autofix"`
	PolicyRefs []string    `json:"policy_refs"`
}

type Violation struct {
	RuleID    string `json:"rule_id"`
	Severity  string `json:"severity"`
	Evidence  string `json:"evidence"`
	PolicyRef string `json:"policy_ref"`
	Span      string `json:"span"`
}

type Autofix struct {
	Enabled   bool   `json:"enabled"`
	PatchBody string `json:"patch_body"`
	Notes     string `json:"notes"`
}

// Passes recomputes the pass rule from the violation list; the model's
// own passed flag is advisory only.
func (v Verdict) Passes() bool {
	critical, major := 0, 0
	for _, viol := range v.Violations {
		switch strings.ToUpper(viol.Severity) {
		case "CRITICAL":
			critical++
		case "MAJOR":
			major++
		}
	}
	return critical == 0 && major <= 1
}

// runFinalGate asks the model for a holistic compliance verdict over the
// template, the constraint-stage findings and the matched policies. A
// failed or unparseable call degrades to a warning; the heuristic
// results above it stand on their own.
func (v *SemanticValidator) runFinalGate(ctx context.Context, t *template.Template, constraintResult *template.ValidationResult, policies []retrieval.Candidate, result *template.ValidationResult) {
	raw, err := v.llm.Complete(ctx, promptFinalGate(t, constraintResult, policies), "")
	if err != nil {
		v.log.Warn("final adjudication call failed, gate skipped", "error", err.Error())
		result.AddWarning("최종 정책 판정 호출에 실패하여 판정을 건너뛰었습니다")
		return
	}

	var verdict Verdict
	if err := openai.DecodeJSON(raw, &verdict); err != nil {
		v.log.Warn("final adjudication output malformed, gate skipped", "error", err.Error())
		result.AddWarning("최종 정책 판정 결과를 해석할 수 없어 판정을 건너뛰었습니다")
		return
	}

	for _, viol := range verdict.Violations {
		msg := fmt.Sprintf("[%s] %s", strings.ToUpper(viol.Severity), viol.Evidence)
		if viol.PolicyRef != "" {
			msg += fmt.Sprintf(" (근거: %s)", viol.PolicyRef)
		}
		switch strings.ToUpper(viol.Severity) {
		case "CRITICAL", "MAJOR":
			result.AddError(msg)
		default:
			result.AddWarning(msg)
		}
	}

	if verdict.Autofix.Enabled && verdict.Autofix.PatchBody != "" {
		result.AddWarning(fmt.Sprintf("자동 수정 제안이 있습니다: %s", verdict.Autofix.PatchBody))
	}

	result.Details["final_gate_passed"] = verdict.Passes()
	if verdict.Summary != "" {
		result.Details["final_gate_summary"] = verdict.Summary
	}
	if len(verdict.PolicyRefs) > 0 {
		result.Details["final_gate_policy_refs"] = verdict.PolicyRefs
	}
}

func promptFinalGate(t *template.Template, constraintResult *template.ValidationResult, policies []retrieval.Candidate) []openai.Message {
	system := `당신은 알림톡 템플릿 심사 전문가입니다.
템플릿, 사전 검증 결과, 관련 정책 발췌를 종합하여 최종 심사 판정을 내리세요.

판정 기준:
- CRITICAL: 명백한 정책 위반으로 반려 사유가 되는 항목
- MAJOR: 수정이 필요한 중대한 문제
- MINOR: 권고 수준의 경미한 문제

반드시 아래 JSON 형식으로만 답하세요.
{
  "passed": true|false,
  "summary": "판정 요약 한 문장",
  "violations": [{"rule_id": "...", "severity": "CRITICAL|MAJOR|MINOR", "evidence": "문제 설명", "policy_ref": "...", "span": "문제가 된 본문 구간"}],
  "autofix": {"enabled": true|false, "patch_body": "수정안 본문", "notes": "수정 설명"},
  "policy_refs": ["..."]
}`

	var sb strings.Builder
	sb.WriteString("## 심사 대상 템플릿\n")
	fmt.Fprintf(&sb, "채널: %s\n분류: %s\n", t.Channel, t.Category)
	if t.Title != "" {
		fmt.Fprintf(&sb, "제목: %s\n", t.Title)
	}
	fmt.Fprintf(&sb, "본문:\n%s\n", t.Body)
	if len(t.Buttons) > 0 {
		sb.WriteString("버튼:\n")
		for _, b := range t.Buttons {
			fmt.Fprintf(&sb, "- %s (%s)\n", b.Name, b.Type)
		}
	}

	if constraintResult != nil {
		sb.WriteString("\n## 사전 검증 결과 (구조 검사)\n")
		fmt.Fprintf(&sb, "통과 여부: %v\n", constraintResult.IsValid)
		for _, e := range constraintResult.Errors {
			fmt.Fprintf(&sb, "- 오류: %s\n", e)
		}
		for _, w := range constraintResult.Warnings {
			fmt.Fprintf(&sb, "- 경고: %s\n", w)
		}
	}

	if len(policies) > 0 {
		sb.WriteString("\n## 관련 정책 발췌\n")
		count := len(policies)
		if count > maxPolicyExcerpts {
			count = maxPolicyExcerpts
		}
		for i := 0; i < count; i++ {
			fmt.Fprintf(&sb, "[%s] %s\n", policies[i].ID, policies[i].Text)
		}
	}

	return []openai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: sb.String()},
	}
}
