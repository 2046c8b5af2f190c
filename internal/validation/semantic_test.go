package validation

import (
	"context"
	"strings"
	"testing"

	"github.com/yeoul-labs/alimguard-backend/internal/domain/template"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/chroma"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/openai"
	"github.com/yeoul-labs/alimguard-backend/internal/retrieval"
)

type fakeSearchStore struct {
	chroma.VectorStore
	results []chroma.QueryResult
	err     error
}

func (f *fakeSearchStore) Search(ctx context.Context, queryText string, topK int, filter map[string]any) ([]chroma.QueryResult, error) {
	return f.results, f.err
}

type fakeLLM struct {
	respond func(messages []openai.Message) (string, error)
}

func (f *fakeLLM) Complete(ctx context.Context, messages []openai.Message, model string) (string, error) {
	return f.respond(messages)
}

func (f *fakeLLM) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, nil
}

func passingGateLLM() *fakeLLM {
	return &fakeLLM{respond: func([]openai.Message) (string, error) {
		return `{"passed": true, "summary": "문제 없음", "violations": [], "autofix": {"enabled": false}, "policy_refs": []}`, nil
	}}
}

func newSemanticValidator(t *testing.T, store chroma.VectorStore, llm openai.Client) *SemanticValidator {
	t.Helper()
	log := testLogger(t)
	engine, err := retrieval.NewEngine(log, store)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	v, err := NewSemanticValidator(log, engine, llm)
	if err != nil {
		t.Fatalf("new semantic validator: %v", err)
	}
	return v
}

func TestSemanticMarketingWithoutDisclosure(t *testing.T) {
	v := newSemanticValidator(t, &fakeSearchStore{}, passingGateLLM())

	tpl := baseTemplate()
	tpl.Category = template.CategoryMarketing
	tpl.Body = "특가 할인 이벤트에 초대합니다! 쿠폰을 받아가세요."

	result := v.Validate(context.Background(), tpl, nil)
	if result.IsValid {
		t.Fatalf("want invalid")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, AdDisclosureMarker) {
			found = true
		}
	}
	if !found {
		t.Fatalf("error must name the missing disclosure marker: %v", result.Errors)
	}
	optOutWarned := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "수신거부") {
			optOutWarned = true
		}
	}
	if !optOutWarned {
		t.Fatalf("missing opt-out must warn: %v", result.Warnings)
	}
}

func TestSemanticMarketingWithDisclosurePasses(t *testing.T) {
	v := newSemanticValidator(t, &fakeSearchStore{}, passingGateLLM())

	tpl := baseTemplate()
	tpl.Category = template.CategoryMarketing
	tpl.Body = "(광고) 특가 할인 이벤트! 무료수신거부 0808881234"

	result := v.Validate(context.Background(), tpl, nil)
	if !result.IsValid {
		t.Fatalf("want valid got errors=%v", result.Errors)
	}
}

func TestSemanticContentClassificationMismatchWarns(t *testing.T) {
	v := newSemanticValidator(t, &fakeSearchStore{}, passingGateLLM())

	tpl := baseTemplate()
	tpl.Category = template.CategoryTransaction
	tpl.Body = "할인 쿠폰 이벤트 특가 세일 혜택 프로모션 할인 쿠폰 이벤트"

	result := v.Validate(context.Background(), tpl, nil)
	mismatch := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "내용 분석 결과") {
			mismatch = true
		}
	}
	if !mismatch {
		t.Fatalf("category mismatch must warn: %v", result.Warnings)
	}
	if result.Details["predicted_category"] != string(template.CategoryMarketing) {
		t.Fatalf("want predicted=marketing got=%v", result.Details["predicted_category"])
	}
}

func TestSemanticLowConfidenceFlagsManualReview(t *testing.T) {
	v := newSemanticValidator(t, &fakeSearchStore{}, passingGateLLM())

	tpl := baseTemplate()
	tpl.Body = "안녕하세요. 안내 말씀드립니다."

	result := v.Validate(context.Background(), tpl, nil)
	if result.Details["needs_manual_review"] != true {
		t.Fatalf("keyword-free body must flag manual review: %v", result.Details)
	}
}

func TestSemanticPolicyAlignmentAppliesThreshold(t *testing.T) {
	store := &fakeSearchStore{results: []chroma.QueryResult{
		{
			// similarity 0.9, relevant
			Document: chroma.Document{ID: "pol-1", Text: "금융 과장 금지", Metadata: map[string]any{
				"type": "policy", "category": "financial", "priority": "critical",
			}},
			Distance: 0.1,
		},
		{
			// similarity 0.5, below threshold, must be ignored
			Document: chroma.Document{ID: "pol-2", Text: "의료 표현 금지", Metadata: map[string]any{
				"type": "policy", "category": "medical", "priority": "critical",
			}},
			Distance: 0.5,
		},
	}}
	v := newSemanticValidator(t, store, passingGateLLM())

	tpl := baseTemplate()
	tpl.Body = "주문하시면 100% 보장 수익을 드립니다. 치료 효과도 있습니다."

	result := v.Validate(context.Background(), tpl, nil)
	if result.IsValid {
		t.Fatalf("want invalid")
	}
	var financialHit, medicalHit bool
	for _, e := range result.Errors {
		if strings.Contains(e, "100% 보장") {
			financialHit = true
		}
		if strings.Contains(e, "치료") {
			medicalHit = true
		}
	}
	if !financialHit {
		t.Fatalf("relevant policy must fire: %v", result.Errors)
	}
	if medicalHit {
		t.Fatalf("below-threshold policy must not fire: %v", result.Errors)
	}
	if result.Details["policies_matched"] != 1 {
		t.Fatalf("want policies_matched=1 got=%v", result.Details["policies_matched"])
	}
}

func TestSemanticRenderingCatchesPostSubstitutionOverflow(t *testing.T) {
	v := newSemanticValidator(t, &fakeSearchStore{}, passingGateLLM())

	tpl := baseTemplate()
	tpl.Body = "주문 내역: #{내역}"
	tpl.Variables = map[string]string{"내역": strings.Repeat("가", 1100)}

	result := v.Validate(context.Background(), tpl, nil)
	if result.IsValid {
		t.Fatalf("want invalid")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "치환 후") {
			found = true
		}
	}
	if !found {
		t.Fatalf("rendered overflow must error: %v", result.Errors)
	}
}

func TestSemanticRenderingChecksButtonURLs(t *testing.T) {
	v := newSemanticValidator(t, &fakeSearchStore{}, passingGateLLM())

	tpl := baseTemplate()
	tpl.Buttons = []template.Button{
		{Name: "주문 확인", Type: template.ButtonWebLink, LinkMobile: "ftp://example.com/x"},
	}

	result := v.Validate(context.Background(), tpl, nil)
	if result.IsValid {
		t.Fatalf("want invalid for non-http scheme")
	}
}

func TestSemanticFinalGateViolations(t *testing.T) {
	llm := &fakeLLM{respond: func([]openai.Message) (string, error) {
		return `{
			"passed": false,
			"summary": "광고 표기 누락",
			"violations": [
				{"rule_id": "AD-1", "severity": "CRITICAL", "evidence": "광고 표기가 없습니다", "policy_ref": "심사 가이드 3.2", "span": "전체"},
				{"rule_id": "STYLE-1", "severity": "MINOR", "evidence": "문장이 깁니다", "policy_ref": "", "span": ""}
			],
			"autofix": {"enabled": true, "patch_body": "(광고) 수정된 본문", "notes": "광고 표기 추가"},
			"policy_refs": ["심사 가이드 3.2"]
		}`, nil
	}}
	v := newSemanticValidator(t, &fakeSearchStore{}, llm)

	result := v.Validate(context.Background(), baseTemplate(), nil)
	if result.IsValid {
		t.Fatalf("CRITICAL violation must invalidate")
	}
	if result.Details["final_gate_passed"] != false {
		t.Fatalf("want final_gate_passed=false got=%v", result.Details["final_gate_passed"])
	}
	var critical, minor, autofix bool
	for _, e := range result.Errors {
		if strings.Contains(e, "[CRITICAL]") {
			critical = true
		}
	}
	for _, w := range result.Warnings {
		if strings.Contains(w, "[MINOR]") {
			minor = true
		}
		if strings.Contains(w, "자동 수정 제안") {
			autofix = true
		}
	}
	if !critical || !minor || !autofix {
		t.Fatalf("gate findings not mapped: errors=%v warnings=%v", result.Errors, result.Warnings)
	}
}

func TestSemanticFinalGateFailureDegradesToWarning(t *testing.T) {
	llm := &fakeLLM{respond: func([]openai.Message) (string, error) {
		return "", &openai.ServiceError{StatusCode: 503, Body: "down"}
	}}
	v := newSemanticValidator(t, &fakeSearchStore{}, llm)

	result := v.Validate(context.Background(), baseTemplate(), nil)
	if !result.IsValid {
		t.Fatalf("gate outage must not invalidate: %v", result.Errors)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "최종 정책 판정") {
			found = true
		}
	}
	if !found {
		t.Fatalf("gate skip must warn: %v", result.Warnings)
	}
}

func TestVerdictPassRule(t *testing.T) {
	cases := []struct {
		name       string
		severities []string
		want       bool
	}{
		{"clean", nil, true},
		{"one major", []string{"MAJOR"}, true},
		{"two majors", []string{"MAJOR", "MAJOR"}, false},
		{"one critical", []string{"CRITICAL"}, false},
		{"minors only", []string{"MINOR", "MINOR", "MINOR"}, true},
		{"mixed case", []string{"major"}, true},
	}
	for _, tc := range cases {
		var verdict Verdict
		for _, s := range tc.severities {
			verdict.Violations = append(verdict.Violations, Violation{Severity: s})
		}
		if got := verdict.Passes(); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}
