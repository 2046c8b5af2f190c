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

// pipelineStore backs both validators: ListAll serves the constraint
// stage, Search serves policy alignment.
type pipelineStore struct {
	chroma.VectorStore
	rules       []chroma.Document
	policies    []chroma.QueryResult
	searchCalls int
}

func (s *pipelineStore) ListAll(ctx context.Context, filter map[string]any) ([]chroma.Document, error) {
	return s.rules, nil
}

func (s *pipelineStore) Search(ctx context.Context, queryText string, topK int, filter map[string]any) ([]chroma.QueryResult, error) {
	s.searchCalls++
	return s.policies, nil
}

func newTestPipeline(t *testing.T, store chroma.VectorStore, llm openai.Client) *Pipeline {
	t.Helper()
	log := testLogger(t)
	constraint, err := NewConstraintValidator(log, store)
	if err != nil {
		t.Fatalf("constraint: %v", err)
	}
	engine, err := retrieval.NewEngine(log, store)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	semantic, err := NewSemanticValidator(log, engine, llm)
	if err != nil {
		t.Fatalf("semantic: %v", err)
	}
	p, err := NewPipeline(log, constraint, semantic)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return p
}

func TestPipelineShortCircuitsOnConstraintFailure(t *testing.T) {
	store := &pipelineStore{rules: []chroma.Document{strictLengthRule(1000)}}
	llm := &fakeLLM{respond: func([]openai.Message) (string, error) {
		t.Fatalf("semantic stage must not run after constraint failure")
		return "", nil
	}}
	p := newTestPipeline(t, store, llm)

	tpl := baseTemplate()
	tpl.Body = strings.Repeat("x", 1001)

	result := p.Validate(context.Background(), tpl)
	if result.IsValid {
		t.Fatalf("want invalid")
	}
	if result.Stage != template.StageConstraint {
		t.Fatalf("want stage=constraint got=%s", result.Stage)
	}
	if store.searchCalls != 0 {
		t.Fatalf("semantic retrieval ran despite short-circuit")
	}
}

func TestPipelineSemanticFailureIsFinalResult(t *testing.T) {
	store := &pipelineStore{}
	p := newTestPipeline(t, store, passingGateLLM())

	tpl := baseTemplate()
	tpl.Category = template.CategoryMarketing
	tpl.Body = "특가 할인 이벤트 안내"

	result := p.Validate(context.Background(), tpl)
	if result.IsValid {
		t.Fatalf("want invalid")
	}
	if result.Stage != template.StageSemantic {
		t.Fatalf("want stage=semantic got=%s", result.Stage)
	}
}

func TestPipelineSuccessMergesIntoFinal(t *testing.T) {
	store := &pipelineStore{rules: []chroma.Document{strictLengthRule(1000)}}
	p := newTestPipeline(t, store, passingGateLLM())

	tpl := baseTemplate()
	tpl.Body = "주문 결제가 완료되었습니다. 배송이 시작되면 다시 안내드립니다."

	result := p.Validate(context.Background(), tpl)
	if !result.IsValid {
		t.Fatalf("want valid got errors=%v", result.Errors)
	}
	if result.Stage != template.StageFinal {
		t.Fatalf("want stage=final got=%s", result.Stage)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("final result of passing run must carry no errors: %v", result.Errors)
	}
	// diagnostics from both stages survive the merge
	if _, ok := result.Details["rules_checked"]; !ok {
		t.Fatalf("constraint details lost in merge: %v", result.Details)
	}
	if _, ok := result.Details["predicted_category"]; !ok {
		t.Fatalf("semantic details lost in merge: %v", result.Details)
	}
}
