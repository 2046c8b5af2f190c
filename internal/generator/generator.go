// Package generator implements the retrieval-gated template generation
// flow: classify, retrieve, generate with a fallback chain, then derive
// title and variables.
package generator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yeoul-labs/alimguard-backend/internal/classifier"
	"github.com/yeoul-labs/alimguard-backend/internal/domain/template"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/openai"
	"github.com/yeoul-labs/alimguard-backend/internal/retrieval"
)

// fallbackTitle is used when title generation fails.
const fallbackTitle = "템플릿 안내"

// Generator orchestrates the four-step generation pipeline. templates and
// guidelines are separate retrieval engines over the approved-template
// and rule/guideline corpora.
type Generator struct {
	log        *logger.Logger
	classifier *classifier.Classifier
	templates  *retrieval.Engine
	guidelines *retrieval.Engine
	llm        openai.Client
}

func New(log *logger.Logger, cls *classifier.Classifier, templates, guidelines *retrieval.Engine, llm openai.Client) (*Generator, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cls == nil {
		return nil, fmt.Errorf("classifier required")
	}
	if templates == nil || guidelines == nil {
		return nil, fmt.Errorf("retrieval engines required")
	}
	if llm == nil {
		return nil, fmt.Errorf("llm client required")
	}
	return &Generator{
		log:        log.With("service", "TemplateGenerator"),
		classifier: cls,
		templates:  templates,
		guidelines: guidelines,
		llm:        llm,
	}, nil
}

// Generate always returns a result; Method is MethodFailed with an error
// message only when every generation strategy has failed.
func (g *Generator) Generate(ctx context.Context, req *template.GenerationRequest) *template.GenerationResult {
	analysis, warnings := g.classifier.Analyze(ctx, req.UserText, req.CategoryMain, req.CategorySubCandidates)

	candidates, err := g.templates.Search(ctx, req.UserText, retrieval.DefaultTopK, map[string]any{
		"category_main": req.CategoryMain,
		"category_sub":  analysis.Category.CategorySub,
	})
	if err != nil {
		g.log.Warn("template retrieval failed, falling through to weaker strategies", "error", err.Error())
		warnings = append(warnings, "승인 템플릿 검색에 실패했습니다")
		candidates = nil
	}
	selected := retrieval.Select(candidates, retrieval.DefaultSelectCount)
	maxSim := retrieval.MaxSimilarity(candidates)

	body, method, refIDs, genErr := g.generateBody(ctx, req, analysis, selected, maxSim)
	if genErr != nil {
		g.log.Error("all generation strategies failed", "error", genErr.Error())
		return &template.GenerationResult{
			Method:       template.MethodFailed,
			ErrorMessage: "템플릿 생성에 실패했습니다: " + genErr.Error(),
			Metadata:     g.buildMetadata(analysis, maxSim, warnings),
		}
	}

	title := g.generateTitle(ctx, req.Model, body)

	return &template.GenerationResult{
		TemplateText:      body,
		TemplateTitle:     title,
		VariablesDetected: template.Placeholders(body),
		Method:            method,
		ReferenceIDs:      refIDs,
		Metadata:          g.buildMetadata(analysis, maxSim, warnings),
	}
}

// generateBody walks the strategy chain strongest-first. A strategy is
// attempted when its precondition holds; its failure drops to the next.
func (g *Generator) generateBody(ctx context.Context, req *template.GenerationRequest, analysis classifier.Analysis, selected []retrieval.Candidate, maxSim float64) (string, template.GenerationMethod, []string, error) {
	var lastErr error

	if len(selected) > 0 && maxSim >= retrieval.ReferenceThreshold {
		body, err := g.complete(ctx, req.Model, promptReferenceBased(req.UserText, analysis, selected))
		if err == nil {
			return body, template.MethodReferenceBased, candidateIDs(selected), nil
		}
		lastErr = err
		g.log.Warn("reference-based generation failed, trying policy-guided", "error", err.Error())
	}

	guidelines, err := g.guidelines.Search(ctx, req.UserText+" "+analysis.Category.CategorySub, retrieval.DefaultTopK, map[string]any{
		"type": map[string]any{"$in": []any{"policy", "recommendation", "guideline"}},
	})
	if err != nil {
		g.log.Warn("guideline retrieval failed", "error", err.Error())
		guidelines = nil
	}
	if len(guidelines) > 0 {
		body, err := g.complete(ctx, req.Model, promptPolicyGuided(req.UserText, analysis, guidelines))
		if err == nil {
			return body, template.MethodPolicyGuided, candidateIDs(guidelines), nil
		}
		lastErr = err
		g.log.Warn("policy-guided generation failed, trying new creation", "error", err.Error())
	}

	body, err := g.complete(ctx, req.Model, promptNewCreation(req.UserText, analysis))
	if err == nil {
		return body, template.MethodNewCreation, nil, nil
	}
	if lastErr == nil {
		lastErr = err
	}
	return "", template.MethodFailed, nil, lastErr
}

func (g *Generator) complete(ctx context.Context, model string, messages []openai.Message) (string, error) {
	raw, err := g.llm.Complete(ctx, messages, model)
	if err != nil {
		return "", err
	}
	body := strings.TrimSpace(raw)
	if body == "" {
		return "", fmt.Errorf("empty generation output")
	}
	return body, nil
}

// generateTitle produces a short title from the body, truncating overlong
// model output and substituting a fixed fallback on failure.
func (g *Generator) generateTitle(ctx context.Context, model, body string) string {
	raw, err := g.llm.Complete(ctx, promptTitle(body), model)
	if err != nil {
		g.log.Warn("title generation failed, using fallback", "error", err.Error())
		return fallbackTitle
	}
	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
	if title == "" {
		return fallbackTitle
	}
	if utf8.RuneCountInString(title) > template.MaxGeneratedTitle {
		runes := []rune(title)
		title = string(runes[:template.MaxGeneratedTitle])
	}
	return title
}

func (g *Generator) buildMetadata(analysis classifier.Analysis, maxSim float64, warnings []string) map[string]any {
	meta := map[string]any{
		"message_type":   string(analysis.Type.Type),
		"category_sub":   analysis.Category.CategorySub,
		"max_similarity": maxSim,
	}
	if analysis.Fields.IntentType != "" {
		meta["intent_type"] = analysis.Fields.IntentType
	}
	if len(warnings) > 0 {
		meta["warnings"] = warnings
	}
	return meta
}

func candidateIDs(candidates []retrieval.Candidate) []string {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	return ids
}
