package validation

import (
	"context"
	"fmt"

	"github.com/yeoul-labs/alimguard-backend/internal/domain/template"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
)

// Pipeline chains the constraint gate and the semantic gate with
// short-circuit on failure: a template that fails the cheap structural
// checks never reaches the model-backed semantic stage.
type Pipeline struct {
	log        *logger.Logger
	constraint *ConstraintValidator
	semantic   *SemanticValidator
}

func NewPipeline(log *logger.Logger, constraint *ConstraintValidator, semantic *SemanticValidator) (*Pipeline, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if constraint == nil {
		return nil, fmt.Errorf("constraint validator required")
	}
	if semantic == nil {
		return nil, fmt.Errorf("semantic validator required")
	}
	return &Pipeline{
		log:        log.With("service", "ValidationPipeline"),
		constraint: constraint,
		semantic:   semantic,
	}, nil
}

// Validate runs both gates. The returned result's stage tells how far the
// template got: constraint or semantic on short-circuit, final when both
// gates ran.
func (p *Pipeline) Validate(ctx context.Context, t *template.Template) *template.ValidationResult {
	constraintResult := p.constraint.Validate(ctx, t)
	if !constraintResult.IsValid {
		p.log.Info("constraint stage failed, semantic stage skipped",
			"errors", len(constraintResult.Errors),
		)
		return constraintResult
	}

	semanticResult := p.semantic.Validate(ctx, t, constraintResult)
	if !semanticResult.IsValid {
		p.log.Info("semantic stage failed",
			"errors", len(semanticResult.Errors),
		)
		return semanticResult
	}

	final := template.NewValidationResult(template.StageFinal)
	final.Merge(constraintResult)
	final.Merge(semanticResult)
	return final
}
