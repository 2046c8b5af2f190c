package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeoul-labs/alimguard-backend/internal/domain/template"
	"github.com/yeoul-labs/alimguard-backend/internal/generator"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/chroma"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
	"github.com/yeoul-labs/alimguard-backend/internal/validation"
)

// TemplateHandler exposes the two pipeline entry points plus a corpus
// stats endpoint.
type TemplateHandler struct {
	log       *logger.Logger
	pipeline  *validation.Pipeline
	generator *generator.Generator
	rules     chroma.VectorStore
	templates chroma.VectorStore
}

func NewTemplateHandler(log *logger.Logger, pipeline *validation.Pipeline, gen *generator.Generator, rules, templates chroma.VectorStore) *TemplateHandler {
	return &TemplateHandler{
		log:       log.With("handler", "TemplateHandler"),
		pipeline:  pipeline,
		generator: gen,
		rules:     rules,
		templates: templates,
	}
}

// Validate runs a template through the two-gate validation pipeline.
// Schema violations are rejected before any rule lookup happens.
func (h *TemplateHandler) Validate(c *gin.Context) {
	var tpl template.Template
	if err := c.ShouldBindJSON(&tpl); err != nil {
		RespondError(c, http.StatusBadRequest, "BAD_JSON", err)
		return
	}
	if err := tpl.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_TEMPLATE", err)
		return
	}

	result := h.pipeline.Validate(c.Request.Context(), &tpl)
	h.log.Info("template validated",
		"stage", string(result.Stage),
		"is_valid", result.IsValid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)
	RespondOK(c, result)
}

// Generate runs the retrieval-gated generation flow. The result always
// has a generation_method, failed included, so the status is 200 even
// when generation could not produce a template.
func (h *TemplateHandler) Generate(c *gin.Context) {
	var req template.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "BAD_JSON", err)
		return
	}
	if err := req.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	result := h.generator.Generate(c.Request.Context(), &req)
	h.log.Info("template generated",
		"method", string(result.Method),
		"category_main", req.CategoryMain,
	)
	RespondOK(c, result)
}

type statsResponse struct {
	RuleDocuments     int  `json:"rule_documents"`
	ApprovedTemplates int  `json:"approved_templates"`
	RuleStoreUp       bool `json:"rule_store_up"`
	TemplateStoreUp   bool `json:"template_store_up"`
}

// Stats reports corpus sizes and store reachability.
func (h *TemplateHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	resp := statsResponse{
		RuleStoreUp:     h.rules.Heartbeat(ctx) == nil,
		TemplateStoreUp: h.templates.Heartbeat(ctx) == nil,
	}
	if n, err := h.rules.Count(ctx); err == nil {
		resp.RuleDocuments = n
	}
	if n, err := h.templates.Count(ctx); err == nil {
		resp.ApprovedTemplates = n
	}
	RespondOK(c, resp)
}
