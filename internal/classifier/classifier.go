// Package classifier runs the LLM-backed message analysis that feeds the
// generation pipeline: message-type classification, category
// classification and structured field extraction.
package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yeoul-labs/alimguard-backend/internal/clients/redis"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/openai"
)

// MessageType combines the two orthogonal content flags.
type MessageType string

const (
	TypeBasic      MessageType = "BASIC"
	TypeExtraInfo  MessageType = "EXTRA_INFO"
	TypeChannelAdd MessageType = "CHANNEL_ADD"
	TypeHybrid     MessageType = "HYBRID"
)

// TypeResult is the message-type verdict. Type is always derived from the
// two flags, never taken from model output directly.
type TypeResult struct {
	Type           MessageType `json:"type"`
	HasChannelLink bool        `json:"has_channel_link"`
	HasExtraInfo   bool        `json:"has_extra_info"`
	Explanation    string      `json:"explanation"`
}

// CategoryResult is the category-classification verdict; CategorySub is
// always a member of the caller's candidate list.
type CategoryResult struct {
	CategorySub string `json:"category_sub"`
	Explanation string `json:"explanation"`
}

// FieldsResult is the structured-field extraction output.
type FieldsResult struct {
	IntentType     string   `json:"intent_type"`
	RecipientScope string   `json:"recipient_scope"`
	LinksAllowed   bool     `json:"links_allowed"`
	Variables      []string `json:"variables"`
}

// Analysis bundles the three classifier outputs for one request text.
type Analysis struct {
	Type     TypeResult     `json:"type"`
	Category CategoryResult `json:"category"`
	Fields   FieldsResult   `json:"fields"`
}

// Classifier never returns an error from its classify methods: on service
// failure or malformed model output it falls back to a safe default and
// reports the degradation through warnings.
type Classifier struct {
	log   *logger.Logger
	llm   openai.Client
	cache *redis.Cache
}

func New(log *logger.Logger, llm openai.Client, cache *redis.Cache) (*Classifier, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if llm == nil {
		return nil, fmt.Errorf("llm client required")
	}
	return &Classifier{
		log:   log.With("service", "MessageClassifier"),
		llm:   llm,
		cache: cache,
	}, nil
}

func defaultTypeResult() TypeResult {
	return TypeResult{Type: TypeBasic, HasChannelLink: false, HasExtraInfo: false}
}

func combineType(hasChannelLink, hasExtraInfo bool) MessageType {
	switch {
	case hasChannelLink && hasExtraInfo:
		return TypeHybrid
	case hasChannelLink:
		return TypeChannelAdd
	case hasExtraInfo:
		return TypeExtraInfo
	default:
		return TypeBasic
	}
}

// ClassifyType determines the message type of the request text. Warnings
// record any fallback to the default verdict.
func (c *Classifier) ClassifyType(ctx context.Context, text string) (TypeResult, []string) {
	key := cacheKey("classify_type", text)
	var cached TypeResult
	if c.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	raw, err := c.llm.Complete(ctx, promptClassifyType(text), "")
	if err != nil {
		c.log.Warn("type classification failed, using default", "error", err.Error())
		return defaultTypeResult(), []string{"메시지 유형 분류에 실패하여 기본값(BASIC)을 사용합니다"}
	}

	var parsed struct {
		HasChannelLink bool   `json:"has_channel_link"`
		HasExtraInfo   bool   `json:"has_extra_info"`
		Explanation    string `json:"explanation"`
	}
	if err := openai.DecodeJSON(raw, &parsed); err != nil {
		c.log.Warn("type classification output malformed, using default", "error", err.Error())
		return defaultTypeResult(), []string{"메시지 유형 분류 결과를 해석할 수 없어 기본값(BASIC)을 사용합니다"}
	}

	result := TypeResult{
		Type:           combineType(parsed.HasChannelLink, parsed.HasExtraInfo),
		HasChannelLink: parsed.HasChannelLink,
		HasExtraInfo:   parsed.HasExtraInfo,
		Explanation:    parsed.Explanation,
	}
	c.cache.SetJSON(ctx, key, result)
	return result, nil
}

// ClassifyCategory picks a sub-category from candidates. The model is
// constrained to the list; any value outside it falls back to the first
// candidate with a warning.
func (c *Classifier) ClassifyCategory(ctx context.Context, text, categoryMain string, candidates []string) (CategoryResult, []string) {
	if len(candidates) == 0 {
		return CategoryResult{}, []string{"소분류 후보 목록이 비어 있습니다"}
	}
	fallback := CategoryResult{CategorySub: candidates[0]}

	key := cacheKey("classify_category", text, categoryMain, strings.Join(candidates, "|"))
	var cached CategoryResult
	if c.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	raw, err := c.llm.Complete(ctx, promptClassifyCategory(text, categoryMain, candidates), "")
	if err != nil {
		c.log.Warn("category classification failed, using first candidate", "error", err.Error())
		return fallback, []string{fmt.Sprintf("소분류 분류에 실패하여 첫 번째 후보(%s)를 사용합니다", candidates[0])}
	}

	var parsed CategoryResult
	if err := openai.DecodeJSON(raw, &parsed); err != nil {
		c.log.Warn("category classification output malformed, using first candidate", "error", err.Error())
		return fallback, []string{fmt.Sprintf("소분류 분류 결과를 해석할 수 없어 첫 번째 후보(%s)를 사용합니다", candidates[0])}
	}

	if !contains(candidates, parsed.CategorySub) {
		c.log.Warn("category outside candidate list, using first candidate",
			"got", parsed.CategorySub,
		)
		return fallback, []string{fmt.Sprintf("후보에 없는 소분류(%s)가 반환되어 첫 번째 후보(%s)를 사용합니다", parsed.CategorySub, candidates[0])}
	}

	c.cache.SetJSON(ctx, key, parsed)
	return parsed, nil
}

// ExtractFields pulls structured drafting fields from the request text.
// Hints from earlier classification steps are passed through as extra
// guidance.
func (c *Classifier) ExtractFields(ctx context.Context, text string, hints []string) (FieldsResult, []string) {
	raw, err := c.llm.Complete(ctx, promptExtractFields(text, hints), "")
	if err != nil {
		c.log.Warn("field extraction failed, using empty result", "error", err.Error())
		return FieldsResult{Variables: []string{}}, []string{"구조 필드 추출에 실패하여 빈 결과를 사용합니다"}
	}

	var parsed FieldsResult
	if err := openai.DecodeJSON(raw, &parsed); err != nil {
		c.log.Warn("field extraction output malformed, using empty result", "error", err.Error())
		return FieldsResult{Variables: []string{}}, []string{"구조 필드 추출 결과를 해석할 수 없어 빈 결과를 사용합니다"}
	}
	if parsed.Variables == nil {
		parsed.Variables = []string{}
	}
	return parsed, nil
}

// Analyze runs type and category classification concurrently, then field
// extraction with their outputs as hints. It never fails; degradations
// accumulate in the returned warnings.
func (c *Classifier) Analyze(ctx context.Context, text, categoryMain string, candidates []string) (Analysis, []string) {
	var (
		typeRes   TypeResult
		typeWarns []string
		catRes    CategoryResult
		catWarns  []string
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		typeRes, typeWarns = c.ClassifyType(gCtx, text)
		return nil
	})
	g.Go(func() error {
		catRes, catWarns = c.ClassifyCategory(gCtx, text, categoryMain, candidates)
		return nil
	})
	_ = g.Wait()

	hints := []string{
		fmt.Sprintf("메시지 유형: %s", typeRes.Type),
		fmt.Sprintf("소분류: %s", catRes.CategorySub),
	}
	fieldsRes, fieldWarns := c.ExtractFields(ctx, text, hints)

	warnings := make([]string, 0, len(typeWarns)+len(catWarns)+len(fieldWarns))
	warnings = append(warnings, typeWarns...)
	warnings = append(warnings, catWarns...)
	warnings = append(warnings, fieldWarns...)

	return Analysis{Type: typeRes, Category: catRes, Fields: fieldsRes}, warnings
}

func cacheKey(op string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "alimguard:classifier:" + op + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
