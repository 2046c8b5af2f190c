package generator

import (
	"fmt"
	"strings"

	"github.com/yeoul-labs/alimguard-backend/internal/classifier"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/openai"
	"github.com/yeoul-labs/alimguard-backend/internal/retrieval"
)

const generationRules = `작성 규칙:
- 치환이 필요한 값은 #{이름} 형식으로 표기하세요 (예: #{고객명}, #{주문번호}).
- 정보성 메시지에는 광고성 문구를 넣지 마세요.
- 광고성 메시지라면 본문 맨 앞에 (광고) 표기와 수신거부 안내를 포함하세요.
- 출력에는 메시지 본문만 포함하세요. 변수 목록, 설명, 주석을 덧붙이지 마세요.`

func analysisSummary(a classifier.Analysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "메시지 유형: %s\n", a.Type.Type)
	fmt.Fprintf(&sb, "소분류: %s\n", a.Category.CategorySub)
	if a.Fields.IntentType != "" {
		fmt.Fprintf(&sb, "목적: %s\n", a.Fields.IntentType)
	}
	if a.Fields.RecipientScope != "" {
		fmt.Fprintf(&sb, "수신 대상: %s\n", a.Fields.RecipientScope)
	}
	if len(a.Fields.Variables) > 0 {
		fmt.Fprintf(&sb, "치환 후보: %s\n", strings.Join(a.Fields.Variables, ", "))
	}
	return sb.String()
}

func promptReferenceBased(userText string, analysis classifier.Analysis, references []retrieval.Candidate) []openai.Message {
	system := `당신은 알림톡 템플릿 작성 전문가입니다.
아래 승인된 템플릿들을 구조와 문체의 참고로 삼아, 사용자 요청에 맞는 새 템플릿 본문을 작성하세요.
참고 템플릿을 그대로 복사하지 말고 요청 내용에 맞게 재구성하세요.

` + generationRules

	var sb strings.Builder
	sb.WriteString("## 참고 템플릿\n")
	for i, ref := range references {
		fmt.Fprintf(&sb, "[참고 %d]\n%s\n\n", i+1, ref.Text)
	}
	sb.WriteString("## 분석 결과\n")
	sb.WriteString(analysisSummary(analysis))
	sb.WriteString("\n## 사용자 요청\n")
	sb.WriteString(userText)

	return []openai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: sb.String()},
	}
}

func promptPolicyGuided(userText string, analysis classifier.Analysis, guidelines []retrieval.Candidate) []openai.Message {
	system := `당신은 알림톡 템플릿 작성 전문가입니다.
참고할 승인 템플릿이 없으므로, 아래 작성 가이드라인을 준수하여 사용자 요청에 맞는 템플릿 본문을 작성하세요.

` + generationRules

	var sb strings.Builder
	sb.WriteString("## 작성 가이드라인\n")
	for _, g := range guidelines {
		fmt.Fprintf(&sb, "- %s\n", g.Text)
	}
	sb.WriteString("\n## 분석 결과\n")
	sb.WriteString(analysisSummary(analysis))
	sb.WriteString("\n## 사용자 요청\n")
	sb.WriteString(userText)

	return []openai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: sb.String()},
	}
}

func promptNewCreation(userText string, analysis classifier.Analysis) []openai.Message {
	system := `당신은 알림톡 템플릿 작성 전문가입니다.
사용자 요청만을 근거로 새 템플릿 본문을 작성하세요.

` + generationRules

	var sb strings.Builder
	sb.WriteString("## 분석 결과\n")
	sb.WriteString(analysisSummary(analysis))
	sb.WriteString("\n## 사용자 요청\n")
	sb.WriteString(userText)

	return []openai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: sb.String()},
	}
}

func promptTitle(body string) []openai.Message {
	system := `다음 알림톡 본문에 어울리는 제목을 지으세요.
- 10자 이내의 한국어 제목이어야 합니다.
- 제목 텍스트만 출력하세요. 따옴표나 설명을 붙이지 마세요.`

	return []openai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: body},
	}
}
