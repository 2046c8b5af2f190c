package classifier

import (
	"fmt"
	"strings"

	"github.com/yeoul-labs/alimguard-backend/internal/platform/openai"
)

func promptClassifyType(text string) []openai.Message {
	system := `당신은 알림톡 메시지 분석 전문가입니다.
사용자의 요청 텍스트를 읽고 두 가지 여부를 판정하세요.

1. has_channel_link: 채널 추가(친구 추가) 유도 문구가 포함되어 있는가?
2. has_extra_info: 핵심 알림 외의 부가 설명(이용 안내, 추가 혜택 설명 등)이 포함되어 있는가?

반드시 아래 JSON 형식으로만 답하세요. 다른 텍스트를 포함하지 마세요.
{"has_channel_link": true|false, "has_extra_info": true|false, "explanation": "판정 근거 한 문장"}

예시:
입력: "주문이 접수되었습니다. 배송 조회는 버튼을 눌러주세요."
출력: {"has_channel_link": false, "has_extra_info": false, "explanation": "핵심 알림만 포함된 기본 메시지입니다."}

입력: "결제가 완료되었습니다. 채널을 추가하시면 할인 쿠폰을 드립니다."
출력: {"has_channel_link": true, "has_extra_info": false, "explanation": "채널 추가 유도 문구가 포함되어 있습니다."}

입력: "예약이 확정되었습니다. 방문 시 주차장은 건물 지하 1층을 이용하실 수 있습니다."
출력: {"has_channel_link": false, "has_extra_info": true, "explanation": "예약 확정 외에 주차 이용 안내가 추가되어 있습니다."}`

	user := fmt.Sprintf("입력: %q\n출력:", text)
	return []openai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

func promptClassifyCategory(text, categoryMain string, candidates []string) []openai.Message {
	system := fmt.Sprintf(`당신은 알림톡 템플릿 분류 전문가입니다.
사용자의 요청 텍스트를 읽고 아래 후보 중에서 가장 적합한 소분류 하나를 고르세요.

대분류: %s
소분류 후보: %s

규칙:
- 반드시 후보 목록에 있는 값 중 하나만 선택하세요. 목록에 없는 값을 만들어내면 안 됩니다.
- 반드시 아래 JSON 형식으로만 답하세요.
{"category_sub": "선택한 소분류", "explanation": "선택 근거 한 문장"}`,
		categoryMain, strings.Join(candidates, ", "))

	user := fmt.Sprintf("입력: %q\n출력:", text)
	return []openai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

func promptExtractFields(text string, hints []string) []openai.Message {
	system := `당신은 알림톡 메시지 구조 분석 전문가입니다.
사용자의 요청 텍스트에서 아래 항목을 추출하세요.

- intent_type: 메시지의 목적 (예: 주문 안내, 결제 안내, 예약 확인, 이벤트 안내)
- recipient_scope: 수신 대상 (예: 주문 고객, 전체 회원, 예약자)
- links_allowed: 링크/버튼 포함이 적절한가 (true|false)
- variables: 치환이 필요한 값의 이름 목록. #{이름} 형태의 명시적 치환자와
  이름, 날짜, 금액, 전화번호처럼 건마다 달라지는 표현을 모두 포함하세요.

반드시 아래 JSON 형식으로만 답하세요.
{"intent_type": "...", "recipient_scope": "...", "links_allowed": true|false, "variables": ["...", "..."]}`

	messages := []openai.Message{{Role: "system", Content: system}}
	for _, hint := range hints {
		if strings.TrimSpace(hint) == "" {
			continue
		}
		messages = append(messages, openai.Message{
			Role:    "system",
			Content: "참고 정보: " + hint,
		})
	}
	messages = append(messages, openai.Message{
		Role:    "user",
		Content: fmt.Sprintf("입력: %q\n출력:", text),
	})
	return messages
}
