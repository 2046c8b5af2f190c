package validation

import (
	"regexp"
	"strings"
)

// Disjoint keyword sets for heuristic content classification. A template
// scoring higher on one set is predicted as that category; ties fall to
// mixed.
var (
	transactionKeywords = []string{
		"주문", "결제", "배송", "구매", "거래", "승인", "완료",
		"확인", "발송", "도착", "픽업", "예약", "취소", "환불", "교환",
	}
	marketingKeywords = []string{
		"할인", "이벤트", "프로모션", "특가", "세일", "쿠폰",
		"무료", "혜택", "선착순", "당첨", "기회", "마지막",
	}
)

// AdDisclosureMarker is the promotional-content tag marketing templates
// must carry in the body.
const AdDisclosureMarker = "(광고)"

// Opt-out mentions marketing templates should carry.
var optOutMarkers = []string{"수신거부", "080"}

// Patterns for personal data that must never appear verbatim in a body.
var privacyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{6}-\d{7}`),             // resident registration number
	regexp.MustCompile(`\d{4}-\d{4}-\d{4}-\d{4}`), // card number
	regexp.MustCompile(`\d{3}-\d{2,3}-\d{6}`),     // bank account
}

// Overclaiming phrases forbidden in financial messaging.
var financialPhrases = []string{"100% 보장", "무조건", "반드시", "확실한 수익"}

// Efficacy claims forbidden in medical messaging.
var medicalPhrases = []string{"치료", "완치", "100% 효과", "즉시 개선"}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

func countKeywordHits(text string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		count += strings.Count(text, kw)
	}
	return count
}
