package filter

import "strings"

// The scorer is a lexicon over mixed Chinese/English financial-news text.
// It starts from a neutral 0.5 and walks toward 0 for each negative term and
// toward 1 for each positive one, clamped to [0, 1]. Lower means more
// negative; the exact shape matters less than being deterministic and cheap.

const (
	neutralScore   = 0.5
	negativeWeight = 0.15
	positiveWeight = 0.10
)

var negativeTerms = []string{
	// Chinese
	"漏洞", "泄露", "泄漏", "诈骗", "欺诈", "盗刷", "盗窃", "盗取",
	"风险", "违规", "违法", "处罚", "罚款", "罚单", "暴雷", "爆雷",
	"跑路", "亏损", "下跌", "暴跌", "崩盘", "冻结", "起诉", "犯罪",
	"洗钱", "挪用", "套现", "破产", "倒闭", "失信", "造假", "黑客",
	// English
	"fraud", "scam", "breach", "leak", "lawsuit", "fine", "penalty",
	"hack", "theft", "loss", "crash", "default", "bankrupt", "probe",
}

var positiveTerms = []string{
	"增长", "盈利", "上涨", "大涨", "创新高", "利好", "回暖", "提升",
	"growth", "profit", "gain", "record high", "rally", "upgrade",
}

// Score computes the local sentiment of cleaned text. Pure and deterministic.
func Score(text string) float64 {
	lowered := strings.ToLower(text)

	score := neutralScore
	for _, term := range negativeTerms {
		score -= float64(strings.Count(lowered, term)) * negativeWeight
	}
	for _, term := range positiveTerms {
		score += float64(strings.Count(lowered, term)) * positiveWeight
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
