package suggestion

import (
	"fmt"
	"strings"

	"github.com/ymatsuda/rankwatch/app/database"
	"github.com/ymatsuda/rankwatch/app/evaluation"
)

const systemPrompt = `あなたはSEOコンサルタントです。検索順位の推移をもとに、
記事の具体的な改善提案を日本語で簡潔に作成してください。
提案は実行可能な箇条書きで、指定された段階のトーンに従ってください。`

// stageDirectives escalate in assertiveness. Stage 1 is a light nudge after
// the first stalled cycle; stage 4 recommends restructuring the article.
var stageDirectives = map[int]string{
	1: "段階1: 軽微な調整を提案してください。タイトルやメタディスクリプションの見直しなど、小さな改善に絞ります。",
	2: "段階2: 中程度の改善を提案してください。見出し構成の調整や、不足しているトピックの追記を含めます。",
	3: "段階3: 踏み込んだ改善を提案してください。コンテンツの大幅な加筆、内部リンクの強化、検索意図の再分析を含めます。",
	4: "段階4: 抜本的な改善を提案してください。記事構成の作り直しやリライトを含む、最も強い施策を提示します。",
}

// BuildPrompts renders the system and user prompts for one suggestion
// request. The stage is clamped into the supported range so an out-of-range
// stored value still yields a usable prompt.
func BuildPrompts(req evaluation.SuggestionRequest) (string, string) {
	stage := req.StageUsed
	if stage < 1 {
		stage = 1
	}
	if stage > evaluation.MaxSuggestionStage {
		stage = evaluation.MaxSuggestionStage
	}

	var b strings.Builder

	fmt.Fprintf(&b, "対象ページ: %s\n", req.ContentItemID)
	fmt.Fprintf(&b, "現在の平均掲載順位: %.1f\n", req.CurrentPosition)

	if req.PreviousPosition != nil {
		fmt.Fprintf(&b, "前回の平均掲載順位: %.1f\n", *req.PreviousPosition)
	} else {
		b.WriteString("前回の順位データ: なし（初回測定）\n")
	}

	switch req.Outcome {
	case database.OutcomeWorse:
		b.WriteString("評価結果: 順位が下落しました。\n")
	default:
		b.WriteString("評価結果: 順位に変化がありませんでした。\n")
	}

	b.WriteString("\n")
	b.WriteString(stageDirectives[stage])

	return systemPrompt, b.String()
}
