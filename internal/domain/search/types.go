package search

import "time"

// RetrievedContext 一条检索证据。由检索器产出后不再原地修改，
// 摘要阶段会派生副本而不是改写原值。
type RetrievedContext struct {
	Retriever string  `json:"retriever"`
	Query     string  `json:"query"` // 实际发给后端的（可能已改写的）查询
	Source    string  `json:"source"`
	FullText  string  `json:"full_text"`
	Summary   *string `json:"summary"` // nil 表示摘要判定为无关
	Score     float64 `json:"score"`   // 0 = 未评分
}

// Text 返回用于拼 prompt 的文本，优先摘要。
func (c RetrievedContext) Text() string {
	if c.Summary != nil {
		return *c.Summary
	}
	return c.FullText
}

// RoundRecord 单个检索器在一轮中的检索记录，按 (轮次, 检索器) 各建一条。
type RoundRecord struct {
	Retriever  string             `json:"retriever"`
	Query      string             `json:"query"`
	Contexts   []RetrievedContext `json:"contexts"`
	Summarized []RetrievedContext `json:"summarized_contexts,omitempty"`
}

// NeedTrace 一个原子信息需求的完整检索历史。
// Rounds 的每个元素是一轮中全部检索器的记录；长度等于实际执行的轮数，
// 等于 maxTurns 即表示校验耗尽、返回的是最后一轮的尽力结果。
type NeedTrace struct {
	AtomQuery string          `json:"atom_query"`
	Rounds    [][]RoundRecord `json:"retrieval_history"`
}

// SearchTrace 一次提问的完整检索审计记录，会话结束后不再修改。
type SearchTrace struct {
	ID               string             `json:"id"`
	Question         string             `json:"question"`
	Needs            []NeedTrace        `json:"retrieval"`
	Contexts         []RetrievedContext `json:"retrieved_contexts"`
	GenerationPrompt string             `json:"generation_prompt,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Answer 问答结果。
type Answer struct {
	Question string             `json:"question"`
	Text     string             `json:"answer"`
	Contexts []RetrievedContext `json:"contexts"`
	Trace    *SearchTrace       `json:"trace"`
}
