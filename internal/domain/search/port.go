package search

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSourceField 检索器返回的结果既无 indices 也无 urls，属于契约违反。
var ErrNoSourceField = errors.New("search: result carries neither indices nor urls")

// Result 后端对单个查询的原始返回。indices 与 urls 二者必居其一。
type Result struct {
	Texts   []string  `json:"texts"`
	Indices []string  `json:"indices,omitempty"`
	URLs    []string  `json:"urls,omitempty"`
	Scores  []float64 `json:"scores,omitempty"`
}

// Sources 把后端特有的标识字段归一化为统一的 source 列表。
func (r Result) Sources() ([]string, error) {
	switch {
	case len(r.Indices) > 0:
		return r.Indices, nil
	case len(r.URLs) > 0:
		return r.URLs, nil
	case len(r.Texts) == 0:
		// 空结果没有标识可归一化，不算契约违反
		return nil, nil
	default:
		return nil, ErrNoSourceField
	}
}

// SearchOptions 单次批量检索的参数。
type SearchOptions struct {
	TopK int
	// DisableCache 单次调用级旁路，绕过记忆化包装。
	DisableCache bool
	// Params 透传给后端的额外参数，参与缓存键计算。
	Params map[string]string
}

// Retriever 检索后端。实现必须对每个输入查询产出恰好一个 Result，顺序一致。
type Retriever interface {
	// Name 返回检索器标识
	Name() string
	// Fields 返回结果携带的数据字段
	Fields() []string
	// Fingerprint 返回配置指纹，参与缓存键计算
	Fingerprint() string
	Search(ctx context.Context, queries []string, opts SearchOptions) ([]Result, error)
}

// QueryRewriter 查询改写协作者。failedQueries 是该检索器在之前
// 各轮中使用过且未通过校验的查询，作为改写时的回避反馈。
type QueryRewriter interface {
	Rewrite(ctx context.Context, info, retriever string, failedQueries []string) (string, error)
}

// ContextVerifier 上下文充分性校验协作者。
type ContextVerifier interface {
	Verify(ctx context.Context, contexts []RetrievedContext, question string) (bool, error)
}

// ContextSummarizer 上下文摘要协作者。
// 返回值与输入一一对应、顺序一致；相关性过滤由轮次执行器统一处理。
type ContextSummarizer interface {
	Summarize(ctx context.Context, contexts []RetrievedContext, question string) ([]string, error)
}

// InfoExtractor 信息需求拆解协作者。
type InfoExtractor interface {
	Extract(ctx context.Context, question string) ([]string, error)
}

// Generator 答案生成协作者。返回答案与实际使用的 prompt。
type Generator interface {
	Generate(ctx context.Context, question string, contexts []RetrievedContext) (answer, prompt string, err error)
}

// TraceStore 检索轨迹持久化。
type TraceStore interface {
	Save(ctx context.Context, trace *SearchTrace) error
}

// contractError 带定位信息的错误包装：阶段、检索器、查询，足以从轨迹复现失败调用。
func contractError(stage, retriever, query string, err error) error {
	if retriever == "" {
		return fmt.Errorf("%s: query %q: %w", stage, query, err)
	}
	return fmt.Errorf("%s: retriever %s query %q: %w", stage, retriever, query, err)
}
