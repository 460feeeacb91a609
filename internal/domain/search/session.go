// Package search 实现迭代式多检索器证据搜索：
// 会话入口 → 校验重试循环 → 轮次执行器 → 记忆化缓存包装。
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	applog "deepsearch/internal/platform/log"
)

// Searcher 搜索会话编排器。检索器按配置顺序执行，
// 协作者均为可选，未设置时对应流程开关静默失效。
type Searcher struct {
	cfg        *Config
	retrievers []Retriever
	rewriter   QueryRewriter
	verifier   ContextVerifier
	summarizer ContextSummarizer
	extractor  InfoExtractor
	generator  Generator
	traces     TraceStore // 可选
}

// NewSearcher 创建搜索会话编排器。
func NewSearcher(cfg *Config, retrievers []Retriever) (*Searcher, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Normalize()
	if len(retrievers) == 0 {
		return nil, fmt.Errorf("searcher requires at least one retriever")
	}
	return &Searcher{cfg: cfg, retrievers: retrievers}, nil
}

// SetRewriter 设置查询改写协作者
func (s *Searcher) SetRewriter(r QueryRewriter) { s.rewriter = r }

// SetVerifier 设置充分性校验协作者
func (s *Searcher) SetVerifier(v ContextVerifier) { s.verifier = v }

// SetSummarizer 设置摘要协作者
func (s *Searcher) SetSummarizer(m ContextSummarizer) { s.summarizer = m }

// SetExtractor 设置信息需求拆解协作者
func (s *Searcher) SetExtractor(e InfoExtractor) { s.extractor = e }

// SetGenerator 设置答案生成协作者
func (s *Searcher) SetGenerator(g Generator) { s.generator = g }

// SetTraceStore 设置轨迹持久化（可选，保存失败仅告警）
func (s *Searcher) SetTraceStore(t TraceStore) { s.traces = t }

// Search 检索一个问题的支撑证据。
// 返回合并后的证据池（按需求序、检索器序、结果序）与完整轨迹。
func (s *Searcher) Search(ctx context.Context, question string) ([]RetrievedContext, *SearchTrace, error) {
	trace := &SearchTrace{
		ID:        uuid.NewString(),
		Question:  question,
		CreatedAt: time.Now().UTC(),
	}

	needs := []string{question}
	if s.cfg.ExtractInfo && s.extractor != nil {
		extracted, err := s.extractor.Extract(ctx, question)
		if err != nil {
			return nil, nil, fmt.Errorf("extract information needs: %w", err)
		}
		if len(extracted) > 0 {
			needs = extracted
		}
	}

	var contexts []RetrievedContext
	for _, need := range needs {
		ctxs, history, err := s.retrieve(ctx, need)
		if err != nil {
			return nil, nil, fmt.Errorf("search need %q: %w", need, err)
		}
		trace.Needs = append(trace.Needs, NeedTrace{AtomQuery: need, Rounds: history})
		contexts = append(contexts, ctxs...)
	}
	trace.Contexts = contexts

	applog.Info("[Search] Question searched",
		"trace_id", trace.ID,
		"needs", len(needs),
		"contexts", len(contexts),
	)
	return contexts, trace, nil
}

// Answer 检索证据并生成最终答案，生成 prompt 记入轨迹。
func (s *Searcher) Answer(ctx context.Context, question string) (*Answer, error) {
	contexts, trace, err := s.Search(ctx, question)
	if err != nil {
		return nil, err
	}

	answer := &Answer{Question: question, Contexts: contexts, Trace: trace}
	if s.generator != nil {
		text, prompt, err := s.generator.Generate(ctx, question, contexts)
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		answer.Text = text
		trace.GenerationPrompt = prompt
	}

	if s.traces != nil {
		if err := s.traces.Save(ctx, trace); err != nil {
			applog.Warn("[Search] Trace persistence failed", "trace_id", trace.ID, "error", err)
		}
	}
	return answer, nil
}

// AnswerMany 批量问答。问题之间相互独立，只共享进程级缓存存储；
// 按 LogInterval 输出进度。
func (s *Searcher) AnswerMany(ctx context.Context, questions []string) ([]*Answer, error) {
	answers := make([]*Answer, 0, len(questions))
	for i, q := range questions {
		a, err := s.Answer(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("question %d/%d: %w", i+1, len(questions), err)
		}
		answers = append(answers, a)
		if (i+1)%s.cfg.LogInterval == 0 || i+1 == len(questions) {
			applog.Info("[Search] Progress", "done", i+1, "total", len(questions))
		}
	}
	return answers, nil
}

// Config 返回会话配置。
func (s *Searcher) Config() *Config { return s.cfg }

// Retrievers 返回按执行顺序排列的检索器。
func (s *Searcher) Retrievers() []Retriever { return s.retrievers }
