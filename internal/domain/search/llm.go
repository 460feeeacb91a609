package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"deepsearch/internal/provider"
)

// LLM 协作者实现：通过 provider 注册表取模型，prompt 见 prompts.go。
// 所有实现都无状态，可被多个会话并发使用。

type llmClient struct {
	providerName string
	model        string
	maxTokens    int
}

func (c llmClient) complete(ctx context.Context, system, user string) (string, error) {
	p, err := provider.GetProvider(c.providerName)
	if err != nil {
		return "", fmt.Errorf("get provider %s: %w", c.providerName, err)
	}
	resp, err := p.Complete(ctx, &provider.CompletionRequest{
		Model: c.model,
		Messages: []provider.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// Collaborators 一次会话用到的全套协作者。
type Collaborators struct {
	Rewriter   QueryRewriter
	Verifier   ContextVerifier
	Summarizer ContextSummarizer
	Extractor  InfoExtractor
	Generator  Generator
}

// NewLLMCollaborators 按配置构造全套 LLM 协作者。
func NewLLMCollaborators(cfg *Config) Collaborators {
	searcher := llmClient{providerName: cfg.SearcherProvider, model: cfg.SearcherModel, maxTokens: cfg.SearcherMaxTokens}
	generator := llmClient{providerName: cfg.GeneratorProvider, model: cfg.GeneratorModel, maxTokens: cfg.SearcherMaxTokens}
	return Collaborators{
		Rewriter:   &LLMRewriter{llm: searcher},
		Verifier:   &LLMVerifier{llm: searcher},
		Summarizer: &LLMSummarizer{llm: searcher},
		Extractor:  &LLMExtractor{llm: searcher},
		Generator:  &LLMGenerator{llm: generator},
	}
}

// ── 查询改写 ─────────────────────────────────────────────────

// LLMRewriter 针对具体检索器改写查询，把失败过的查询作为回避反馈。
type LLMRewriter struct {
	llm llmClient
}

func (r *LLMRewriter) Rewrite(ctx context.Context, info, retriever string, failedQueries []string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s", info)
	if len(failedQueries) > 0 {
		sb.WriteString("\nHere are some queries that failed to retrieve the information, please avoid using them.")
		for _, q := range failedQueries {
			fmt.Fprintf(&sb, "\nFailing Query: %s", q)
		}
	}
	return r.llm.complete(ctx, rewriteSystemPrompt(retriever), sb.String())
}

// ── 充分性校验 ───────────────────────────────────────────────

// LLMVerifier 把模型的 yes/no 回答映射为布尔。
type LLMVerifier struct {
	llm llmClient
}

func (v *LLMVerifier) Verify(ctx context.Context, contexts []RetrievedContext, question string) (bool, error) {
	var sb strings.Builder
	for i, c := range contexts {
		fmt.Fprintf(&sb, "Context %d: %s\n\n", i, c.Text())
	}
	fmt.Fprintf(&sb, "Topic: %s", question)

	resp, err := v.llm.complete(ctx, verifySystemPrompt, sb.String())
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(resp), "yes"), nil
}

// ── 上下文摘要 ───────────────────────────────────────────────

// LLMSummarizer 逐条摘要，输出与输入一一对应。
type LLMSummarizer struct {
	llm llmClient
}

func (m *LLMSummarizer) Summarize(ctx context.Context, contexts []RetrievedContext, question string) ([]string, error) {
	summaries := make([]string, len(contexts))
	for i, c := range contexts {
		user := fmt.Sprintf("Context: %s\n\nQuestion: %s", c.FullText, question)
		summary, err := m.llm.complete(ctx, summarySystemPrompt, user)
		if err != nil {
			return nil, err
		}
		summaries[i] = summary
	}
	return summaries, nil
}

// ── 信息需求拆解 ─────────────────────────────────────────────

// LLMExtractor 把问题拆成原子信息需求，解析 "[n] <text>" 编号列表。
type LLMExtractor struct {
	llm llmClient
}

func (e *LLMExtractor) Extract(ctx context.Context, question string) ([]string, error) {
	resp, err := e.llm.complete(ctx, extractSystemPrompt, fmt.Sprintf("Question: %s", question))
	if err != nil {
		return nil, err
	}
	return parseNumberedList(resp), nil
}

var numberedItemPattern = regexp.MustCompile(`\[\d+\]\s*`)

// parseNumberedList 解析 "[1] xxx [2] yyy" 形式的编号列表，
// 丢弃首个编号之前的任何前言。
func parseNumberedList(resp string) []string {
	parts := numberedItemPattern.Split(resp, -1)
	if len(parts) == 0 {
		return nil
	}
	parts = parts[1:] // 首段是编号前的前言（可能为空）

	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if item := strings.TrimSpace(p); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ── 答案生成 ─────────────────────────────────────────────────

// LLMGenerator 基于证据池生成最终答案，返回实际使用的 prompt 供审计。
type LLMGenerator struct {
	llm llmClient
}

func (g *LLMGenerator) Generate(ctx context.Context, question string, contexts []RetrievedContext) (string, string, error) {
	var sb strings.Builder
	for i, c := range contexts {
		fmt.Fprintf(&sb, "Context %d: %s\n\n", i+1, c.Text())
	}
	fmt.Fprintf(&sb, "Question: %s", question)
	prompt := sb.String()

	answer, err := g.llm.complete(ctx, generateSystemPrompt, prompt)
	if err != nil {
		return "", "", err
	}
	return answer, prompt, nil
}
