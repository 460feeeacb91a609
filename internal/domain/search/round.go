package search

import (
	"context"
	"fmt"
	"regexp"

	applog "deepsearch/internal/platform/log"
)

// 摘要判定无关的回答模式（前缀匹配，大小写不敏感）
var notRelevantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(the )?context does not (provide|contain)`),
	regexp.MustCompile(`(?i)^no relevant information`),
}

func notRelevant(summary string) bool {
	for _, p := range notRelevantPatterns {
		if p.MatchString(summary) {
			return true
		}
	}
	return false
}

// runRound 对一个原子查询执行一整轮：按配置顺序走过全部检索器。
// history 是此前各轮的记录，用于提取每个检索器自己的失败查询。
// 返回本轮存活的上下文集合与全部检索器的记录。
func (s *Searcher) runRound(ctx context.Context, atomQuery string, history [][]RoundRecord) ([]RetrievedContext, []RoundRecord, error) {
	var contexts []RetrievedContext
	records := make([]RoundRecord, 0, len(s.retrievers))

	for idx, retriever := range s.retrievers {
		query := atomQuery
		if s.cfg.RewriteQuery && s.rewriter != nil {
			rewritten, err := s.rewriter.Rewrite(ctx, atomQuery, retriever.Name(), failedQueries(history, idx))
			if err != nil {
				return nil, nil, contractError("rewrite", retriever.Name(), atomQuery, err)
			}
			if rewritten != "" {
				query = rewritten
			}
		}

		results, err := retriever.Search(ctx, []string{query}, SearchOptions{
			TopK:         s.cfg.TopK,
			DisableCache: s.cfg.DisableCache,
		})
		if err != nil {
			return nil, nil, contractError("search", retriever.Name(), query, err)
		}
		if len(results) != 1 {
			return nil, nil, contractError("search", retriever.Name(), query,
				fmt.Errorf("expected 1 result group, got %d", len(results)))
		}

		ctxs, err := buildContexts(retriever.Name(), query, results[0])
		if err != nil {
			return nil, nil, contractError("normalize", retriever.Name(), query, err)
		}
		record := RoundRecord{Retriever: retriever.Name(), Query: query, Contexts: ctxs}

		if s.cfg.SummarizeContext && s.summarizer != nil && len(ctxs) > 0 {
			summarized, err := s.summarizeRound(ctx, ctxs, atomQuery)
			if err != nil {
				return nil, nil, contractError("summarize", retriever.Name(), query, err)
			}
			record.Summarized = summarized
			for _, c := range summarized {
				if c.Summary != nil {
					contexts = append(contexts, c)
				}
			}
		} else {
			contexts = append(contexts, ctxs...)
		}

		records = append(records, record)
	}

	applog.Debug("[Search] Round finished", "atom_query", atomQuery, "contexts", len(contexts))
	return contexts, records, nil
}

// summarizeRound 以原子查询为锚点派生摘要副本。
// 摘要命中无关模式的上下文 Summary 置 nil，留在记录中供审计，
// 但不进入本轮聚合结果。
func (s *Searcher) summarizeRound(ctx context.Context, ctxs []RetrievedContext, atomQuery string) ([]RetrievedContext, error) {
	summaries, err := s.summarizer.Summarize(ctx, ctxs, atomQuery)
	if err != nil {
		return nil, err
	}
	if len(summaries) != len(ctxs) {
		return nil, fmt.Errorf("summarizer returned %d summaries for %d contexts", len(summaries), len(ctxs))
	}

	derived := make([]RetrievedContext, len(ctxs))
	for i, c := range ctxs {
		if notRelevant(summaries[i]) {
			c.Summary = nil
		} else {
			summary := summaries[i]
			c.Summary = &summary
		}
		derived[i] = c
	}
	return derived, nil
}

// buildContexts 把后端原始返回转为证据单元，归一化 source 字段。
func buildContexts(retriever, query string, result Result) ([]RetrievedContext, error) {
	sources, err := result.Sources()
	if err != nil {
		return nil, err
	}

	ctxs := make([]RetrievedContext, 0, len(result.Texts))
	for i, text := range result.Texts {
		if i >= len(sources) {
			break
		}
		c := RetrievedContext{
			Retriever: retriever,
			Query:     query,
			Source:    sources[i],
			FullText:  text,
		}
		if i < len(result.Scores) {
			c.Score = result.Scores[i]
		}
		ctxs = append(ctxs, c)
	}
	return ctxs, nil
}

// failedQueries 提取第 idx 个检索器在此前各轮用过的查询。
// 只取该检索器自己的，不混入其它检索器的查询。
func failedQueries(history [][]RoundRecord, idx int) []string {
	var queries []string
	for _, round := range history {
		if idx < len(round) {
			queries = append(queries, round[idx].Query)
		}
	}
	return queries
}
