package search

import (
	"context"

	applog "deepsearch/internal/platform/log"
)

// 校验重试状态机
type loopState int

const (
	stateSearching loopState = iota
	stateVerifying
	stateDone
	stateExhausted
)

// retrieve 对一个原子查询运行有界的校验重试循环。
// 校验通过进入 Done；轮数耗尽进入 Exhausted，返回最后一轮的
// 上下文作为尽力结果，不报错。同一原子查询的各轮严格串行，
// 保证改写协作者看到因果有序的失败历史。
func (s *Searcher) retrieve(ctx context.Context, atomQuery string) ([]RetrievedContext, [][]RoundRecord, error) {
	maxTurns := s.cfg.MaxTurns()
	var (
		history  [][]RoundRecord
		contexts []RetrievedContext
		turn     int
	)

	state := stateSearching
	for state != stateDone && state != stateExhausted {
		switch state {
		case stateSearching:
			ctxs, records, err := s.runRound(ctx, atomQuery, history)
			if err != nil {
				return nil, nil, err
			}
			contexts = ctxs
			history = append(history, records)
			state = stateVerifying

		case stateVerifying:
			passed, err := s.verifyContexts(ctx, contexts, atomQuery)
			if err != nil {
				return nil, nil, err
			}
			turn++
			switch {
			case passed:
				state = stateDone
			case turn >= maxTurns:
				applog.Info("[Search] Verification exhausted, returning best-effort contexts",
					"atom_query", atomQuery, "turns", turn)
				state = stateExhausted
			default:
				applog.Debug("[Search] Verification failed, retrying", "atom_query", atomQuery, "turn", turn)
				state = stateSearching
			}
		}
	}

	return contexts, history, nil
}

// verifyContexts 未启用校验时恒为通过。
func (s *Searcher) verifyContexts(ctx context.Context, contexts []RetrievedContext, atomQuery string) (bool, error) {
	if !s.cfg.VerifyContext || s.verifier == nil {
		return true, nil
	}
	passed, err := s.verifier.Verify(ctx, contexts, atomQuery)
	if err != nil {
		return false, contractError("verify", "", atomQuery, err)
	}
	return passed, nil
}
