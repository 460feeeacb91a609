package search

import (
	"context"
	"errors"
	"testing"
)

func TestRetrieveSingleTurnWithoutVerification(t *testing.T) {
	ctx := context.Background()
	r := newFakeRetriever("fake")

	s, err := NewSearcher(&Config{TopK: 5}, []Retriever{r})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}

	contexts, history, err := s.retrieve(ctx, "q")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d rounds, want 1 when verification disabled", len(history))
	}
	if len(contexts) == 0 {
		t.Fatal("expected contexts from single round")
	}
}

func TestRetrieveStopsWhenVerified(t *testing.T) {
	ctx := context.Background()
	r := newFakeRetriever("fake")
	v := &fakeVerifier{failUntil: 1}

	cfg := &Config{VerifyContext: true, TopK: 5}
	s, err := NewSearcher(cfg, []Retriever{r})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	s.SetVerifier(v)

	_, history, err := s.retrieve(ctx, "q")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d rounds, want 2 (fail once, then pass)", len(history))
	}
	if v.calls != 2 {
		t.Fatalf("verifier called %d times, want 2", v.calls)
	}
}

func TestRetrieveExhaustionBestEffort(t *testing.T) {
	ctx := context.Background()
	r := newFakeRetriever("fake")
	v := &fakeVerifier{failUntil: 100} // 永不通过

	cfg := &Config{VerifyContext: true, TopK: 5}
	s, err := NewSearcher(cfg, []Retriever{r})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	s.SetVerifier(v)

	contexts, history, err := s.retrieve(ctx, "q")
	if err != nil {
		t.Fatalf("exhaustion must not be an error, got %v", err)
	}
	if len(history) != cfg.MaxTurns() {
		t.Fatalf("got %d rounds, want exactly %d", len(history), cfg.MaxTurns())
	}
	if len(contexts) == 0 {
		t.Fatal("expected best-effort contexts from last round")
	}
}

func TestRetrieveRewriteSeesFailureHistory(t *testing.T) {
	ctx := context.Background()
	r := newFakeRetriever("fake")
	v := &fakeVerifier{failUntil: 100}
	rw := &fakeRewriter{}

	cfg := &Config{VerifyContext: true, RewriteQuery: true, TopK: 5}
	s, err := NewSearcher(cfg, []Retriever{r})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	s.SetVerifier(v)
	s.SetRewriter(rw)

	if _, _, err := s.retrieve(ctx, "q"); err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	// 三轮各调用一次改写，失败历史按轮递增
	if len(rw.calls) != 3 {
		t.Fatalf("rewriter called %d times, want 3", len(rw.calls))
	}
	for turn, call := range rw.calls {
		if len(call.failed) != turn {
			t.Errorf("turn %d saw %d failed queries, want %d", turn+1, len(call.failed), turn)
		}
	}
	// 后轮的失败历史是前轮实际使用的查询
	if len(rw.calls[2].failed) == 2 {
		prev := rw.calls[1]
		want := prev.info + " (for " + prev.retriever + ", attempt 2)"
		if rw.calls[2].failed[1] != want {
			t.Errorf("failure history mismatch: got %q, want %q", rw.calls[2].failed[1], want)
		}
	}
}

func TestRetrievePropagatesRoundErrors(t *testing.T) {
	ctx := context.Background()
	r := newFakeRetriever("fake")
	r.err = errors.New("backend down")

	s, err := NewSearcher(&Config{TopK: 5}, []Retriever{r})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}

	if _, _, err := s.retrieve(ctx, "q"); err == nil {
		t.Fatal("expected backend error to propagate")
	}
}

func TestMaxTurns(t *testing.T) {
	withVerify := &Config{VerifyContext: true}
	if got := withVerify.MaxTurns(); got != 3 {
		t.Fatalf("MaxTurns with verification = %d, want 3", got)
	}
	withoutVerify := &Config{}
	if got := withoutVerify.MaxTurns(); got != 1 {
		t.Fatalf("MaxTurns without verification = %d, want 1", got)
	}
}
