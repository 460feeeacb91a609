package search

import (
	"context"
	"errors"
	"testing"
)

func TestSearcherRequiresRetriever(t *testing.T) {
	if _, err := NewSearcher(DefaultConfig(), nil); err == nil {
		t.Fatal("expected error for searcher without retrievers")
	}
}

func TestSearchSingleNeed(t *testing.T) {
	ctx := context.Background()
	r := newFakeRetriever("fake")
	r.results["What is the capital of France?"] = Result{
		Texts:   []string{"Paris is the capital of France."},
		Indices: []string{"doc1"},
		Scores:  []float64{3.2},
	}

	s, err := NewSearcher(&Config{TopK: 5}, []Retriever{r})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}

	contexts, trace, err := s.Search(ctx, "What is the capital of France?")
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(contexts) != 1 {
		t.Fatalf("got %d contexts, want 1", len(contexts))
	}
	if contexts[0].Source != "doc1" || contexts[0].FullText != "Paris is the capital of France." {
		t.Fatalf("unexpected context: %+v", contexts[0])
	}
	if contexts[0].Retriever != "fake" {
		t.Fatalf("context retriever = %s, want fake", contexts[0].Retriever)
	}

	if trace.ID == "" {
		t.Fatal("trace must carry an id")
	}
	if len(trace.Needs) != 1 || trace.Needs[0].AtomQuery != "What is the capital of France?" {
		t.Fatalf("unexpected trace needs: %+v", trace.Needs)
	}
	if len(trace.Needs[0].Rounds) != 1 {
		t.Fatalf("got %d rounds in trace, want 1", len(trace.Needs[0].Rounds))
	}
}

func TestSearchExtractedNeedsInOrder(t *testing.T) {
	ctx := context.Background()
	r := newFakeRetriever("fake")

	cfg := &Config{ExtractInfo: true, TopK: 5}
	s, err := NewSearcher(cfg, []Retriever{r})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	s.SetExtractor(&fakeExtractor{needs: []string{"first need", "second need"}})

	contexts, trace, err := s.Search(ctx, "compound question")
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(trace.Needs) != 2 {
		t.Fatalf("got %d needs, want 2", len(trace.Needs))
	}
	if trace.Needs[0].AtomQuery != "first need" || trace.Needs[1].AtomQuery != "second need" {
		t.Fatalf("needs out of order: %+v", trace.Needs)
	}
	// 证据池按需求序合并
	if len(contexts) != 2 || contexts[0].Query != "first need" || contexts[1].Query != "second need" {
		t.Fatalf("contexts not merged in need order: %+v", contexts)
	}
}

func TestSearchEmptyExtractionFallsBack(t *testing.T) {
	ctx := context.Background()
	r := newFakeRetriever("fake")

	cfg := &Config{ExtractInfo: true, TopK: 5}
	s, err := NewSearcher(cfg, []Retriever{r})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	s.SetExtractor(&fakeExtractor{needs: nil})

	_, trace, err := s.Search(ctx, "plain question")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(trace.Needs) != 1 || trace.Needs[0].AtomQuery != "plain question" {
		t.Fatalf("expected fallback to original question, got %+v", trace.Needs)
	}
}

func TestAnswerGeneratesAndPersistsTrace(t *testing.T) {
	ctx := context.Background()
	r := newFakeRetriever("fake")
	ts := &fakeTraceStore{}

	s, err := NewSearcher(&Config{TopK: 5}, []Retriever{r})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	s.SetGenerator(&fakeGenerator{})
	s.SetTraceStore(ts)

	answer, err := s.Answer(ctx, "some question")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if answer.Text != "answer to some question" {
		t.Fatalf("answer text = %q", answer.Text)
	}
	if answer.Trace == nil || answer.Trace.GenerationPrompt == "" {
		t.Fatal("generation prompt must be recorded in trace")
	}
	if len(ts.saved) != 1 || ts.saved[0].ID != answer.Trace.ID {
		t.Fatalf("trace not persisted: %+v", ts.saved)
	}
}

func TestAnswerTracePersistFailureNonFatal(t *testing.T) {
	ctx := context.Background()
	r := newFakeRetriever("fake")
	ts := &fakeTraceStore{err: errors.New("db down")}

	s, err := NewSearcher(&Config{TopK: 5}, []Retriever{r})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	s.SetGenerator(&fakeGenerator{})
	s.SetTraceStore(ts)

	if _, err := s.Answer(ctx, "q"); err != nil {
		t.Fatalf("trace persistence failure must not fail the answer, got %v", err)
	}
}

func TestAnswerMany(t *testing.T) {
	ctx := context.Background()
	r := newFakeRetriever("fake")

	s, err := NewSearcher(&Config{TopK: 5}, []Retriever{r})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	s.SetGenerator(&fakeGenerator{})

	questions := []string{"q1", "q2", "q3"}
	answers, err := s.AnswerMany(ctx, questions)
	if err != nil {
		t.Fatalf("answer many: %v", err)
	}
	if len(answers) != len(questions) {
		t.Fatalf("got %d answers, want %d", len(answers), len(questions))
	}
	for i, a := range answers {
		if a.Question != questions[i] {
			t.Errorf("answer %d for %q, want %q", i, a.Question, questions[i])
		}
	}
}

func TestSearchMultipleRetrieversOrdered(t *testing.T) {
	ctx := context.Background()
	r1 := newFakeRetriever("alpha")
	r2 := newFakeRetriever("beta")

	s, err := NewSearcher(&Config{TopK: 5}, []Retriever{r1, r2})
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}

	contexts, _, err := s.Search(ctx, "q")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(contexts) != 2 {
		t.Fatalf("got %d contexts, want one per retriever", len(contexts))
	}
	if contexts[0].Retriever != "alpha" || contexts[1].Retriever != "beta" {
		t.Fatalf("contexts not in retriever order: %+v", contexts)
	}
}
