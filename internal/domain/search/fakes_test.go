package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"deepsearch/internal/cache"
)

// fakeRetriever 可编程的检索后端。按查询返回固定结果，并记录全部调用。
type fakeRetriever struct {
	name        string
	fingerprint string
	results     map[string]Result
	err         error

	mu    sync.Mutex
	calls [][]string
}

func newFakeRetriever(name string) *fakeRetriever {
	return &fakeRetriever{
		name:        name,
		fingerprint: "fp-" + name,
		results:     make(map[string]Result),
	}
}

func (f *fakeRetriever) Name() string        { return f.name }
func (f *fakeRetriever) Fields() []string    { return []string{"texts", "indices"} }
func (f *fakeRetriever) Fingerprint() string { return f.fingerprint }

func (f *fakeRetriever) Search(_ context.Context, queries []string, _ SearchOptions) ([]Result, error) {
	f.mu.Lock()
	recorded := make([]string, len(queries))
	copy(recorded, queries)
	f.calls = append(f.calls, recorded)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	out := make([]Result, len(queries))
	for i, q := range queries {
		if r, ok := f.results[q]; ok {
			out[i] = r
		} else {
			out[i] = Result{
				Texts:   []string{"text for " + q},
				Indices: []string{"doc-" + q},
				Scores:  []float64{1.0},
			}
		}
	}
	return out, nil
}

func (f *fakeRetriever) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// flakyStore 包装内存存储并可注入读写错误。
type flakyStore struct {
	inner   *cache.MemoryStore
	getErr  error
	putErr  error
	getting int
	putting int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{inner: cache.NewMemoryStore(0, cache.EvictLRU)}
}

func (s *flakyStore) Get(ctx context.Context, key cache.Key) ([]byte, bool, error) {
	s.getting++
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	return s.inner.Get(ctx, key)
}

func (s *flakyStore) Put(ctx context.Context, key cache.Key, value []byte) error {
	s.putting++
	if s.putErr != nil {
		return s.putErr
	}
	return s.inner.Put(ctx, key, value)
}

func (s *flakyStore) Delete(ctx context.Context, key cache.Key) error { return s.inner.Delete(ctx, key) }
func (s *flakyStore) Len(ctx context.Context) (int, error)            { return s.inner.Len(ctx) }
func (s *flakyStore) Flush(ctx context.Context) error                 { return s.inner.Flush(ctx) }
func (s *flakyStore) Close() error                                    { return s.inner.Close() }

// ── 协作者假实现 ─────────────────────────────────────────────

type fakeRewriter struct {
	mu    sync.Mutex
	calls []rewriteCall
	fn    func(info, retriever string, failed []string) string
}

type rewriteCall struct {
	info      string
	retriever string
	failed    []string
}

func (r *fakeRewriter) Rewrite(_ context.Context, info, retriever string, failed []string) (string, error) {
	r.mu.Lock()
	recorded := make([]string, len(failed))
	copy(recorded, failed)
	r.calls = append(r.calls, rewriteCall{info: info, retriever: retriever, failed: recorded})
	r.mu.Unlock()

	if r.fn != nil {
		return r.fn(info, retriever, failed), nil
	}
	return fmt.Sprintf("%s (for %s, attempt %d)", info, retriever, len(failed)+1), nil
}

// fakeVerifier 前 failUntil 次校验返回 false，之后返回 true。
type fakeVerifier struct {
	failUntil int
	calls     int
}

func (v *fakeVerifier) Verify(_ context.Context, _ []RetrievedContext, _ string) (bool, error) {
	v.calls++
	return v.calls > v.failUntil, nil
}

// fakeSummarizer 按 FullText 查表返回摘要，缺省回显原文。
type fakeSummarizer struct {
	summaries map[string]string
}

func (m *fakeSummarizer) Summarize(_ context.Context, ctxs []RetrievedContext, _ string) ([]string, error) {
	out := make([]string, len(ctxs))
	for i, c := range ctxs {
		if s, ok := m.summaries[c.FullText]; ok {
			out[i] = s
		} else {
			out[i] = "summary: " + c.FullText
		}
	}
	return out, nil
}

type fakeExtractor struct {
	needs []string
}

func (e *fakeExtractor) Extract(_ context.Context, _ string) ([]string, error) {
	return e.needs, nil
}

type fakeGenerator struct{}

func (g *fakeGenerator) Generate(_ context.Context, question string, ctxs []RetrievedContext) (string, string, error) {
	var sb strings.Builder
	for _, c := range ctxs {
		sb.WriteString(c.Text())
		sb.WriteByte('\n')
	}
	return "answer to " + question, sb.String(), nil
}

type fakeTraceStore struct {
	mu    sync.Mutex
	saved []*SearchTrace
	err   error
}

func (t *fakeTraceStore) Save(_ context.Context, trace *SearchTrace) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.saved = append(t.saved, trace)
	return nil
}
