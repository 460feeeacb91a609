package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"deepsearch/internal/cache"
	"deepsearch/internal/db/postgres"
	"deepsearch/internal/domain/search"
	applog "deepsearch/internal/platform/log"
)

// SearchService 搜索会话编排接口（由 search.Searcher 实现）。
type SearchService interface {
	Search(ctx context.Context, question string) ([]search.RetrievedContext, *search.SearchTrace, error)
	Answer(ctx context.Context, question string) (*search.Answer, error)
	AnswerMany(ctx context.Context, questions []string) ([]*search.Answer, error)
}

// TraceReader 轨迹查询接口（由 postgres.TraceStore 实现）。
type TraceReader interface {
	Get(ctx context.Context, id string) (*search.SearchTrace, error)
	List(ctx context.Context, limit int) ([]postgres.TraceSummary, error)
}

// SearchHandler 证据检索与问答 API
type SearchHandler struct {
	svc     SearchService
	traces  TraceReader // 可选
	store   cache.Store // 可选，用于缓存管理接口
	timeout time.Duration
}

// NewSearchHandler 创建搜索处理器
func NewSearchHandler(svc SearchService, traces TraceReader, store cache.Store, timeout time.Duration) *SearchHandler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &SearchHandler{svc: svc, traces: traces, store: store, timeout: timeout}
}

// RegisterRoutes 注册搜索路由
func (h *SearchHandler) RegisterRoutes(r chi.Router) {
	r.Post("/search", h.Search)
	r.Post("/answer", h.Answer)
	r.Post("/answers", h.AnswerMany)
	r.Get("/traces", h.ListTraces)
	r.Get("/traces/{id}", h.GetTrace)
	r.Delete("/cache", h.FlushCache)
}

type searchRequest struct {
	Question string `json:"question"`
}

type searchResponse struct {
	TraceID  string                    `json:"trace_id"`
	Contexts []search.RetrievedContext `json:"contexts"`
	Trace    *search.SearchTrace       `json:"trace"`
}

// Search 仅检索证据，不生成答案。
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	start := time.Now()
	contexts, trace, err := h.svc.Search(ctx, req.Question)
	if err != nil {
		applog.Error("[API] Search failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	applog.Info("[API] Search completed",
		"trace_id", trace.ID,
		"contexts", len(contexts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, searchResponse{
		TraceID:  trace.ID,
		Contexts: contexts,
		Trace:    trace,
	})
}

// Answer 检索证据并生成答案。
func (h *SearchHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	answer, err := h.svc.Answer(ctx, req.Question)
	if err != nil {
		applog.Error("[API] Answer failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type answerManyRequest struct {
	Questions []string `json:"questions"`
}

// AnswerMany 批量问答。批量请求共享一个超时预算。
func (h *SearchHandler) AnswerMany(w http.ResponseWriter, r *http.Request) {
	var req answerManyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Questions) == 0 {
		writeError(w, http.StatusBadRequest, "questions is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout*time.Duration(len(req.Questions)))
	defer cancel()

	answers, err := h.svc.AnswerMany(ctx, req.Questions)
	if err != nil {
		applog.Error("[API] Batch answer failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

// ListTraces 按时间倒序列出轨迹摘要。
func (h *SearchHandler) ListTraces(w http.ResponseWriter, r *http.Request) {
	if h.traces == nil {
		writeError(w, http.StatusServiceUnavailable, "trace store not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	summaries, err := h.traces.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetTrace 按 id 读取完整轨迹。
func (h *SearchHandler) GetTrace(w http.ResponseWriter, r *http.Request) {
	if h.traces == nil {
		writeError(w, http.StatusServiceUnavailable, "trace store not configured")
		return
	}

	id := chi.URLParam(r, "id")
	trace, err := h.traces.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trace == nil {
		writeError(w, http.StatusNotFound, "trace not found")
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

// FlushCache 清空检索缓存。
func (h *SearchHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "cache store not configured")
		return
	}
	if err := h.store.Flush(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	applog.Info("[API] Cache flushed")
	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}
