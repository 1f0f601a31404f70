package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/paitai/paitai/pkg/disruption"
	"github.com/paitai/paitai/pkg/errors"
	"github.com/paitai/paitai/pkg/model"
)

// HistoryStore 历史查询接口（由排台仓储实现）
type HistoryStore interface {
	LatestSnapshot(ctx context.Context) (*model.Schedule, error)
	ListEvents(ctx context.Context, limit int) ([]*disruption.EventRecord, error)
}

// HistoryHandler 排台历史处理器
// 只在启用持久化时挂载，读取最近一条快照和当日事件流水
type HistoryHandler struct {
	store HistoryStore
}

// NewHistoryHandler 创建排台历史处理器
func NewHistoryHandler(store HistoryStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// Snapshot 查询最近一条持久化的排台快照
func (h *HistoryHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}

	sched, err := h.store.LatestSnapshot(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse(sched))
}

// EventsResponse 事件流水响应
type EventsResponse struct {
	Events []*disruption.EventRecord `json:"events"`
	Count  int                       `json:"count"`
}

// Events 按时间顺序查询扰动事件流水
// limit 参数限制返回条数，缺省由仓储决定
func (h *HistoryHandler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, errors.InvalidInput("limit", "必须为非负整数"))
			return
		}
		limit = n
	}

	events, err := h.store.ListEvents(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, EventsResponse{Events: events, Count: len(events)})
}
