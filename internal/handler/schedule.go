package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/paitai/paitai/pkg/disruption"
	"github.com/paitai/paitai/pkg/errors"
	"github.com/paitai/paitai/pkg/intake"
	"github.com/paitai/paitai/pkg/model"
	"github.com/paitai/paitai/pkg/predictor"
)

// ScheduleHandler 排台处理器
type ScheduleHandler struct {
	controller *disruption.Controller
	pred       predictor.Predictor
}

// NewScheduleHandler 创建排台处理器
func NewScheduleHandler(ctrl *disruption.Controller, pred predictor.Predictor) *ScheduleHandler {
	return &ScheduleHandler{controller: ctrl, pred: pred}
}

// StartDayRequest 开始当日请求（JSON形态）
type StartDayRequest struct {
	Cases []intake.Record `json:"cases"`
}

// RowOutput 结果行输出
type RowOutput struct {
	CaseID    string `json:"case_id"`
	Type      string `json:"type"`
	Surgeon   string `json:"surgeon,omitempty"`
	Room      string `json:"room"`
	Start     string `json:"start"` // HH:MM
	End       string `json:"end"`   // HH:MM
	Duration  int    `json:"duration"`
	Risk      int    `json:"risk"`
	Emergency bool   `json:"emergency,omitempty"`
}

// ScheduleResponse 排台方案响应
type ScheduleResponse struct {
	SolveID     string                 `json:"solve_id"`
	Rows        []RowOutput            `json:"rows"`
	Waitlisted  []model.WaitlistedCase `json:"waitlisted,omitempty"`
	Makespan    string                 `json:"makespan"` // HH:MM
	GeneratedAt string                 `json:"generated_at"`
}

// StartDay 开始当日排台
// Content-Type 为 text/csv 时按病例清单CSV解析，否则按JSON解析
func (h *ScheduleHandler) StartDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var records []intake.Record
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		var err error
		records, err = intake.ParseCSV(r.Body)
		if err != nil {
			respondError(w, err)
			return
		}
	} else {
		var req StartDayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
			return
		}
		if len(req.Cases) == 0 {
			respondError(w, errors.InvalidInput("cases", "病例列表为空"))
			return
		}
		for i := range req.Cases {
			if err := req.Cases[i].Validate(); err != nil {
				respondError(w, err)
				return
			}
		}
		records = req.Cases
	}

	cases := intake.BuildCases(records, h.pred)
	sched, err := h.controller.StartDay(r.Context(), cases)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse(sched))
}

// DurationAdjustRequest 时长变更请求
type DurationAdjustRequest struct {
	CaseID       string `json:"case_id"`
	DeltaMinutes int    `json:"delta_minutes"`
	Now          string `json:"now"` // HH:MM
}

// DurationAdjust 处理时长变更事件
func (h *ScheduleHandler) DurationAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req DurationAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	now, err := parseClockField("now", req.Now)
	if err != nil {
		respondError(w, err)
		return
	}

	sched, err := h.controller.DurationAdjust(r.Context(), req.CaseID, req.DeltaMinutes, now)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse(sched))
}

// StartDelayRequest 开始延迟请求
type StartDelayRequest struct {
	CaseID  string `json:"case_id"`
	Reason  string `json:"reason"`
	ReadyAt string `json:"ready_at"` // HH:MM
	Now     string `json:"now"`      // HH:MM
	Room    string `json:"room,omitempty"`
}

// StartDelay 处理开始延迟事件
func (h *ScheduleHandler) StartDelay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req StartDelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	readyAt, err := parseClockField("ready_at", req.ReadyAt)
	if err != nil {
		respondError(w, err)
		return
	}
	now, err := parseClockField("now", req.Now)
	if err != nil {
		respondError(w, err)
		return
	}

	sched, err := h.controller.StartDelay(r.Context(), req.CaseID, req.Reason, readyAt, now, req.Room)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse(sched))
}

// CodeRedRequest 急诊直接预约请求
type CodeRedRequest struct {
	PatientID      string  `json:"patient_id"`
	Age            int     `json:"age"`
	Gender         string  `json:"gender"`
	BMI            float64 `json:"bmi"`
	SurgeryType    string  `json:"surgery_type"`
	AnesthesiaType string  `json:"anesthesia_type"`
	HasComorbidity bool    `json:"has_comorbidity"`
	ASAScore       int     `json:"asa_score"`
	Now            string  `json:"now"` // HH:MM
}

// CodeRed 处理急诊直接预约
func (h *ScheduleHandler) CodeRed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req CodeRedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	now, err := parseClockField("now", req.Now)
	if err != nil {
		respondError(w, err)
		return
	}

	attrs := predictor.Attributes{
		PatientID:      req.PatientID,
		Age:            req.Age,
		Gender:         req.Gender,
		BMI:            req.BMI,
		SurgeryType:    req.SurgeryType,
		AnesthesiaType: req.AnesthesiaType,
		HasComorbidity: req.HasComorbidity,
		ASAScore:       req.ASAScore,
	}
	sched, err := h.controller.CodeRed(r.Context(), attrs, now)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse(sched))
}

// Current 查询当前排台方案
func (h *ScheduleHandler) Current(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}

	sched, err := h.controller.CurrentSchedule()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse(sched))
}

// parseClockField 解析HH:MM字段
func parseClockField(field, value string) (int, error) {
	if value == "" {
		return 0, errors.InvalidInput(field, "不能为空")
	}
	mins, err := model.ParseClock(value)
	if err != nil {
		return 0, errors.InvalidInput(field, err.Error())
	}
	return mins, nil
}

// scheduleResponse 构建排台方案响应
func scheduleResponse(sched *model.Schedule) ScheduleResponse {
	rows := make([]RowOutput, len(sched.Rows))
	for i := range sched.Rows {
		r := &sched.Rows[i]
		rows[i] = RowOutput{
			CaseID:    r.CaseID,
			Type:      r.Type,
			Surgeon:   r.Surgeon,
			Room:      r.Room,
			Start:     r.StartClock(),
			End:       r.EndClock(),
			Duration:  r.Duration,
			Risk:      r.Risk,
			Emergency: r.Emergency,
		}
	}
	return ScheduleResponse{
		SolveID:     sched.SolveID.String(),
		Rows:        rows,
		Waitlisted:  sched.Waitlisted,
		Makespan:    model.FormatMinutes(sched.Makespan),
		GeneratedAt: sched.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
