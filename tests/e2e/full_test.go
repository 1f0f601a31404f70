// Package e2e 提供端到端测试
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paitai/paitai/internal/handler"
	"github.com/paitai/paitai/pkg/catalog"
	"github.com/paitai/paitai/pkg/disruption"
	"github.com/paitai/paitai/pkg/model"
	"github.com/paitai/paitai/pkg/predictor"
	"github.com/paitai/paitai/pkg/scheduler/optimizer"
)

const caseListCSV = `patient_id,age,gender,bmi,surgery_type,anesthesia_type,has_comorbidity,asa_score,surgeon,needs_c_arm,needs_robot
P-001,45,M,24.5,General,General,false,2,Dr. House,false,false
P-002,67,F,31.0,Neurological,General,true,3,Dr. Strange,false,false
P-003,52,M,22.1,Cardiovascular,General,false,4,Dr. Yang,false,false
`

// newTestServer 按生产路由装配测试服务器
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	opt := optimizer.New(&optimizer.Config{
		Deadline:         5 * time.Second,
		Workers:          4,
		NeighborhoodSize: 8,
		MaxIterations:    100,
		InitialTemp:      120.0,
		CoolingRate:      0.995,
		PlateauThreshold: 30,
	})
	pred := &predictor.Heuristic{}
	ctrl := disruption.NewController(catalog.Default(), pred, opt)
	h := handler.NewScheduleHandler(ctrl, pred)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/day/start", h.StartDay)
	mux.HandleFunc("/api/v1/events/duration-adjust", h.DurationAdjust)
	mux.HandleFunc("/api/v1/events/start-delay", h.StartDelay)
	mux.HandleFunc("/api/v1/events/code-red", h.CodeRed)
	mux.HandleFunc("/api/v1/schedule", h.Current)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body map[string]any) (*http.Response, []byte) {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func decodeSchedule(t *testing.T, data []byte) handler.ScheduleResponse {
	t.Helper()
	var sched handler.ScheduleResponse
	if err := json.Unmarshal(data, &sched); err != nil {
		t.Fatalf("解析响应失败: %v\n%s", err, data)
	}
	return sched
}

// TestFullDayWorkflow 完整的一天：CSV开台、扰动事件、急诊、查询
func TestFullDayWorkflow(t *testing.T) {
	srv := newTestServer(t)

	// 开台前查询应返回409
	resp, err := http.Get(srv.URL + "/api/v1/schedule")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("开台前查询状态码 = %d, expected 409", resp.StatusCode)
	}

	// CSV病例清单开始当日排台
	resp, err = http.Post(srv.URL+"/api/v1/day/start", "text/csv", strings.NewReader(caseListCSV))
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("开台状态码 = %d: %s", resp.StatusCode, data)
	}
	sched := decodeSchedule(t, data)
	if len(sched.Rows) != 3 {
		t.Fatalf("结果行数 = %d, expected 3", len(sched.Rows))
	}
	t.Logf("初始方案 %s, makespan %s", sched.SolveID, sched.Makespan)
	for _, r := range sched.Rows {
		t.Logf("  %s %s-%s %s @ %s", r.CaseID, r.Start, r.End, r.Surgeon, r.Room)
		if r.Start != "08:00" {
			t.Errorf("三位医生的首台均应08:00开台, %s @ %s", r.CaseID, r.Start)
		}
	}

	// 10:00 手术超时
	resp, data = postJSON(t, srv.URL+"/api/v1/events/duration-adjust", map[string]any{
		"case_id": "P-001", "delta_minutes": 30, "now": "10:00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("超时事件状态码 = %d: %s", resp.StatusCode, data)
	}
	sched = decodeSchedule(t, data)
	for _, r := range sched.Rows {
		if r.Start != "08:00" {
			t.Errorf("已开始的手术不得移动: %s @ %s", r.CaseID, r.Start)
		}
	}

	// 10:30 患者未就绪（已开始的手术，固定约束优先于就绪时间）
	resp, data = postJSON(t, srv.URL+"/api/v1/events/start-delay", map[string]any{
		"case_id": "P-002", "reason": "Patient Not Ready", "ready_at": "11:00", "now": "10:30",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("延迟事件状态码 = %d: %s", resp.StatusCode, data)
	}

	// 11:00 红色警报
	resp, data = postJSON(t, srv.URL+"/api/v1/events/code-red", map[string]any{
		"patient_id": "E-001", "surgery_type": "Orthopedic", "asa_score": 5, "now": "11:00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("急诊状态码 = %d: %s", resp.StatusCode, data)
	}
	sched = decodeSchedule(t, data)
	var emergency *handler.RowOutput
	for i := range sched.Rows {
		if sched.Rows[i].CaseID == "E-001" {
			emergency = &sched.Rows[i]
		}
	}
	if emergency == nil {
		t.Fatal("方案中缺少急诊行")
	}
	if !emergency.Emergency || emergency.Room != "OR-13 (Trauma Bay)" || emergency.Start != "11:00" {
		t.Errorf("急诊行错误: %+v", emergency)
	}
	if emergency.Surgeon != "Dr. Lincoln" {
		t.Errorf("骨科急诊应由备班医生执刀: %s", emergency.Surgeon)
	}

	// 终局查询
	resp, err = http.Get(srv.URL + "/api/v1/schedule")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	data, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("查询状态码 = %d", resp.StatusCode)
	}
	sched = decodeSchedule(t, data)
	if len(sched.Rows) != 4 {
		t.Errorf("终局行数 = %d, expected 4", len(sched.Rows))
	}

	// 结果行时间均为合法HH:MM
	for _, r := range sched.Rows {
		if _, err := model.ParseClock(r.Start); err != nil {
			t.Errorf("非法开始时间 %q: %v", r.Start, err)
		}
		if _, err := model.ParseClock(r.End); err != nil {
			t.Errorf("非法结束时间 %q: %v", r.End, err)
		}
	}
}

// TestErrorResponses 错误路径的状态码与错误码
func TestErrorResponses(t *testing.T) {
	srv := newTestServer(t)

	// 先正常开台
	resp, err := http.Post(srv.URL+"/api/v1/day/start", "text/csv", strings.NewReader(caseListCSV))
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("开台状态码 = %d", resp.StatusCode)
	}

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
		code   string
	}{
		{
			name:   "未知病例",
			path:   "/api/v1/events/duration-adjust",
			body:   map[string]any{"case_id": "P-404", "delta_minutes": 10, "now": "10:00"},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "非法时间格式",
			path:   "/api/v1/events/duration-adjust",
			body:   map[string]any{"case_id": "P-001", "delta_minutes": 10, "now": "25:99"},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "缺少事件时间",
			path:   "/api/v1/events/start-delay",
			body:   map[string]any{"case_id": "P-001", "reason": "Other", "ready_at": "10:00"},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "手术室延迟缺少手术室",
			path:   "/api/v1/events/start-delay",
			body:   map[string]any{"case_id": "P-001", "reason": "Room Cleaning", "ready_at": "10:00", "now": "09:00"},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "急诊病例ID重复",
			path:   "/api/v1/events/code-red",
			body:   map[string]any{"patient_id": "P-001", "surgery_type": "General", "now": "10:00"},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := postJSON(t, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("状态码 = %d, expected %d: %s", resp.StatusCode, tt.status, data)
			}
			var errBody struct {
				Code string `json:"code"`
			}
			if err := json.Unmarshal(data, &errBody); err != nil {
				t.Fatalf("解析错误响应失败: %v", err)
			}
			if errBody.Code != tt.code {
				t.Errorf("错误码 = %s, expected %s", errBody.Code, tt.code)
			}
		})
	}

	// 乱序事件
	resp, data := postJSON(t, srv.URL+"/api/v1/events/duration-adjust", map[string]any{
		"case_id": "P-001", "delta_minutes": 10, "now": "12:00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("状态码 = %d: %s", resp.StatusCode, data)
	}
	resp, data = postJSON(t, srv.URL+"/api/v1/events/duration-adjust", map[string]any{
		"case_id": "P-001", "delta_minutes": 10, "now": "09:00",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("乱序事件状态码 = %d, expected 400: %s", resp.StatusCode, data)
	}
}

// TestMethodNotAllowed 错误的HTTP方法
func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	endpoints := []string{
		"/api/v1/day/start",
		"/api/v1/events/duration-adjust",
		"/api/v1/events/start-delay",
		"/api/v1/events/code-red",
	}
	for _, ep := range endpoints {
		t.Run(fmt.Sprintf("GET_%s", ep), func(t *testing.T) {
			resp, err := http.Get(srv.URL + ep)
			if err != nil {
				t.Fatalf("请求失败: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("状态码 = %d, expected 400", resp.StatusCode)
			}
		})
	}
}
