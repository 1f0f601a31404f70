package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ScheduleRow 排台结果行（按次求解整体重算，不做原地修改）
type ScheduleRow struct {
	CaseID    string `json:"case_id"`
	Type      string `json:"type"`
	Surgeon   string `json:"surgeon,omitempty"`
	Room      string `json:"room"`
	StartMins int    `json:"start_mins"`
	EndMins   int    `json:"end_mins"`
	Duration  int    `json:"duration"`
	Risk      int    `json:"risk"`
	Emergency bool   `json:"emergency,omitempty"`
}

// StartClock 返回HH:MM格式的开始时间
func (r *ScheduleRow) StartClock() string {
	return FormatMinutes(r.StartMins)
}

// EndClock 返回HH:MM格式的结束时间
func (r *ScheduleRow) EndClock() string {
	return FormatMinutes(r.EndMins)
}

// WaitlistedCase 无法排入的病例（显式上报，不静默丢弃）
type WaitlistedCase struct {
	CaseID string `json:"case_id"`
	Reason string `json:"reason"`
}

// Schedule 一次求解产出的完整排台方案
type Schedule struct {
	SolveID     uuid.UUID        `json:"solve_id"`
	Rows        []ScheduleRow    `json:"rows"`
	Waitlisted  []WaitlistedCase `json:"waitlisted,omitempty"`
	Makespan    int              `json:"makespan"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// RowByCase 按病例ID查找结果行
func (s *Schedule) RowByCase(caseID string) *ScheduleRow {
	for i := range s.Rows {
		if s.Rows[i].CaseID == caseID {
			return &s.Rows[i]
		}
	}
	return nil
}

// SortRows 按开始时间升序排序（开始时间相同时按病例ID保证稳定输出）
func (s *Schedule) SortRows() {
	sort.Slice(s.Rows, func(i, j int) bool {
		if s.Rows[i].StartMins != s.Rows[j].StartMins {
			return s.Rows[i].StartMins < s.Rows[j].StartMins
		}
		return s.Rows[i].CaseID < s.Rows[j].CaseID
	})
}

// RecalcMakespan 重算最大完成时间
func (s *Schedule) RecalcMakespan() {
	makespan := 0
	for i := range s.Rows {
		if s.Rows[i].EndMins > makespan {
			makespan = s.Rows[i].EndMins
		}
	}
	s.Makespan = makespan
}

// Clone 深拷贝排台方案
func (s *Schedule) Clone() *Schedule {
	clone := &Schedule{
		SolveID:     s.SolveID,
		Rows:        make([]ScheduleRow, len(s.Rows)),
		Waitlisted:  make([]WaitlistedCase, len(s.Waitlisted)),
		Makespan:    s.Makespan,
		GeneratedAt: s.GeneratedAt,
	}
	copy(clone.Rows, s.Rows)
	copy(clone.Waitlisted, s.Waitlisted)
	return clone
}

// FormatMinutes 将当日分钟数格式化为HH:MM
func FormatMinutes(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// ParseClock 解析HH:MM为当日分钟数
func ParseClock(clock string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("无效的时间格式 '%s': %w", clock, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("时间超出范围: %s", clock)
	}
	return h*60 + m, nil
}
