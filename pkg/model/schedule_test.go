package model

import "testing"

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		mins     int
		expected string
	}{
		{480, "08:00"},
		{545, "09:05"},
		{0, "00:00"},
		{1439, "23:59"},
	}

	for _, tt := range tests {
		if got := FormatMinutes(tt.mins); got != tt.expected {
			t.Errorf("FormatMinutes(%d) = %s, expected %s", tt.mins, got, tt.expected)
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		name    string
		clock   string
		want    int
		wantErr bool
	}{
		{"早上八点", "08:00", 480, false},
		{"带分钟", "14:35", 875, false},
		{"午夜", "00:00", 0, false},
		{"小时越界", "24:00", 0, true},
		{"分钟越界", "10:75", 0, true},
		{"非法格式", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClock(tt.clock)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.clock, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseClock(%q) = %d, expected %d", tt.clock, got, tt.want)
			}
		})
	}
}

func TestSchedule_SortRows(t *testing.T) {
	s := &Schedule{Rows: []ScheduleRow{
		{CaseID: "P-003", StartMins: 600},
		{CaseID: "P-002", StartMins: 480},
		{CaseID: "P-001", StartMins: 480},
	}}
	s.SortRows()

	order := []string{"P-001", "P-002", "P-003"}
	for i, want := range order {
		if s.Rows[i].CaseID != want {
			t.Errorf("第%d行 = %s, expected %s", i, s.Rows[i].CaseID, want)
		}
	}
}

func TestSchedule_RecalcMakespan(t *testing.T) {
	s := &Schedule{Rows: []ScheduleRow{
		{CaseID: "P-001", StartMins: 480, EndMins: 570},
		{CaseID: "P-002", StartMins: 480, EndMins: 720},
	}}
	s.RecalcMakespan()
	if s.Makespan != 720 {
		t.Errorf("Makespan = %d, expected 720", s.Makespan)
	}
}

func TestSchedule_Clone(t *testing.T) {
	s := &Schedule{Rows: []ScheduleRow{{CaseID: "P-001", StartMins: 480}}}
	clone := s.Clone()
	clone.Rows[0].StartMins = 600

	if s.Rows[0].StartMins != 480 {
		t.Error("修改克隆不应影响原始方案")
	}
}
