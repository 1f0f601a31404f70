// Package solver 提供排台求解器
package solver

import (
	"sort"

	"github.com/paitai/paitai/pkg/model"
	"github.com/paitai/paitai/pkg/scheduler/constraint"
)

// span 半开占用区间 [start, end)
type span struct {
	start, end int
}

// timetable 资源占用表
// 手术室和医生是独占资源（区间含缓冲时间），设备是累积资源
type timetable struct {
	roomBusy     map[string][]span // 区间含清洁时间
	surgeonBusy  map[string][]span // 区间含强制休息
	equipUse     map[string][]span // 原始占用 [start, end)
	equipCap     map[string]int
	turnover     int
	surgeonBreak int
	horizon      int
}

func newTimetable(ctx *constraint.Context) *timetable {
	return &timetable{
		roomBusy:     make(map[string][]span),
		surgeonBusy:  make(map[string][]span),
		equipUse:     make(map[string][]span),
		equipCap:     ctx.Catalog.Equipment(),
		turnover:     ctx.Turnover,
		surgeonBreak: ctx.SurgeonBreak,
		horizon:      ctx.Horizon,
	}
}

// insertSpan 有序插入占用区间
func insertSpan(spans []span, s span) []span {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].start >= s.start })
	spans = append(spans, span{})
	copy(spans[i+1:], spans[i:])
	spans[i] = s
	return spans
}

// nextFitGap 返回不早于 start 且与已有区间无交叠的最早开始时间
func nextFitGap(spans []span, start, length int) int {
	s := start
	for _, sp := range spans {
		if sp.end <= s {
			continue
		}
		if sp.start >= s+length {
			break
		}
		// 冲突，推到该区间结束之后
		s = sp.end
	}
	return s
}

// nextFitCapacity 返回不早于 start 的最早开始时间，
// 使 [s, s+length) 内任意时刻的并发占用数仍低于容量
func nextFitCapacity(spans []span, cap, start, length int) int {
	s := start
	for {
		conflictAt, minEnd := firstCapacityBreach(spans, cap, s, length)
		if conflictAt < 0 {
			return s
		}
		// 推到最早释放的占用之后再试
		s = minEnd
	}
}

// firstCapacityBreach 在窗口 [s, s+length) 内寻找并发占用达到容量的时刻
// 返回该时刻与当时活跃占用的最早结束时间；无超限返回 (-1, 0)
func firstCapacityBreach(spans []span, cap, s, length int) (int, int) {
	type event struct{ t, delta int }
	var events []event
	for _, sp := range spans {
		if sp.end <= s || sp.start >= s+length {
			continue
		}
		lo := sp.start
		if lo < s {
			lo = s
		}
		events = append(events, event{lo, 1}, event{sp.end, -1})
	}
	if len(events) == 0 {
		return -1, 0
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].t != events[j].t {
			return events[i].t < events[j].t
		}
		return events[i].delta < events[j].delta
	})

	concurrent := 0
	for _, e := range events {
		concurrent += e.delta
		if concurrent >= cap && e.t < s+length {
			// 找到当时活跃占用的最早结束时间
			minEnd := -1
			for _, sp := range spans {
				if sp.start <= e.t && sp.end > e.t {
					if minEnd < 0 || sp.end < minEnd {
						minEnd = sp.end
					}
				}
			}
			return e.t, minEnd
		}
	}
	return -1, 0
}

// fitBound 收敛迭代上限
// 开始时间单调前移，每轮未收敛都至少越过一个占用区间的结束点，
// 且同一结束点不会被越过两次，相关区间总数即不动点迭代的上界
func (t *timetable) fitBound(cm *constraint.CaseModel, room *model.Room) int {
	n := len(t.roomBusy[room.Name])
	if cm.Case.Surgeon != "" {
		n += len(t.surgeonBusy[cm.Case.Surgeon])
	}
	for _, eq := range t.neededEquipment(cm.Case) {
		n += len(t.equipUse[eq])
	}
	return n + 2
}

// earliestStart 计算病例在指定手术室的最早可行开始时间
// 交替满足手术室、医生、设备三类资源直到不动点；超出时域返回 false
func (t *timetable) earliestStart(cm *constraint.CaseModel, room *model.Room, floor int) (int, bool) {
	dur := cm.Case.Duration
	s := floor

	bound := t.fitBound(cm, room)
	for i := 0; i < bound; i++ {
		prev := s
		s = nextFitGap(t.roomBusy[room.Name], s, dur+t.turnover)
		if cm.Case.Surgeon != "" {
			s = nextFitGap(t.surgeonBusy[cm.Case.Surgeon], s, dur+t.surgeonBreak)
		}
		for _, eq := range t.neededEquipment(cm.Case) {
			cap := t.equipCap[eq]
			if cap <= 0 {
				cap = 1
			}
			s = nextFitCapacity(t.equipUse[eq], cap, s, dur)
		}
		if s == prev {
			if s+dur > t.horizon {
				return 0, false
			}
			return s, true
		}
		if s+dur > t.horizon {
			return 0, false
		}
	}
	return 0, false
}

// fitsAt 检查病例能否精确放置在指定位置（用于固定病例）
func (t *timetable) fitsAt(cm *constraint.CaseModel, room *model.Room, start int) bool {
	dur := cm.Case.Duration
	if start+dur > t.horizon {
		return false
	}
	if nextFitGap(t.roomBusy[room.Name], start, dur+t.turnover) != start {
		return false
	}
	if cm.Case.Surgeon != "" {
		if nextFitGap(t.surgeonBusy[cm.Case.Surgeon], start, dur+t.surgeonBreak) != start {
			return false
		}
	}
	for _, eq := range t.neededEquipment(cm.Case) {
		cap := t.equipCap[eq]
		if cap <= 0 {
			cap = 1
		}
		if nextFitCapacity(t.equipUse[eq], cap, start, dur) != start {
			return false
		}
	}
	return true
}

// place 提交占用
func (t *timetable) place(cm *constraint.CaseModel, room *model.Room, start int) {
	dur := cm.Case.Duration
	t.roomBusy[room.Name] = insertSpan(t.roomBusy[room.Name], span{start, start + dur + t.turnover})
	if cm.Case.Surgeon != "" {
		t.surgeonBusy[cm.Case.Surgeon] = insertSpan(t.surgeonBusy[cm.Case.Surgeon], span{start, start + dur + t.surgeonBreak})
	}
	for _, eq := range t.neededEquipment(cm.Case) {
		t.equipUse[eq] = insertSpan(t.equipUse[eq], span{start, start + dur})
	}
}

// neededEquipment 返回病例需要的设备列表
func (t *timetable) neededEquipment(cs *model.CaseRecord) []string {
	var needed []string
	if cs.NeedsCArm {
		needed = append(needed, model.EquipmentCArm)
	}
	if cs.NeedsRobot {
		needed = append(needed, model.EquipmentRobot)
	}
	return needed
}
