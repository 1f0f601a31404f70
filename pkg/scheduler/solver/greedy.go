package solver

import (
	"fmt"
	"sort"
	"time"

	"github.com/paitai/paitai/pkg/logger"
	"github.com/paitai/paitai/pkg/model"
	"github.com/paitai/paitai/pkg/scheduler/constraint"
)

// Result 求解结果
type Result struct {
	Rows       []model.ScheduleRow    `json:"rows"`
	Waitlisted []model.WaitlistedCase `json:"waitlisted,omitempty"`
	Feasible   bool                   `json:"feasible"`
	Objective  int64                  `json:"objective"`
	Elapsed    time.Duration          `json:"elapsed"`
	Message    string                 `json:"message,omitempty"`
}

// Ordering 一次贪心放置的决策序列
// Seq 是病例模型下标的排列；RoomPick 强制某病例优先尝试指定候选手术室，
// 两者共同构成优化器的搜索空间
type Ordering struct {
	Seq      []int
	RoomPick map[int]int
}

// Clone 深拷贝决策序列
func (o *Ordering) Clone() *Ordering {
	clone := &Ordering{
		Seq:      make([]int, len(o.Seq)),
		RoomPick: make(map[int]int, len(o.RoomPick)),
	}
	copy(clone.Seq, o.Seq)
	for k, v := range o.RoomPick {
		clone.RoomPick[k] = v
	}
	return clone
}

// DefaultOrdering 构造初始决策序列
// 固定病例在前（按固定时间升序），其余按风险降序、下界升序、时长降序
func DefaultOrdering(models []*constraint.CaseModel) *Ordering {
	seq := make([]int, len(models))
	for i := range models {
		seq[i] = i
	}
	sort.SliceStable(seq, func(a, b int) bool {
		ma, mb := models[seq[a]], models[seq[b]]
		if ma.Pinned != mb.Pinned {
			return ma.Pinned
		}
		if ma.Pinned {
			return ma.PinnedStart < mb.PinnedStart
		}
		if ma.Case.RiskScore != mb.Case.RiskScore {
			return ma.Case.RiskScore > mb.Case.RiskScore
		}
		if ma.Floor != mb.Floor {
			return ma.Floor < mb.Floor
		}
		if ma.Case.Duration != mb.Case.Duration {
			return ma.Case.Duration > mb.Case.Duration
		}
		return ma.Case.ID < mb.Case.ID
	})
	return &Ordering{Seq: seq, RoomPick: make(map[int]int)}
}

// GreedySolver 贪心放置求解器
// 按决策序列把每个病例放到最早可行的（手术室, 开始时间）上，
// 所有硬约束在放置过程中构造性满足
type GreedySolver struct {
	log *logger.SolverLogger
}

// NewGreedySolver 创建贪心求解器
func NewGreedySolver() *GreedySolver {
	return &GreedySolver{log: logger.NewSolverLogger()}
}

// Place 按决策序列执行一次完整放置
func (s *GreedySolver) Place(ctx *constraint.Context, models []*constraint.CaseModel, ord *Ordering) *Result {
	start := time.Now()
	tt := newTimetable(ctx)
	result := &Result{Feasible: true}

	// 固定病例必须精确复现，冲突即整体无可行解
	for _, idx := range ord.Seq {
		cm := models[idx]
		if !cm.Pinned {
			continue
		}
		if !tt.fitsAt(cm, cm.PinnedRoom, cm.PinnedStart) {
			result.Feasible = false
			result.Message = fmt.Sprintf("固定病例 %s 在 %s@%s 与已有占用冲突",
				cm.Case.ID, cm.PinnedRoom.Name, model.FormatMinutes(cm.PinnedStart))
			result.Elapsed = time.Since(start)
			return result
		}
		tt.place(cm, cm.PinnedRoom, cm.PinnedStart)
		result.Rows = append(result.Rows, rowFor(cm, cm.PinnedRoom, cm.PinnedStart))
	}

	// 其余病例按序放置到最早可行位置
	for _, idx := range ord.Seq {
		cm := models[idx]
		if cm.Pinned {
			continue
		}

		pick, hasPick := ord.RoomPick[idx]
		room, at, ok := s.pickPlacement(tt, cm, pick, hasPick)
		if !ok {
			result.Feasible = false
			result.Message = fmt.Sprintf("病例 %s 无法在时域内排入任何兼容手术室", cm.Case.ID)
			result.Elapsed = time.Since(start)
			return result
		}
		tt.place(cm, room, at)
		result.Rows = append(result.Rows, rowFor(cm, room, at))
	}

	sort.Slice(result.Rows, func(i, j int) bool {
		if result.Rows[i].StartMins != result.Rows[j].StartMins {
			return result.Rows[i].StartMins < result.Rows[j].StartMins
		}
		return result.Rows[i].CaseID < result.Rows[j].CaseID
	})
	result.Objective = ctx.Objective(result.Rows)
	result.Elapsed = time.Since(start)
	return result
}

// pickPlacement 为病例选择（手术室, 开始时间）
// 指定了候选下标时优先尝试该手术室；否则取最早开始时间，平局按目录顺序
func (s *GreedySolver) pickPlacement(tt *timetable, cm *constraint.CaseModel, pick int, hasPick bool) (*model.Room, int, bool) {
	if hasPick && pick >= 0 && pick < len(cm.CandidateRooms) {
		room := cm.CandidateRooms[pick]
		if at, ok := tt.earliestStart(cm, room, cm.RoomFloor(room)); ok {
			return room, at, true
		}
	}

	var bestRoom *model.Room
	bestAt := -1
	for _, room := range cm.CandidateRooms {
		at, ok := tt.earliestStart(cm, room, cm.RoomFloor(room))
		if !ok {
			continue
		}
		if bestAt < 0 || at < bestAt {
			bestRoom, bestAt = room, at
		}
	}
	if bestRoom == nil {
		return nil, 0, false
	}
	return bestRoom, bestAt, true
}

// rowFor 构造结果行
func rowFor(cm *constraint.CaseModel, room *model.Room, start int) model.ScheduleRow {
	return model.ScheduleRow{
		CaseID:    cm.Case.ID,
		Type:      cm.Case.Type,
		Surgeon:   cm.Case.Surgeon,
		Room:      room.Name,
		StartMins: start,
		EndMins:   start + cm.Case.Duration,
		Duration:  cm.Case.Duration,
		Risk:      cm.Case.RiskScore,
	}
}
