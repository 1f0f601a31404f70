// Package constraint 构建排台约束模型并校验排台方案
package constraint

import (
	"fmt"

	"github.com/paitai/paitai/pkg/catalog"
	"github.com/paitai/paitai/pkg/model"
)

// Context 求解上下文
// 输入数据在一次求解内只读；控制器每次重排都会重建上下文
type Context struct {
	Catalog      *catalog.Catalog
	Cases        []*model.CaseRecord
	DayStart     int // 常规病例的全局开始下界（分钟）
	Horizon      int // 时域上界，足够宽以容纳加班
	Turnover     int // 手术室清洁时间
	SurgeonBreak int // 医生强制休息时间
	RiskWeight   int // 风险分在目标函数中的权重系数
}

// NewContext 创建求解上下文
func NewContext(cat *catalog.Catalog, cases []*model.CaseRecord) *Context {
	return &Context{
		Catalog:      cat,
		Cases:        cases,
		DayStart:     catalog.DefaultDayStart,
		Horizon:      catalog.DefaultHorizon,
		Turnover:     catalog.DefaultTurnover,
		SurgeonBreak: catalog.DefaultSurgeonBreak,
		RiskWeight:   2,
	}
}

// CaseModel 单个病例的约束模型
type CaseModel struct {
	Case           *model.CaseRecord
	CandidateRooms []*model.Room // 兼容手术室（保持目录顺序）
	Floor          int           // 开始时间下界（固定病例忽略）
	Pinned         bool
	PinnedStart    int
	PinnedRoom     *model.Room
}

// RoomFloor 返回该病例在指定手术室的开始下界
// 手术室不可用窗口只在选中该手术室时生效
func (m *CaseModel) RoomFloor(room *model.Room) int {
	floor := m.Floor
	if until := m.Case.Constraints.RoomFloor(room.Name); until > floor {
		floor = until
	}
	return floor
}

// Build 把病例集合编译为约束模型
// 无兼容手术室的病例进入等待列表而不是被静默丢弃；
// 固定约束指向未知手术室属于模型矛盾，直接返回错误。
func (c *Context) Build() ([]*CaseModel, []model.WaitlistedCase, error) {
	models := make([]*CaseModel, 0, len(c.Cases))
	var waitlisted []model.WaitlistedCase

	for _, cs := range c.Cases {
		if cs.Emergency {
			// 急诊病例走直接预约通道，不进入常规模型
			continue
		}

		cm := &CaseModel{Case: cs}

		if cs.Constraints.IsPinned() {
			room := c.Catalog.RoomByName(cs.Constraints.PinnedRoom)
			if room == nil {
				return nil, nil, fmt.Errorf("病例 %s 固定在未知手术室 '%s'", cs.ID, cs.Constraints.PinnedRoom)
			}
			cm.Pinned = true
			cm.PinnedStart = *cs.Constraints.PinnedStart
			cm.PinnedRoom = room
			cm.CandidateRooms = []*model.Room{room}
			models = append(models, cm)
			continue
		}

		cm.CandidateRooms = c.Catalog.CompatibleRooms(cs.Type)
		if len(cm.CandidateRooms) == 0 {
			waitlisted = append(waitlisted, model.WaitlistedCase{
				CaseID: cs.ID,
				Reason: fmt.Sprintf("没有支持 %s 类型的手术室", cs.Type),
			})
			continue
		}

		cm.Floor = cs.Constraints.EffectiveFloor()
		if cm.Floor < c.DayStart {
			cm.Floor = c.DayStart
		}
		models = append(models, cm)
	}

	return models, waitlisted, nil
}

// Objective 计算排台方案的目标值
// makespan + Σ(start × 风险权重)：高风险病例被推向更早的时段，
// 权重相对时域足够小，保证 makespan 主导
func (c *Context) Objective(rows []model.ScheduleRow) int64 {
	var makespan int64
	var weighted int64
	for i := range rows {
		if end := int64(rows[i].EndMins); end > makespan {
			makespan = end
		}
		weighted += int64(rows[i].StartMins) * int64(rows[i].Risk*c.RiskWeight)
	}
	return makespan + weighted
}
