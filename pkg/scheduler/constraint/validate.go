package constraint

import (
	"fmt"
	"sort"

	"github.com/paitai/paitai/pkg/model"
)

// ViolationDetail 约束违反详情
type ViolationDetail struct {
	Kind     string `json:"kind"`
	CaseID   string `json:"case_id,omitempty"`
	Resource string `json:"resource,omitempty"`
	Message  string `json:"message"`
}

// 违反类型
const (
	ViolationRoomOverlap     = "room_overlap"
	ViolationSurgeonOverlap  = "surgeon_overlap"
	ViolationEquipmentCap    = "equipment_capacity"
	ViolationRoomIncompat    = "room_incompatible"
	ViolationFloorBreached   = "floor_breached"
	ViolationPinNotHonored   = "pin_not_honored"
)

// Validate 校验完整排台方案的全部硬约束
// 急诊直接预约的行只做存在性检查，不参与资源独占校验
func (c *Context) Validate(rows []model.ScheduleRow) []ViolationDetail {
	var violations []ViolationDetail

	caseByID := make(map[string]*model.CaseRecord, len(c.Cases))
	for _, cs := range c.Cases {
		caseByID[cs.ID] = cs
	}

	byRoom := make(map[string][]model.ScheduleRow)
	bySurgeon := make(map[string][]model.ScheduleRow)

	for _, row := range rows {
		if row.Emergency {
			continue
		}

		cs := caseByID[row.CaseID]
		if cs == nil {
			violations = append(violations, ViolationDetail{
				Kind: ViolationFloorBreached, CaseID: row.CaseID,
				Message: "结果行指向未知病例",
			})
			continue
		}

		// 固定约束必须被精确复现
		if cs.Constraints.IsPinned() {
			if row.StartMins != *cs.Constraints.PinnedStart || row.Room != cs.Constraints.PinnedRoom {
				violations = append(violations, ViolationDetail{
					Kind: ViolationPinNotHonored, CaseID: row.CaseID, Resource: row.Room,
					Message: fmt.Sprintf("固定在 %s@%s，实际 %s@%s",
						cs.Constraints.PinnedRoom, model.FormatMinutes(*cs.Constraints.PinnedStart),
						row.Room, model.FormatMinutes(row.StartMins)),
				})
			}
		} else {
			// 开始下界
			floor := cs.Constraints.EffectiveFloor()
			if until := cs.Constraints.RoomFloor(row.Room); until > floor {
				floor = until
			}
			if row.StartMins < floor {
				violations = append(violations, ViolationDetail{
					Kind: ViolationFloorBreached, CaseID: row.CaseID,
					Message: fmt.Sprintf("开始时间 %s 早于下界 %s",
						model.FormatMinutes(row.StartMins), model.FormatMinutes(floor)),
				})
			}

			// 手术室类型兼容
			room := c.Catalog.RoomByName(row.Room)
			if room == nil || !room.SupportsType(cs.Type) {
				violations = append(violations, ViolationDetail{
					Kind: ViolationRoomIncompat, CaseID: row.CaseID, Resource: row.Room,
					Message: fmt.Sprintf("手术室 %s 不支持 %s 类型", row.Room, cs.Type),
				})
			}
		}

		byRoom[row.Room] = append(byRoom[row.Room], row)
		if row.Surgeon != "" {
			bySurgeon[row.Surgeon] = append(bySurgeon[row.Surgeon], row)
		}
	}

	// 手术室独占（含清洁时间）
	for room, rs := range byRoom {
		violations = append(violations, checkOverlap(rs, c.Turnover, ViolationRoomOverlap, room)...)
	}

	// 医生独占（含强制休息）
	for surgeon, rs := range bySurgeon {
		violations = append(violations, checkOverlap(rs, c.SurgeonBreak, ViolationSurgeonOverlap, surgeon)...)
	}

	// 设备累积容量
	violations = append(violations, c.checkEquipment(rows, caseByID)...)

	return violations
}

// checkOverlap 检查同一资源上的区间两两不重叠
// 占用区间为 [start, end+buffer)
func checkOverlap(rows []model.ScheduleRow, buffer int, kind, resource string) []ViolationDetail {
	sorted := make([]model.ScheduleRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMins < sorted[j].StartMins })

	var violations []ViolationDetail
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.StartMins < prev.EndMins+buffer {
			violations = append(violations, ViolationDetail{
				Kind: kind, CaseID: cur.CaseID, Resource: resource,
				Message: fmt.Sprintf("%s 与 %s 在 %s 上冲突", prev.CaseID, cur.CaseID, resource),
			})
		}
	}
	return violations
}

// checkEquipment 检查每台设备在任意时刻的并发占用不超过容量
func (c *Context) checkEquipment(rows []model.ScheduleRow, caseByID map[string]*model.CaseRecord) []ViolationDetail {
	type window struct{ start, end int }
	usage := make(map[string][]window)

	for _, row := range rows {
		if row.Emergency {
			continue
		}
		cs := caseByID[row.CaseID]
		if cs == nil {
			continue
		}
		// 设备占用为 [start, end)，不含清洁时间
		if cs.NeedsCArm {
			usage[model.EquipmentCArm] = append(usage[model.EquipmentCArm], window{row.StartMins, row.EndMins})
		}
		if cs.NeedsRobot {
			usage[model.EquipmentRobot] = append(usage[model.EquipmentRobot], window{row.StartMins, row.EndMins})
		}
	}

	var violations []ViolationDetail
	for name, windows := range usage {
		cap := c.Catalog.EquipmentCapacity(name)
		if cap <= 0 {
			cap = 1
		}
		// 事件扫描
		type event struct{ t, delta int }
		events := make([]event, 0, len(windows)*2)
		for _, w := range windows {
			events = append(events, event{w.start, 1}, event{w.end, -1})
		}
		sort.Slice(events, func(i, j int) bool {
			if events[i].t != events[j].t {
				return events[i].t < events[j].t
			}
			return events[i].delta < events[j].delta // 同一时刻先释放后占用
		})
		concurrent := 0
		for _, e := range events {
			concurrent += e.delta
			if concurrent > cap {
				violations = append(violations, ViolationDetail{
					Kind: ViolationEquipmentCap, Resource: name,
					Message: fmt.Sprintf("设备 %s 在 %s 并发占用 %d 超过容量 %d",
						name, model.FormatMinutes(e.t), concurrent, cap),
				})
				break
			}
		}
	}
	return violations
}
