package model

// ConstraintSet 病例的约束注解集合
// 只能由调度控制器通过命名操作修改，求解器按值读取。
// 版本号在每次修改时递增，便于排查修复事件的先后关系。
type ConstraintSet struct {
	ReadyNotBefore  int            `json:"ready_not_before"`           // 就绪时间下界（分钟），只升不降
	MinStartFloor   int            `json:"min_start_floor"`            // 下次求解的开始下界，防止把未来病例排进过去
	PinnedStart     *int           `json:"pinned_start,omitempty"`     // 已开始病例的固定开始时间
	PinnedRoom      string         `json:"pinned_room,omitempty"`      // 已开始病例的固定手术室
	RoomUnavailable map[string]int `json:"room_unavailable,omitempty"` // 按手术室生效的开始下界
	Version         int            `json:"version"`
}

// RaiseReadyNotBefore 抬高就绪时间下界（取最大值，保持单调）
func (c *ConstraintSet) RaiseReadyNotBefore(mins int) {
	if mins > c.ReadyNotBefore {
		c.ReadyNotBefore = mins
		c.Version++
	}
}

// SetMinStartFloor 设置开始时间下界
func (c *ConstraintSet) SetMinStartFloor(mins int) {
	if c.MinStartFloor != mins {
		c.MinStartFloor = mins
		c.Version++
	}
}

// Pin 固定开始时间和手术室
// 两个字段必须成对设置，求解器会将其作为硬等式约束
func (c *ConstraintSet) Pin(start int, room string) {
	s := start
	c.PinnedStart = &s
	c.PinnedRoom = room
	c.Version++
}

// Unpin 清除固定约束（成对清除）
func (c *ConstraintSet) Unpin() {
	if c.PinnedStart == nil && c.PinnedRoom == "" {
		return
	}
	c.PinnedStart = nil
	c.PinnedRoom = ""
	c.Version++
}

// IsPinned 检查是否已固定
func (c *ConstraintSet) IsPinned() bool {
	return c.PinnedStart != nil && c.PinnedRoom != ""
}

// MarkRoomUnavailable 记录手术室在指定时间前不可用（取最大值，保持单调）
func (c *ConstraintSet) MarkRoomUnavailable(room string, until int) {
	if c.RoomUnavailable == nil {
		c.RoomUnavailable = make(map[string]int)
	}
	if until > c.RoomUnavailable[room] {
		c.RoomUnavailable[room] = until
		c.Version++
	}
}

// RoomFloor 返回指定手术室的开始下界（未记录时为0）
func (c *ConstraintSet) RoomFloor(room string) int {
	return c.RoomUnavailable[room]
}

// EffectiveFloor 返回非固定病例的开始下界
func (c *ConstraintSet) EffectiveFloor() int {
	if c.MinStartFloor > c.ReadyNotBefore {
		return c.MinStartFloor
	}
	return c.ReadyNotBefore
}

// Clone 深拷贝约束集合
func (c *ConstraintSet) Clone() ConstraintSet {
	clone := *c
	if c.PinnedStart != nil {
		s := *c.PinnedStart
		clone.PinnedStart = &s
	}
	if c.RoomUnavailable != nil {
		clone.RoomUnavailable = make(map[string]int, len(c.RoomUnavailable))
		for k, v := range c.RoomUnavailable {
			clone.RoomUnavailable[k] = v
		}
	}
	return clone
}

// CaseRecord 病例记录
// 当日排台的可变状态：基础属性 + 跨事件累积的约束注解。
// 创建后在当日内不会删除，只会被调度控制器修改。
type CaseRecord struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Surgeon    string        `json:"surgeon,omitempty"`
	Duration   int           `json:"duration"` // 预估时长（分钟）
	RiskScore  int           `json:"risk_score"`
	NeedsCArm  bool          `json:"needs_c_arm,omitempty"`
	NeedsRobot bool          `json:"needs_robot,omitempty"`
	Emergency  bool          `json:"emergency,omitempty"` // 急诊直接预约的病例，不参与常规求解
	Constraints ConstraintSet `json:"constraints"`
}

// Clone 深拷贝病例记录
func (p *CaseRecord) Clone() *CaseRecord {
	clone := *p
	clone.Constraints = p.Constraints.Clone()
	return &clone
}
