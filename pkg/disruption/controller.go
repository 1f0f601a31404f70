// Package disruption 提供当日扰动调度控制器
// 控制器独占持有病例集合与最近一次排台方案，所有修改只能通过命名事件操作进行，
// 事件串行处理（含嵌套求解），这是固定/下界不变式成立的前提。
package disruption

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paitai/paitai/pkg/catalog"
	apperrors "github.com/paitai/paitai/pkg/errors"
	"github.com/paitai/paitai/pkg/logger"
	"github.com/paitai/paitai/pkg/model"
	"github.com/paitai/paitai/pkg/predictor"
	"github.com/paitai/paitai/pkg/scheduler/constraint"
	"github.com/paitai/paitai/pkg/scheduler/optimizer"
)

// 延迟原因（决定影响范围）
const (
	ReasonSurgeonLate     = "Surgeon Running Late" // 该医生的全部病例延迟
	ReasonRoomCleaning    = "Room Cleaning"        // 该手术室的全部病例延迟
	ReasonRoomNotReady    = "OT Not Ready"         // 同上
	ReasonPatientNotReady = "Patient Not Ready"    // 仅该病例延迟
	ReasonEquipmentIssue  = "Equipment Issue"      // 仅该病例延迟
	ReasonOther           = "Other"                // 仅该病例延迟
)

// EventRecord 扰动事件记录（用于持久化审计）
type EventRecord struct {
	ID         uuid.UUID      `json:"id"`
	Kind       string         `json:"kind"`
	CaseID     string         `json:"case_id,omitempty"`
	Now        int            `json:"now"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Store 排台持久化接口（可选，nil 表示不持久化）
type Store interface {
	SaveSchedule(ctx context.Context, sched *model.Schedule) error
	SaveEvent(ctx context.Context, ev *EventRecord) error
}

// Observer 运行指标观察接口（可选，nil 表示不上报）
type Observer interface {
	ObserveSolve(feasible bool, elapsed time.Duration)
	ObserveSchedule(rows, waitlisted, makespan int)
	ObserveEvent(kind string)
}

// Controller 扰动调度控制器
type Controller struct {
	mu sync.Mutex

	catalog *catalog.Catalog
	pred    predictor.Predictor
	opt     *optimizer.Optimizer
	store   Store
	obs     Observer
	log     *logger.ControllerLogger

	dayStart     int
	horizon      int
	turnover     int
	surgeonBreak int
	riskWeight   int

	cases         []*model.CaseRecord
	caseByID      map[string]*model.CaseRecord
	schedule      *model.Schedule     // 最近一次方案（含急诊行）
	emergencyRows []model.ScheduleRow // 急诊直接预约行，跨重排保留
	now           int                 // 时间游标（由事件外部提供，只前进不回退）
	started       bool
}

// Option 控制器选项
type Option func(*Controller)

// WithStore 启用持久化
func WithStore(s Store) Option {
	return func(c *Controller) { c.store = s }
}

// WithObserver 启用运行指标上报
func WithObserver(obs Observer) Option {
	return func(c *Controller) { c.obs = obs }
}

// WithTiming 覆盖运营时间参数
func WithTiming(dayStart, horizon, turnover, surgeonBreak int) Option {
	return func(c *Controller) {
		c.dayStart = dayStart
		c.horizon = horizon
		c.turnover = turnover
		c.surgeonBreak = surgeonBreak
	}
}

// WithRiskWeight 覆盖风险权重
func WithRiskWeight(w int) Option {
	return func(c *Controller) { c.riskWeight = w }
}

// NewController 创建扰动调度控制器
func NewController(cat *catalog.Catalog, pred predictor.Predictor, opt *optimizer.Optimizer, opts ...Option) *Controller {
	c := &Controller{
		catalog:      cat,
		pred:         pred,
		opt:          opt,
		log:          logger.NewControllerLogger(),
		dayStart:     catalog.DefaultDayStart,
		horizon:      catalog.DefaultHorizon,
		turnover:     catalog.DefaultTurnover,
		surgeonBreak: catalog.DefaultSurgeonBreak,
		riskWeight:   2,
		caseByID:     make(map[string]*model.CaseRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartDay 开始当日排台：接收病例集合并产出首个方案
func (c *Controller) StartDay(ctx context.Context, cases []*model.CaseRecord) (*model.Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(cases) == 0 {
		return nil, apperrors.InvalidInput("cases", "病例列表为空")
	}
	byID := make(map[string]*model.CaseRecord, len(cases))
	for _, cs := range cases {
		if cs.ID == "" {
			return nil, apperrors.InvalidInput("case_id", "病例ID不能为空")
		}
		if _, dup := byID[cs.ID]; dup {
			return nil, apperrors.InvalidInput("case_id", "病例ID重复: "+cs.ID)
		}
		byID[cs.ID] = cs
	}

	c.cases = cases
	c.caseByID = byID
	c.emergencyRows = nil
	c.schedule = nil
	c.now = c.dayStart
	c.started = true

	c.log.Event("day_start", "", c.now)
	c.recordEvent(ctx, "day_start", "", c.now, map[string]any{"cases": len(cases)})

	if err := c.resolve(ctx); err != nil {
		c.started = false
		return nil, err
	}
	return c.schedule.Clone(), nil
}

// DurationAdjust 处理时长变更事件（正负均可）
// 重排前固定已开始的病例、释放未来病例；重排失败时保留原方案并返回错误
func (c *Controller) DurationAdjust(ctx context.Context, caseID string, deltaMinutes, now int) (*model.Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 先完成全部校验，再做任何修改
	cs, err := c.validateEvent(caseID, now)
	if err != nil {
		return nil, err
	}
	if cs.Duration+deltaMinutes <= 0 {
		return nil, apperrors.InvalidInput("delta_minutes",
			"调整后的时长必须为正")
	}

	c.log.Event("duration_adjust", caseID, now)
	c.recordEvent(ctx, "duration_adjust", caseID, now, map[string]any{"delta": deltaMinutes})

	cs.Duration += deltaMinutes
	c.now = now
	c.repinAtCursor()

	if err := c.resolve(ctx); err != nil {
		c.log.KeepPrevious(err.Error())
		return c.schedule.Clone(), err
	}
	return c.schedule.Clone(), nil
}

// StartDelay 处理开始延迟事件
// 原因决定影响范围：医生迟到波及其全部病例，手术室未就绪波及该手术室，
// 其余原因只影响指定病例
func (c *Controller) StartDelay(ctx context.Context, caseID, reason string, readyAt, now int, room string) (*model.Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs, err := c.validateEvent(caseID, now)
	if err != nil {
		return nil, err
	}
	if readyAt < 0 || readyAt >= c.horizon {
		return nil, apperrors.InvalidInput("ready_at", "就绪时间超出当日时域")
	}
	roomScoped := reason == ReasonRoomCleaning || reason == ReasonRoomNotReady
	if roomScoped {
		if room == "" {
			return nil, apperrors.InvalidInput("room", "手术室延迟事件必须指定手术室")
		}
		if c.catalog.RoomByName(room) == nil {
			return nil, apperrors.InvalidInput("room", "未知手术室: "+room)
		}
	}

	c.log.Event("start_delay", caseID, now)
	c.recordEvent(ctx, "start_delay", caseID, now, map[string]any{
		"reason": reason, "ready_at": readyAt, "room": room,
	})

	switch {
	case reason == ReasonSurgeonLate:
		// 医生不可用：其名下全部病例的就绪时间抬高
		for _, p := range c.cases {
			if !p.Emergency && p.Surgeon == cs.Surgeon {
				p.Constraints.RaiseReadyNotBefore(readyAt)
			}
		}
	case roomScoped:
		// 手术室不可用：对所有病例记录该手术室的开始下界，
		// 只在后续求解选中该手术室时生效
		for _, p := range c.cases {
			if !p.Emergency {
				p.Constraints.MarkRoomUnavailable(room, readyAt)
			}
		}
	default:
		// 病例级延迟：医生仍可执行其他手术
		cs.Constraints.RaiseReadyNotBefore(readyAt)
	}

	c.now = now
	c.repinAtCursor()

	if err := c.resolve(ctx); err != nil {
		c.log.KeepPrevious(err.Error())
		return c.schedule.Clone(), err
	}
	return c.schedule.Clone(), nil
}

// CodeRed 急诊直接预约：完全绕过求解器
// 备班医生和急诊手术室专门保留，该通道不会因资源冲突失败；
// 预测服务失败时使用兜底时长
func (c *Controller) CodeRed(ctx context.Context, attrs predictor.Attributes, now int) (*model.Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if attrs.PatientID == "" {
		return nil, apperrors.InvalidInput("patient_id", "病例ID不能为空")
	}
	if attrs.SurgeryType == "" {
		return nil, apperrors.InvalidInput("surgery_type", "手术类型不能为空")
	}
	if now < 0 || now >= c.horizon {
		return nil, apperrors.InvalidInput("now", "事件时间超出当日时域")
	}
	if c.started && now < c.now {
		return nil, apperrors.EventOutOfOrder(now, c.now)
	}
	if _, exists := c.caseByID[attrs.PatientID]; exists {
		return nil, apperrors.InvalidInput("patient_id", "病例ID重复: "+attrs.PatientID)
	}

	c.log.Event("code_red", attrs.PatientID, now)
	c.recordEvent(ctx, "code_red", attrs.PatientID, now, map[string]any{"type": attrs.SurgeryType})

	duration := predictor.PredictOrFallback(c.pred, attrs)
	surgeon := c.catalog.ReserveSurgeon(attrs.SurgeryType)
	room := c.catalog.EmergencyRoom()

	risk := attrs.ASAScore
	if risk == 0 {
		risk = 3 // 急诊病例默认高风险
	}

	// 急诊病例直接进入已开始状态，之后不再经由本控制器流转
	cs := &model.CaseRecord{
		ID:        attrs.PatientID,
		Type:      attrs.SurgeryType,
		Surgeon:   surgeon,
		Duration:  duration,
		RiskScore: risk,
		Emergency: true,
	}
	cs.Constraints.Pin(now, room.Name)
	c.cases = append(c.cases, cs)
	c.caseByID[cs.ID] = cs

	row := model.ScheduleRow{
		CaseID:    cs.ID,
		Type:      cs.Type,
		Surgeon:   surgeon,
		Room:      room.Name,
		StartMins: now,
		EndMins:   now + duration,
		Duration:  duration,
		Risk:      risk,
		Emergency: true,
	}
	c.emergencyRows = append(c.emergencyRows, row)

	if c.schedule == nil {
		c.schedule = &model.Schedule{SolveID: uuid.New(), GeneratedAt: time.Now()}
		c.started = true
	} else {
		c.schedule = c.schedule.Clone()
		c.schedule.SolveID = uuid.New()
		c.schedule.GeneratedAt = time.Now()
	}
	if now > c.now {
		c.now = now
	}

	// 直接并入现有方案并重排序，不触发求解
	c.schedule.Rows = append(c.schedule.Rows, row)
	c.schedule.SortRows()
	c.schedule.RecalcMakespan()
	if c.obs != nil {
		c.obs.ObserveSchedule(len(c.schedule.Rows), len(c.schedule.Waitlisted), c.schedule.Makespan)
	}
	c.persistSchedule(ctx)

	return c.schedule.Clone(), nil
}

// CurrentSchedule 返回最近一次方案的拷贝
func (c *Controller) CurrentSchedule() (*model.Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schedule == nil {
		return nil, apperrors.ErrDayNotStarted
	}
	return c.schedule.Clone(), nil
}

// Now 返回当前时间游标
func (c *Controller) Now() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// CaseSnapshot 返回病例记录的拷贝（用于查询约束注解状态）
func (c *Controller) CaseSnapshot(caseID string) (*model.CaseRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs, ok := c.caseByID[caseID]
	if !ok {
		return nil, apperrors.CaseNotFound(caseID)
	}
	return cs.Clone(), nil
}

// validateEvent 事件公共校验：未通过前不做任何修改
func (c *Controller) validateEvent(caseID string, now int) (*model.CaseRecord, error) {
	if !c.started {
		return nil, apperrors.ErrDayNotStarted
	}
	if now < 0 || now >= c.horizon {
		return nil, apperrors.InvalidInput("now", "事件时间超出当日时域")
	}
	if now < c.now {
		return nil, apperrors.EventOutOfOrder(now, c.now)
	}
	cs, ok := c.caseByID[caseID]
	if !ok {
		return nil, apperrors.CaseNotFound(caseID)
	}
	if cs.Emergency {
		return nil, apperrors.InvalidInput("case_id", "急诊病例不经由常规事件流转")
	}
	return cs, nil
}

// repinAtCursor 修复协议的核心：固定过去、释放未来
// 上次方案中开始时间早于游标的病例已在现实中开始，必须原样复现；
// 未来病例解除固定，并把开始下界抬到游标处，防止被排进过去
func (c *Controller) repinAtCursor() {
	if c.schedule == nil {
		return
	}
	pinned, freed := 0, 0
	for _, cs := range c.cases {
		if cs.Emergency {
			continue
		}
		row := c.schedule.RowByCase(cs.ID)
		if row == nil {
			// 等待列表中的病例没有结果行，保持原状
			continue
		}
		if row.StartMins < c.now {
			cs.Constraints.Pin(row.StartMins, row.Room)
			pinned++
		} else {
			cs.Constraints.Unpin()
			cs.Constraints.SetMinStartFloor(c.now)
			freed++
		}
	}
	c.log.Repin(pinned, freed, c.now)
}

// resolve 重建约束模型并求解；成功后急诊行并回方案
func (c *Controller) resolve(ctx context.Context) error {
	schedCtx := &constraint.Context{
		Catalog:      c.catalog,
		Cases:        c.cases,
		DayStart:     c.dayStart,
		Horizon:      c.horizon,
		Turnover:     c.turnover,
		SurgeonBreak: c.surgeonBreak,
		RiskWeight:   c.riskWeight,
	}

	start := time.Now()
	res, err := c.opt.Solve(ctx, schedCtx)
	if c.obs != nil {
		c.obs.ObserveSolve(err == nil, time.Since(start))
	}
	if err != nil {
		return err
	}

	sched := &model.Schedule{
		SolveID:     uuid.New(),
		Rows:        make([]model.ScheduleRow, 0, len(res.Rows)+len(c.emergencyRows)),
		Waitlisted:  res.Waitlisted,
		GeneratedAt: time.Now(),
	}
	sched.Rows = append(sched.Rows, res.Rows...)
	sched.Rows = append(sched.Rows, c.emergencyRows...)
	sched.SortRows()
	sched.RecalcMakespan()

	c.schedule = sched
	if c.obs != nil {
		c.obs.ObserveSchedule(len(sched.Rows), len(sched.Waitlisted), sched.Makespan)
	}
	c.persistSchedule(ctx)
	return nil
}

// persistSchedule 持久化方案快照（尽力而为，失败不影响排台）
func (c *Controller) persistSchedule(ctx context.Context) {
	if c.store == nil || c.schedule == nil {
		return
	}
	if err := c.store.SaveSchedule(ctx, c.schedule); err != nil {
		logger.Warn().Err(err).Msg("排台方案持久化失败")
	}
}

// recordEvent 上报并持久化事件记录（尽力而为）
func (c *Controller) recordEvent(ctx context.Context, kind, caseID string, now int, details map[string]any) {
	if c.obs != nil {
		c.obs.ObserveEvent(kind)
	}
	if c.store == nil {
		return
	}
	ev := &EventRecord{
		ID:         uuid.New(),
		Kind:       kind,
		CaseID:     caseID,
		Now:        now,
		Details:    details,
		OccurredAt: time.Now(),
	}
	if err := c.store.SaveEvent(ctx, ev); err != nil {
		logger.Warn().Err(err).Str("kind", kind).Msg("事件记录持久化失败")
	}
}
