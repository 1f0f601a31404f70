package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paitai/paitai/pkg/disruption"
	apperrors "github.com/paitai/paitai/pkg/errors"
	"github.com/paitai/paitai/pkg/model"
)

// ScheduleRepository 排台快照与事件仓储
// 实现控制器的 Store 接口：每次成功重排写入一条快照，每个扰动事件写入一条事件记录。
// 仓储只做审计留存，核心调度不读取历史数据。
type ScheduleRepository struct {
	db DB
}

// NewScheduleRepository 创建排台仓储
func NewScheduleRepository(db DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

var _ disruption.Store = (*ScheduleRepository)(nil)

// SaveSchedule 写入排台方案快照
func (r *ScheduleRepository) SaveSchedule(ctx context.Context, sched *model.Schedule) error {
	payload, err := json.Marshal(sched)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "序列化排台方案失败")
	}

	query := `
		INSERT INTO schedule_snapshots (solve_id, generated_at, makespan, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (solve_id) DO UPDATE SET payload = EXCLUDED.payload`

	if _, err := r.db.ExecContext(ctx, query,
		sched.SolveID, sched.GeneratedAt, sched.Makespan, payload); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "写入排台快照失败")
	}
	return nil
}

// SaveEvent 写入扰动事件记录
func (r *ScheduleRepository) SaveEvent(ctx context.Context, ev *disruption.EventRecord) error {
	var details []byte
	if ev.Details != nil {
		var err error
		details, err = json.Marshal(ev.Details)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "序列化事件详情失败")
		}
	}

	query := `
		INSERT INTO schedule_events (id, kind, case_id, event_mins, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	caseID := sql.NullString{String: ev.CaseID, Valid: ev.CaseID != ""}
	if _, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.Kind, caseID, ev.Now, details, ev.OccurredAt); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "写入事件记录失败")
	}
	return nil
}

// LatestSnapshot 读取最近一条排台快照
func (r *ScheduleRepository) LatestSnapshot(ctx context.Context) (*model.Schedule, error) {
	query := `
		SELECT payload FROM schedule_snapshots
		ORDER BY generated_at DESC LIMIT 1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.CodeNotFound, "没有排台快照")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取排台快照失败")
	}

	var sched model.Schedule
	if err := json.Unmarshal(payload, &sched); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "反序列化排台快照失败")
	}
	return &sched, nil
}

// ListEvents 按时间顺序读取事件记录
func (r *ScheduleRepository) ListEvents(ctx context.Context, limit int) ([]*disruption.EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, kind, case_id, event_mins, details, occurred_at
		FROM schedule_events
		ORDER BY occurred_at ASC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取事件记录失败")
	}
	defer rows.Close()

	var events []*disruption.EventRecord
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "遍历事件记录失败")
	}
	return events, nil
}

// scanEvent 扫描单条事件记录
func scanEvent(s Scanner) (*disruption.EventRecord, error) {
	var (
		ev      disruption.EventRecord
		id      uuid.UUID
		caseID  sql.NullString
		details []byte
		at      time.Time
	)
	if err := s.Scan(&id, &ev.Kind, &caseID, &ev.Now, &details, &at); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "扫描事件记录失败")
	}
	ev.ID = id
	ev.CaseID = caseID.String
	ev.OccurredAt = at
	if len(details) > 0 {
		if err := json.Unmarshal(details, &ev.Details); err != nil {
			return nil, fmt.Errorf("解析事件详情失败: %w", err)
		}
	}
	return &ev, nil
}
