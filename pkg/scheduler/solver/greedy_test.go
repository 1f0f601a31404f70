package solver

import (
	"testing"

	"github.com/paitai/paitai/pkg/catalog"
	"github.com/paitai/paitai/pkg/model"
	"github.com/paitai/paitai/pkg/scheduler/constraint"
)

func newCase(id, caseType, surgeon string, duration, risk int) *model.CaseRecord {
	return &model.CaseRecord{ID: id, Type: caseType, Surgeon: surgeon, Duration: duration, RiskScore: risk}
}

func place(t *testing.T, cases []*model.CaseRecord) (*constraint.Context, *Result) {
	t.Helper()
	ctx := constraint.NewContext(catalog.Default(), cases)
	models, _, err := ctx.Build()
	if err != nil {
		t.Fatalf("Build失败: %v", err)
	}
	result := NewGreedySolver().Place(ctx, models, DefaultOrdering(models))
	return ctx, result
}

func rowOf(t *testing.T, result *Result, caseID string) *model.ScheduleRow {
	t.Helper()
	for i := range result.Rows {
		if result.Rows[i].CaseID == caseID {
			return &result.Rows[i]
		}
	}
	t.Fatalf("结果中缺少病例 %s", caseID)
	return nil
}

func TestGreedySolver_ParallelRooms(t *testing.T) {
	ctx, result := place(t, []*model.CaseRecord{
		newCase("P-001", model.TypeGeneral, "Dr. House", 90, 2),
		newCase("P-002", model.TypeGeneral, "Dr. Bailey", 90, 2),
	})

	if !result.Feasible {
		t.Fatalf("应有可行解: %s", result.Message)
	}

	a, b := rowOf(t, result, "P-001"), rowOf(t, result, "P-002")
	if a.StartMins != 480 || b.StartMins != 480 {
		t.Errorf("不同医生不同手术室应并行开台: %d, %d", a.StartMins, b.StartMins)
	}
	if a.Room == b.Room {
		t.Errorf("并行病例不应共用手术室 %s", a.Room)
	}
	if violations := ctx.Validate(result.Rows); len(violations) != 0 {
		t.Errorf("方案存在违反: %+v", violations)
	}
}

func TestGreedySolver_SurgeonBreak(t *testing.T) {
	ctx, result := place(t, []*model.CaseRecord{
		newCase("P-001", model.TypeGeneral, "Dr. House", 90, 3),
		newCase("P-002", model.TypeGeneral, "Dr. House", 90, 2),
	})

	if !result.Feasible {
		t.Fatalf("应有可行解: %s", result.Message)
	}

	a, b := rowOf(t, result, "P-001"), rowOf(t, result, "P-002")
	if b.StartMins < a.EndMins+ctx.SurgeonBreak {
		t.Errorf("同一医生的第二台必须等待休息时间: %d < %d", b.StartMins, a.EndMins+ctx.SurgeonBreak)
	}
	if violations := ctx.Validate(result.Rows); len(violations) != 0 {
		t.Errorf("方案存在违反: %+v", violations)
	}
}

func TestGreedySolver_RoomTurnover(t *testing.T) {
	// 神经外科只有两间手术室，三台手术必然有同室接台
	ctx, result := place(t, []*model.CaseRecord{
		newCase("P-001", model.TypeNeurological, "Dr. Strange", 120, 4),
		newCase("P-002", model.TypeNeurological, "Dr. House", 120, 3),
		newCase("P-003", model.TypeNeurological, "Dr. Bailey", 120, 2),
	})

	if !result.Feasible {
		t.Fatalf("应有可行解: %s", result.Message)
	}
	if violations := ctx.Validate(result.Rows); len(violations) != 0 {
		t.Errorf("方案存在违反: %+v", violations)
	}

	// 同一手术室内相邻两台之间必须留出清洁时间
	byRoom := make(map[string][]*model.ScheduleRow)
	for i := range result.Rows {
		r := &result.Rows[i]
		byRoom[r.Room] = append(byRoom[r.Room], r)
	}
	for room, rs := range byRoom {
		for i := 1; i < len(rs); i++ {
			if rs[i].StartMins < rs[i-1].EndMins+ctx.Turnover {
				t.Errorf("手术室 %s 接台未留清洁时间: %d < %d", room, rs[i].StartMins, rs[i-1].EndMins+ctx.Turnover)
			}
		}
	}
}

func TestGreedySolver_RobotSerialized(t *testing.T) {
	a := newCase("P-001", model.TypeUrology, "Dr. House", 120, 3)
	a.NeedsRobot = true
	b := newCase("P-002", model.TypeUrology, "Dr. Bailey", 120, 2)
	b.NeedsRobot = true

	ctx, result := place(t, []*model.CaseRecord{a, b})
	if !result.Feasible {
		t.Fatalf("应有可行解: %s", result.Message)
	}

	ra, rb := rowOf(t, result, "P-001"), rowOf(t, result, "P-002")
	// 机器人只有一台，两台手术的占用区间不得交叠
	if ra.StartMins < rb.EndMins && rb.StartMins < ra.EndMins {
		t.Errorf("机器人手术必须串行: [%d,%d) 与 [%d,%d)", ra.StartMins, ra.EndMins, rb.StartMins, rb.EndMins)
	}
	if violations := ctx.Validate(result.Rows); len(violations) != 0 {
		t.Errorf("方案存在违反: %+v", violations)
	}
}

func TestGreedySolver_PinnedReproducedExactly(t *testing.T) {
	pinned := newCase("P-001", model.TypeGeneral, "Dr. House", 90, 2)
	pinned.Constraints.Pin(500, "OR-5 (General)")

	ctx, result := place(t, []*model.CaseRecord{
		pinned,
		newCase("P-002", model.TypeGeneral, "Dr. Bailey", 60, 3),
	})
	if !result.Feasible {
		t.Fatalf("应有可行解: %s", result.Message)
	}

	row := rowOf(t, result, "P-001")
	if row.StartMins != 500 || row.Room != "OR-5 (General)" {
		t.Errorf("固定病例未精确复现: %d @ %s", row.StartMins, row.Room)
	}
	if violations := ctx.Validate(result.Rows); len(violations) != 0 {
		t.Errorf("方案存在违反: %+v", violations)
	}
}

func TestGreedySolver_ConflictingPinsInfeasible(t *testing.T) {
	a := newCase("P-001", model.TypeGeneral, "Dr. House", 90, 2)
	a.Constraints.Pin(480, "OR-5 (General)")
	b := newCase("P-002", model.TypeGeneral, "Dr. Bailey", 90, 2)
	b.Constraints.Pin(500, "OR-5 (General)")

	_, result := place(t, []*model.CaseRecord{a, b})
	if result.Feasible {
		t.Fatal("冲突的固定约束应判定为无可行解")
	}
	if result.Message == "" {
		t.Error("无可行解应附带说明")
	}
}

func TestGreedySolver_FloorHonored(t *testing.T) {
	cs := newCase("P-001", model.TypeGeneral, "Dr. House", 90, 2)
	cs.Constraints.RaiseReadyNotBefore(600)

	_, result := place(t, []*model.CaseRecord{cs})
	if !result.Feasible {
		t.Fatalf("应有可行解: %s", result.Message)
	}
	if row := rowOf(t, result, "P-001"); row.StartMins < 600 {
		t.Errorf("开始时间 %d 早于就绪下界 600", row.StartMins)
	}
}

func TestGreedySolver_HorizonExceeded(t *testing.T) {
	_, result := place(t, []*model.CaseRecord{
		newCase("P-001", model.TypeGeneral, "Dr. House", 2000, 2),
	})
	if result.Feasible {
		t.Fatal("超出时域的病例应判定为无可行解")
	}
}

func TestDefaultOrdering(t *testing.T) {
	pinned := newCase("P-003", model.TypeGeneral, "Dr. Bailey", 60, 1)
	pinned.Constraints.Pin(480, "OR-5 (General)")

	cases := []*model.CaseRecord{
		newCase("P-001", model.TypeGeneral, "Dr. House", 90, 2),
		newCase("P-002", model.TypeGeneral, "Dr. Torres", 90, 5),
		pinned,
	}
	ctx := constraint.NewContext(catalog.Default(), cases)
	models, _, err := ctx.Build()
	if err != nil {
		t.Fatalf("Build失败: %v", err)
	}

	ord := DefaultOrdering(models)
	if !models[ord.Seq[0]].Pinned {
		t.Error("固定病例应排在决策序列最前")
	}
	// 其余按风险降序
	if models[ord.Seq[1]].Case.ID != "P-002" {
		t.Errorf("高风险病例应优先放置, got %s", models[ord.Seq[1]].Case.ID)
	}
}
