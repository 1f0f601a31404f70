// Package optimizer 提供有界时间的并行局部搜索
// 在贪心放置的决策序列空间上搜索，目标为 makespan 加风险加权开始时间之和。
// 每次求解受墙钟截止时间约束：超时返回当前最优可行解，不提供最优性保证。
package optimizer

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/paitai/paitai/pkg/errors"
	"github.com/paitai/paitai/pkg/logger"
	"github.com/paitai/paitai/pkg/scheduler/constraint"
	"github.com/paitai/paitai/pkg/scheduler/solver"
)

// Config 优化配置
type Config struct {
	Deadline         time.Duration `json:"deadline"`          // 墙钟截止时间
	Workers          int           `json:"workers"`           // 并行评估工作协程数
	NeighborhoodSize int           `json:"neighborhood_size"` // 每轮邻域大小
	MaxIterations    int           `json:"max_iterations"`
	InitialTemp      float64       `json:"initial_temp"`  // 模拟退火初始温度
	CoolingRate      float64       `json:"cooling_rate"`  // 冷却速率
	PlateauThreshold int           `json:"plateau_threshold"` // 无改进轮数上限
}

// DefaultConfig 默认优化配置（与30秒/8工作协程的求解预算对齐）
func DefaultConfig() *Config {
	return &Config{
		Deadline:         30 * time.Second,
		Workers:          8,
		NeighborhoodSize: 24,
		MaxIterations:    2000,
		InitialTemp:      120.0,
		CoolingRate:      0.995,
		PlateauThreshold: 200,
	}
}

// Optimizer 排台优化器
type Optimizer struct {
	cfg    *Config
	greedy *solver.GreedySolver
	log    *logger.SolverLogger
	rng    *rand.Rand
}

// New 创建优化器
func New(cfg *Config) *Optimizer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Optimizer{
		cfg:    cfg,
		greedy: solver.NewGreedySolver(),
		log:    logger.NewSolverLogger(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Solve 执行一次完整求解
// 返回排台结果；模型矛盾（如固定约束冲突）时返回无可行解错误，
// 调用方必须保留原有方案
func (o *Optimizer) Solve(ctx context.Context, schedCtx *constraint.Context) (*solver.Result, error) {
	solveID := uuid.New().String()
	start := time.Now()

	models, waitlisted, err := schedCtx.Build()
	if err != nil {
		o.log.SolveInfeasible(solveID, err.Error())
		return nil, apperrors.NoFeasibleSolution(err.Error()).WithCause(err)
	}
	for _, w := range waitlisted {
		o.log.CaseWaitlisted(w.CaseID, w.Reason)
	}

	pinned := 0
	for _, m := range models {
		if m.Pinned {
			pinned++
		}
	}
	o.log.StartSolve(solveID, len(models), pinned)

	deadlineCtx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	currentOrd := solver.DefaultOrdering(models)
	current := o.greedy.Place(schedCtx, models, currentOrd)
	if !current.Feasible {
		o.log.SolveInfeasible(solveID, current.Message)
		return nil, apperrors.NoFeasibleSolution(current.Message)
	}

	best := current
	temperature := o.cfg.InitialTemp
	noImprovement := 0

	pool := newPlacementPool(o.cfg.Workers, o.greedy)
	gen := newNeighborhoodGenerator(o.rng)

search:
	for iter := 0; iter < o.cfg.MaxIterations; iter++ {
		select {
		case <-deadlineCtx.Done():
			break search
		default:
		}

		candidates := gen.batch(currentOrd, models, o.cfg.NeighborhoodSize)
		if len(candidates) == 0 {
			break
		}

		evaluated := pool.evaluateBatch(deadlineCtx, schedCtx, models, candidates)
		bestNeighbor := pickBest(evaluated)
		if bestNeighbor == nil {
			continue
		}

		// 模拟退火接受准则：更优解总是接受，较差解按温度概率接受
		accept := bestNeighbor.result.Objective < current.Objective
		if !accept {
			delta := float64(bestNeighbor.result.Objective - current.Objective)
			if temperature > 0 && o.rng.Float64() < math.Exp(-delta/temperature) {
				accept = true
			}
		}

		if accept {
			currentOrd, current = bestNeighbor.ord, bestNeighbor.result
			if current.Objective < best.Objective {
				best = current
				noImprovement = 0
			} else {
				noImprovement++
			}
		} else {
			noImprovement++
		}

		if noImprovement >= o.cfg.PlateauThreshold {
			break
		}
		temperature *= o.cfg.CoolingRate
	}

	best.Waitlisted = waitlisted
	best.Elapsed = time.Since(start)

	makespan := 0
	for i := range best.Rows {
		if best.Rows[i].EndMins > makespan {
			makespan = best.Rows[i].EndMins
		}
	}
	o.log.SolveComplete(solveID, best.Elapsed, best.Objective, makespan)

	return best, nil
}

// placement 决策序列与其评估结果
type placement struct {
	ord    *solver.Ordering
	result *solver.Result
}

// pickBest 从评估结果中取目标值最低的可行解
func pickBest(evaluated []placement) *placement {
	var best *placement
	for i := range evaluated {
		p := &evaluated[i]
		if p.result == nil || !p.result.Feasible {
			continue
		}
		if best == nil || p.result.Objective < best.result.Objective {
			best = p
		}
	}
	return best
}
