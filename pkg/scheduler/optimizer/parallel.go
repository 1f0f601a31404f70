package optimizer

import (
	"context"
	"sync"

	"github.com/paitai/paitai/pkg/scheduler/constraint"
	"github.com/paitai/paitai/pkg/scheduler/solver"
)

// placementPool 并行放置评估池
// 纯性能优化：贪心放置是决策序列的纯函数，多工作协程并行评估邻域，
// 对外无可观察的顺序效应
type placementPool struct {
	workers int
	greedy  *solver.GreedySolver
}

func newPlacementPool(workers int, greedy *solver.GreedySolver) *placementPool {
	if workers <= 0 {
		workers = 4
	}
	return &placementPool{workers: workers, greedy: greedy}
}

// evaluateBatch 并行评估一批决策序列
func (p *placementPool) evaluateBatch(ctx context.Context, schedCtx *constraint.Context,
	models []*constraint.CaseModel, orderings []*solver.Ordering) []placement {

	if len(orderings) == 0 {
		return nil
	}

	jobs := make(chan int, len(orderings))
	results := make([]placement, len(orderings))

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results[i] = placement{
					ord:    orderings[i],
					result: p.greedy.Place(schedCtx, models, orderings[i]),
				}
			}
		}()
	}

	for i := range orderings {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
