package optimizer

import (
	"math/rand"

	"github.com/paitai/paitai/pkg/scheduler/constraint"
	"github.com/paitai/paitai/pkg/scheduler/solver"
)

// neighborhoodGenerator 邻域生成器
// 三类移动：交换两个病例的放置顺序、把病例插入到新位置、改变病例的候选手术室。
// 固定病例的位置不参与扰动。
type neighborhoodGenerator struct {
	rng *rand.Rand
}

func newNeighborhoodGenerator(rng *rand.Rand) *neighborhoodGenerator {
	return &neighborhoodGenerator{rng: rng}
}

// batch 生成一批邻域决策序列
func (g *neighborhoodGenerator) batch(current *solver.Ordering, models []*constraint.CaseModel, count int) []*solver.Ordering {
	movable := movableIndexes(current, models)
	if len(movable) < 1 {
		return nil
	}

	neighbors := make([]*solver.Ordering, 0, count)
	for i := 0; i < count; i++ {
		if n := g.generate(current, models, movable); n != nil {
			neighbors = append(neighbors, n)
		}
	}
	return neighbors
}

// generate 生成单个邻域决策序列
func (g *neighborhoodGenerator) generate(current *solver.Ordering, models []*constraint.CaseModel, movable []int) *solver.Ordering {
	neighbor := current.Clone()

	switch g.rng.Intn(3) {
	case 0: // 交换两个可移动病例的顺序
		if len(movable) < 2 {
			return nil
		}
		a := movable[g.rng.Intn(len(movable))]
		b := movable[g.rng.Intn(len(movable))]
		if a == b {
			return nil
		}
		neighbor.Seq[a], neighbor.Seq[b] = neighbor.Seq[b], neighbor.Seq[a]

	case 1: // 把一个病例移动到新位置
		if len(movable) < 2 {
			return nil
		}
		from := movable[g.rng.Intn(len(movable))]
		to := movable[g.rng.Intn(len(movable))]
		if from == to {
			return nil
		}
		v := neighbor.Seq[from]
		if from < to {
			copy(neighbor.Seq[from:to], neighbor.Seq[from+1:to+1])
		} else {
			copy(neighbor.Seq[to+1:from+1], neighbor.Seq[to:from])
		}
		neighbor.Seq[to] = v

	default: // 改变候选手术室
		pos := movable[g.rng.Intn(len(movable))]
		idx := neighbor.Seq[pos]
		cm := models[idx]
		if len(cm.CandidateRooms) < 2 {
			return nil
		}
		pick := g.rng.Intn(len(cm.CandidateRooms))
		if existing, ok := neighbor.RoomPick[idx]; ok && existing == pick {
			delete(neighbor.RoomPick, idx)
		} else {
			neighbor.RoomPick[idx] = pick
		}
	}

	return neighbor
}

// movableIndexes 返回序列中非固定病例的位置
func movableIndexes(ord *solver.Ordering, models []*constraint.CaseModel) []int {
	var movable []int
	for pos, idx := range ord.Seq {
		if !models[idx].Pinned {
			movable = append(movable, pos)
		}
	}
	return movable
}
