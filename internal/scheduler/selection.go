package scheduler

import (
	"math"
	"sort"
)

// SoftmaxWeights 把适应度转换为选择概率
// 先减去最大值再取指数，避免溢出；指数和退化时返回均匀分布
func SoftmaxWeights(scores []float64) []float64 {
	if len(scores) == 0 {
		return []float64{}
	}

	maxScore := scores[0]
	for _, score := range scores[1:] {
		if score > maxScore {
			maxScore = score
		}
	}

	weights := make([]float64, len(scores))
	total := 0.0
	for i, score := range scores {
		weights[i] = math.Exp(score - maxScore)
		total += weights[i]
	}

	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		for i := range weights {
			weights[i] = 1.0 / float64(len(weights))
		}
		return weights
	}

	for i := range weights {
		weights[i] /= total
	}
	return weights
}

// samplePairs 按概率有放回地抽取 n 对父本，同一张排课表可以同时作为一对中的两个父本
func (s *Scheduler) samplePairs(pop []*Schedule, probabilities []float64, n int) [][2]*Schedule {
	if len(pop) == 0 || n <= 0 {
		return nil
	}

	cumulative := make([]float64, len(probabilities))
	sum := 0.0
	for i, p := range probabilities {
		sum += p
		cumulative[i] = sum
	}

	pairs := make([][2]*Schedule, n)
	for i := range pairs {
		pairs[i] = [2]*Schedule{
			pop[s.pick(cumulative)],
			pop[s.pick(cumulative)],
		}
	}
	return pairs
}

// 使用累积分布加二分查找进行带权抽样
func (s *Scheduler) pick(cumulative []float64) int {
	n := len(cumulative)
	spin := s.rng.Float64() * cumulative[n-1]
	i := sort.Search(n, func(i int) bool { return cumulative[i] > spin })
	if i >= n {
		// 浮点误差导致没有找到时，返回最后一个
		return n - 1
	}
	return i
}

// elites 返回适应度最高的 k 张排课表的深拷贝，适应度相同时保持种群中的先后顺序
func elites(pop []*Schedule, scores []float64, k int) []*Schedule {
	k = min(k, len(pop))
	if k <= 0 {
		return []*Schedule{}
	}

	order := make([]int, len(pop))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	result := make([]*Schedule, k)
	for i := 0; i < k; i++ {
		result[i] = pop[order[i]].Clone()
	}
	return result
}
