package metric

import "math"

// solveAssignment finds the minimum-cost one-to-one assignment over a square
// cost matrix using the Hungarian algorithm with potentials (O(n^3)). Returns
// the column assigned to each row. Speaker counts per file are small, so an
// exact solution is cheap and keeps the metrics deterministic.
func solveAssignment(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}

	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0

			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	result := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			result[p[j]-1] = j - 1
		}
	}
	return result
}

// matchSpeakers computes the overlap-maximizing one-to-one mapping between
// reference and hypothesis speakers. The returned map holds, for each
// reference speaker index, the matched hypothesis speaker index; speakers
// matched to padding (or with no positive overlap) are absent.
func matchSpeakers(overlap [][]float64, numRef, numHyp int) map[int]int {
	size := numRef
	if numHyp > size {
		size = numHyp
	}
	if size == 0 {
		return map[int]int{}
	}

	// Pad to square and negate: minimizing -overlap maximizes total overlap.
	cost := make([][]float64, size)
	for i := range cost {
		cost[i] = make([]float64, size)
		for j := range cost[i] {
			if i < numRef && j < numHyp {
				cost[i][j] = -overlap[i][j]
			}
		}
	}

	assignment := solveAssignment(cost)

	mapping := make(map[int]int)
	for i := 0; i < numRef; i++ {
		j := assignment[i]
		if j < numHyp && overlap[i][j] > epsilon {
			mapping[i] = j
		}
	}
	return mapping
}
