package solver

import (
	"sort"

	"termsweeper/game"
)

// セグメントがこれより大きい場合は探索しません
const maxSegmentSize = 18

// TankSolver はバックトラック探索を行う構造体
type TankSolver struct {
	Board Board
}

func NewTankSolver(b Board) *TankSolver {
	return &TankSolver{Board: b}
}

// Solve はタンクアルゴリズムを実行し、確定した安全な手または地雷を返します
// 確定手がない場合は最も安全そうなマスを返します
func (ts *TankSolver) Solve() *Move {
	// 1. 境界マスを連結成分ごとにグループ化
	segments := ts.createSegments()

	var bestMove *Move
	bestProb := 1.0 // 1.0 = 地雷確率100% (最悪)

	for _, seg := range segments {
		if len(seg.unknowns) > maxSegmentSize {
			continue
		}

		solutions := ts.solveSegment(seg)
		if len(solutions) == 0 {
			continue // 解なし（矛盾）
		}

		// 各マスの地雷確率を計算
		counts := make([]int, len(seg.unknowns))
		for _, sol := range solutions {
			for i, isMine := range sol {
				if isMine {
					counts[i]++
				}
			}
		}

		total := float64(len(solutions))
		for i, count := range counts {
			prob := float64(count) / total
			p := seg.unknowns[i]

			if prob == 0.0 {
				return &Move{X: p.x + 1, Y: p.y + 1, Type: MoveOpen, Strategy: "Tank", Confidence: 1.0}
			}
			if prob == 1.0 {
				return &Move{X: p.x + 1, Y: p.y + 1, Type: MoveFlag, Strategy: "Tank", Confidence: 1.0}
			}

			if prob < bestProb {
				bestProb = prob
				bestMove = &Move{
					X: p.x + 1, Y: p.y + 1,
					Type:       MoveOpen,
					Strategy:   "Tank(Prob)",
					Confidence: 1.0 - prob,
				}
			}
		}
	}

	return bestMove
}

// --- セグメント（連結成分）管理 ---

type segment struct {
	unknowns []pos  // このセグメントに含まれる未開封マス
	rules    []rule // このセグメント内の数字マス制約
}

type rule struct {
	cells []int // unknownsのインデックスのリスト
	mines int   // 必要な地雷数
}

func (ts *TankSolver) cell(x, y int) game.Cell {
	return ts.Board.Cell(y*ts.Board.Width() + x)
}

func (ts *TankSolver) createSegments() []*segment {
	w := ts.Board.Width()

	// 1. 「数字マス」と「それに隣接する未開封マス」を列挙
	unknownMap := make(map[int]pos) // key: y*w+x
	numberedCells := []pos{}

	for y := 0; y < ts.Board.Height(); y++ {
		for x := 0; x < w; x++ {
			c := ts.cell(x, y)
			if c.State != game.Opened || c.Count == 0 {
				continue
			}
			_, flags, hidden := ts.getNeighbors(x, y)
			if flags == c.Count || len(hidden) == 0 {
				continue
			}
			for _, n := range hidden {
				unknownMap[n.y*w+n.x] = n
			}
			numberedCells = append(numberedCells, pos{x, y})
		}
	}

	// 2. 連結成分分解
	adj := make(map[int][]int)
	for _, numPos := range numberedCells {
		_, _, neighbors := ts.getNeighbors(numPos.x, numPos.y)
		for i := 0; i < len(neighbors)-1; i++ {
			u1 := neighbors[i].y*w + neighbors[i].x
			for j := i + 1; j < len(neighbors); j++ {
				u2 := neighbors[j].y*w + neighbors[j].x
				adj[u1] = append(adj[u1], u2)
				adj[u2] = append(adj[u2], u1)
			}
		}
	}

	// map の順序に依存しないようにキーを並べる
	keys := make([]int, 0, len(unknownMap))
	for k := range unknownMap {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	visited := make(map[int]bool)
	var segments []*segment

	for _, key := range keys {
		if visited[key] {
			continue
		}

		// BFSでグループ探索
		groupKeys := []int{}
		queue := []int{key}
		visited[key] = true

		for len(queue) > 0 {
			curr := queue[0]
			queue = queue[1:]
			groupKeys = append(groupKeys, curr)

			for _, neighbor := range adj[curr] {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}

		seg := &segment{unknowns: make([]pos, len(groupKeys))}
		localIndexMap := make(map[int]int)
		for i, k := range groupKeys {
			seg.unknowns[i] = unknownMap[k]
			localIndexMap[k] = i
		}

		// ルール生成
		for _, numPos := range numberedCells {
			_, flags, neighbors := ts.getNeighbors(numPos.x, numPos.y)

			// 連結しているので、最初の1つが含まれていれば全て含まれている
			firstKey := neighbors[0].y*w + neighbors[0].x
			if _, ok := localIndexMap[firstKey]; !ok {
				continue
			}
			r := rule{
				cells: make([]int, len(neighbors)),
				mines: ts.cell(numPos.x, numPos.y).Count - flags,
			}
			for i, n := range neighbors {
				r.cells[i] = localIndexMap[n.y*w+n.x]
			}
			seg.rules = append(seg.rules, r)
		}
		segments = append(segments, seg)
	}

	return segments
}

// --- 探索ロジック ---

func (ts *TankSolver) solveSegment(seg *segment) [][]bool {
	solutions := [][]bool{}
	config := make([]bool, len(seg.unknowns))
	ts.backtrack(seg, 0, config, &solutions)
	return solutions
}

func (ts *TankSolver) backtrack(seg *segment, index int, config []bool, solutions *[][]bool) {
	if !ts.isValid(seg, config, index) {
		return
	}
	if index == len(seg.unknowns) {
		sol := make([]bool, len(config))
		copy(sol, config)
		*solutions = append(*solutions, sol)
		return
	}

	// 仮定1: 地雷
	config[index] = true
	ts.backtrack(seg, index+1, config, solutions)

	// 仮定2: 安全
	config[index] = false
	ts.backtrack(seg, index+1, config, solutions)
}

// isValid は index 番目より前が決定済みとして制約を検査します
// 全て決定済みなら地雷数の一致を、途中なら「超過」と「不足」を枝刈りします
func (ts *TankSolver) isValid(seg *segment, config []bool, index int) bool {
	for _, r := range seg.rules {
		mines, undecided := 0, 0
		for _, idx := range r.cells {
			switch {
			case idx >= index:
				undecided++
			case config[idx]:
				mines++
			}
		}
		if mines > r.mines || mines+undecided < r.mines {
			return false
		}
	}
	return true
}

// getNeighbors は周囲のフラグなし未開封数、フラグ数、フラグなし未開封マスを返します
func (ts *TankSolver) getNeighbors(cx, cy int) (totalHidden int, flags int, hiddenList []pos) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := cx+dx, cy+dy
			if nx >= 0 && nx < ts.Board.Width() && ny >= 0 && ny < ts.Board.Height() {
				switch ts.cell(nx, ny).State {
				case game.Flagged:
					flags++
				case game.Closed:
					totalHidden++
					hiddenList = append(hiddenList, pos{nx, ny})
				}
			}
		}
	}
	return
}
