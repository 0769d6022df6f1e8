package solver

import (
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"

	"termsweeper/game"
)

// Board は Solver が読む盤面です (*game.Playfield が満たします)
type Board interface {
	Width() int
	Height() int
	Cell(index int) game.Cell
}

type MoveType int

const (
	MoveOpen MoveType = iota
	MoveFlag
)

func (t MoveType) String() string {
	if t == MoveFlag {
		return "flag"
	}
	return "open"
}

func (t MoveType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *MoveType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "open":
		*t = MoveOpen
	case "flag":
		*t = MoveFlag
	default:
		return errors.Errorf("unknown move type %q", b)
	}
	return nil
}

// Move は次の一手です。座標は1始まり
type Move struct {
	X          int      `json:"x"`
	Y          int      `json:"y"`
	Type       MoveType `json:"type"`
	IsGuess    bool     `json:"is_guess"`   // 運任せかどうか
	Strategy   string   `json:"strategy"`   // "Logic", "Tank", "Tank(Prob)", "Random"
	Confidence float64  `json:"confidence"` // 0.0 ~ 1.0 (安全確率)
}

type Solver struct {
	Board Board
	rng   *rand.Rand
}

// New は Solver を作ります。rng が nil なら現在時刻をシードにします
func New(b Board, rng *rand.Rand) *Solver {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Solver{Board: b, rng: rng}
}

// NextMove は次の一手を返します。打つ手がなければ nil
func (s *Solver) NextMove() *Move {
	// 1. 論理的に「絶対に安全」
	if move := s.findSafeMove(); move != nil {
		move.Strategy = "Logic"
		move.Confidence = 1.0
		return move
	}

	// 2. 論理的に「絶対に地雷」
	if move := s.findFlagMove(); move != nil {
		move.Strategy = "Logic"
		move.Confidence = 1.0
		return move
	}

	// 3. タンク (バックトラック)
	if move := NewTankSolver(s.Board).Solve(); move != nil {
		move.IsGuess = move.Confidence < 1.0
		return move
	}

	// 4. ランダム
	move := s.findRandomMove()
	if move != nil {
		move.IsGuess = true
	}
	return move
}

func (s *Solver) cell(x, y int) game.Cell {
	return s.Board.Cell(y*s.Board.Width() + x)
}

func (s *Solver) findSafeMove() *Move {
	for y := 0; y < s.Board.Height(); y++ {
		for x := 0; x < s.Board.Width(); x++ {
			c := s.cell(x, y)
			if c.State != game.Opened || c.Count == 0 {
				continue
			}
			_, flags, hidden := s.getNeighborsInfo(x, y)
			if flags == c.Count && len(hidden) > 0 {
				target := hidden[0]
				return &Move{X: target.x + 1, Y: target.y + 1, Type: MoveOpen}
			}
		}
	}
	return nil
}

func (s *Solver) findFlagMove() *Move {
	for y := 0; y < s.Board.Height(); y++ {
		for x := 0; x < s.Board.Width(); x++ {
			c := s.cell(x, y)
			if c.State != game.Opened || c.Count == 0 {
				continue
			}
			totalHidden, flags, hidden := s.getNeighborsInfo(x, y)
			if totalHidden == c.Count && totalHidden-flags > 0 {
				p := hidden[0]
				return &Move{X: p.x + 1, Y: p.y + 1, Type: MoveFlag}
			}
		}
	}
	return nil
}

func (s *Solver) findRandomMove() *Move {
	candidates := []pos{}
	for y := 0; y < s.Board.Height(); y++ {
		for x := 0; x < s.Board.Width(); x++ {
			if s.cell(x, y).State == game.Closed {
				candidates = append(candidates, pos{x, y})
			}
		}
	}

	if len(candidates) == 0 {
		return nil
	}
	choice := candidates[s.rng.IntN(len(candidates))]
	return &Move{
		X: choice.x + 1, Y: choice.y + 1,
		Type:       MoveOpen,
		Strategy:   "Random",
		Confidence: 0.0,
	}
}

type pos struct{ x, y int }

// getNeighborsInfo は周囲の未開封数 (フラグ含む)、フラグ数、フラグなし未開封マスを返します
func (s *Solver) getNeighborsInfo(cx, cy int) (totalHidden int, flags int, hiddenList []pos) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := cx+dx, cy+dy
			if nx >= 0 && nx < s.Board.Width() && ny >= 0 && ny < s.Board.Height() {
				switch s.cell(nx, ny).State {
				case game.Flagged:
					totalHidden++
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
