package game

import (
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
)

// MaxCells は1つの盤面で扱えるマス数の上限です
const MaxCells = 1 << 20

// Playfield は盤面全体を持ちます
// 地雷・開封・フラグを3本の配列 (row*width + col) で管理します
type Playfield struct {
	width    int
	height   int
	mines    int
	mine     []bool
	open     []bool
	flagged  []bool
	gameOver bool
	state    GameState
}

// New は指定されたサイズと地雷数で盤面を初期化して返します
// rng が nil の場合は現在時刻をシードにします
func New(width, height, mines int, rng *rand.Rand) (*Playfield, error) {
	p, err := alloc(width, height)
	if err != nil {
		return nil, err
	}
	if mines < 0 || mines > width*height {
		return nil, errors.Wrapf(ErrTooManyMines, "%d mines on a %dx%d board", mines, width, height)
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	p.placeMines(mines, rng)
	return p, nil
}

// NewFromMines は地雷の位置を指定して盤面を作ります (再現用)
func NewFromMines(width, height int, mines []Pos) (*Playfield, error) {
	p, err := alloc(width, height)
	if err != nil {
		return nil, err
	}
	for _, m := range mines {
		i, err := p.indexFromCoord(m.X, m.Y)
		if err != nil {
			return nil, err
		}
		if p.mine[i] {
			return nil, errors.Wrapf(ErrTooManyMines, "duplicate mine at (%d, %d)", m.X, m.Y)
		}
		p.mine[i] = true
		p.mines++
	}
	return p, nil
}

func alloc(width, height int) (*Playfield, error) {
	if width < 1 || height < 1 {
		return nil, errors.Wrapf(ErrInvalidDimensions, "%dx%d", width, height)
	}
	// width*height を計算する前に割り算で上限と比べる
	if width > MaxCells/height {
		return nil, errors.Wrapf(ErrInvalidDimensions, "%dx%d exceeds %d cells", width, height, MaxCells)
	}
	size := width * height
	return &Playfield{
		width:   width,
		height:  height,
		mine:    make([]bool, size),
		open:    make([]bool, size),
		flagged: make([]bool, size),
	}, nil
}

// placeMines は地雷をランダムに配置します
func (p *Playfield) placeMines(count int, rng *rand.Rand) {
	size := len(p.mine)
	for p.mines < count {
		i := rng.IntN(size)
		if !p.mine[i] {
			p.mine[i] = true
			p.mines++
		}
	}
}

func (p *Playfield) indexFromCoord(x, y int) (int, error) {
	if x < 1 || x > p.width {
		return 0, errors.Wrapf(ErrInvalidCoordinate, "x=%d not in 1..%d", x, p.width)
	}
	if y < 1 || y > p.height {
		return 0, errors.Wrapf(ErrInvalidCoordinate, "y=%d not in 1..%d", y, p.height)
	}
	return (y-1)*p.width + (x - 1), nil
}

func (p *Playfield) coordFromIndex(i int) (int, int, error) {
	if i < 0 || i >= len(p.mine) {
		return 0, 0, errors.Errorf("invalid index %d", i)
	}
	return i%p.width + 1, i/p.width + 1, nil
}

// validNeighbors は盤面内にある周囲8マスを決まった順序で返します
func (p *Playfield) validNeighbors(x, y int) []Pos {
	candidates := [8]Pos{
		{x - 1, y - 1}, {x, y - 1}, {x + 1, y - 1},
		{x - 1, y}, {x + 1, y},
		{x - 1, y + 1}, {x, y + 1}, {x + 1, y + 1},
	}
	out := make([]Pos, 0, 8)
	for _, c := range candidates {
		if _, err := p.indexFromCoord(c.X, c.Y); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// minesAround は周囲8マスの地雷数を数えます
func (p *Playfield) minesAround(i int) int {
	x, y, err := p.coordFromIndex(i)
	if err != nil {
		return 0
	}
	count := 0
	for _, n := range p.validNeighbors(x, y) {
		if p.mine[(n.Y-1)*p.width+(n.X-1)] {
			count++
		}
	}
	return count
}

// Open は指定された座標のマスを開けます
// 地雷を踏んだら Lose を返します。Open で Win になることはありません
func (p *Playfield) Open(x, y int) (GameState, error) {
	i, err := p.indexFromCoord(x, y)
	if err != nil {
		return KeepPlaying, err
	}
	if p.flagged[i] {
		return KeepPlaying, errors.Wrapf(ErrCannotOpenFlagged, "(%d, %d)", x, y)
	}
	if p.mine[i] {
		p.gameOver = true
		p.state = Lose
		return Lose, nil
	}
	if p.open[i] {
		return KeepPlaying, errors.Wrapf(ErrAlreadyOpen, "(%d, %d)", x, y)
	}

	p.reveal(i)
	return KeepPlaying, nil
}

// reveal は0連鎖 (Flood Fill) をスタックで行います
func (p *Playfield) reveal(start int) {
	stack := []int{start}
	p.open[start] = true

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.minesAround(i) != 0 {
			continue
		}
		x, y, _ := p.coordFromIndex(i)
		for _, n := range p.validNeighbors(x, y) {
			j := (n.Y-1)*p.width + (n.X - 1)
			if p.open[j] || p.mine[j] || p.flagged[j] {
				continue
			}
			p.open[j] = true
			stack = append(stack, j)
		}
	}
}

// ToggleFlag は指定された座標のフラグを切り替えます
// 立てても外しても、フラグの集合が地雷の集合と一致したら Win を返します
// 地雷0個の盤面はフラグでは勝てません
func (p *Playfield) ToggleFlag(x, y int) (GameState, error) {
	i, err := p.indexFromCoord(x, y)
	if err != nil {
		return KeepPlaying, err
	}
	if p.open[i] {
		return KeepPlaying, errors.Wrapf(ErrCannotFlagOpen, "(%d, %d)", x, y)
	}

	p.flagged[i] = !p.flagged[i]
	if p.mines > 0 && p.allMinesFlagged() {
		p.gameOver = true
		p.state = Win
		return Win, nil
	}
	return KeepPlaying, nil
}

func (p *Playfield) allMinesFlagged() bool {
	for i := range p.mine {
		if p.mine[i] != p.flagged[i] {
			return false
		}
	}
	return true
}

// Cell は描画用にマスの状態を返します
// 優先順位: 開封 > フラグ > (ゲーム終了時の) 地雷 > 未開封
func (p *Playfield) Cell(i int) Cell {
	switch {
	case i < 0 || i >= len(p.open):
		return Cell{State: Closed}
	case p.open[i]:
		return Cell{State: Opened, Count: p.minesAround(i)}
	case p.flagged[i]:
		return Cell{State: Flagged}
	case p.gameOver && p.mine[i]:
		return Cell{State: Mine}
	default:
		return Cell{State: Closed}
	}
}

// CellAt は座標指定版の Cell です
func (p *Playfield) CellAt(x, y int) (Cell, error) {
	i, err := p.indexFromCoord(x, y)
	if err != nil {
		return Cell{}, err
	}
	return p.Cell(i), nil
}

// Cells は盤面全体のスナップショットを返します
func (p *Playfield) Cells() []Cell {
	cells := make([]Cell, len(p.open))
	for i := range cells {
		cells[i] = p.Cell(i)
	}
	return cells
}

// Width は盤面の幅を返します
func (p *Playfield) Width() int { return p.width }

// Height は盤面の高さを返します
func (p *Playfield) Height() int { return p.height }

// MineCount は地雷の総数を返します
func (p *Playfield) MineCount() int { return p.mines }

// GameOver は勝敗が決まったかどうかを返します
func (p *Playfield) GameOver() bool { return p.gameOver }

// State は最後に決まった勝敗を返します (決着前は KeepPlaying)
func (p *Playfield) State() GameState { return p.state }

// FlagCount は立っているフラグの数を返します
func (p *Playfield) FlagCount() int {
	n := 0
	for _, f := range p.flagged {
		if f {
			n++
		}
	}
	return n
}

// OpenCount は開封済みのマス数を返します
func (p *Playfield) OpenCount() int {
	n := 0
	for _, o := range p.open {
		if o {
			n++
		}
	}
	return n
}
