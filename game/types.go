package game

import "github.com/pkg/errors"

// GameState は操作後のゲームの状態です
type GameState int

const (
	KeepPlaying GameState = iota
	Win
	Lose
)

func (s GameState) String() string {
	switch s {
	case Win:
		return "win"
	case Lose:
		return "lose"
	default:
		return "playing"
	}
}

// CellState は描画用のマスの見た目です
type CellState int

const (
	Closed  CellState = iota // 未開封
	Flagged                  // フラグ
	Mine                     // ゲーム終了後に見える地雷
	Opened                   // 開封済み (Count が有効)
)

func (s CellState) String() string {
	switch s {
	case Flagged:
		return "flagged"
	case Mine:
		return "mine"
	case Opened:
		return "opened"
	default:
		return "hidden"
	}
}

// Cell は1マスの描画情報です
type Cell struct {
	State CellState
	Count int // 周囲8マスの地雷数 (Opened のときのみ)
}

// Pos は1始まりの座標です
type Pos struct {
	X, Y int
}

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrCannotOpenFlagged = errors.New("cannot open flagged coordinate")
	ErrAlreadyOpen       = errors.New("cannot open already open coordinate")
	ErrCannotFlagOpen    = errors.New("cannot flag open coordinate")
	ErrInvalidDimensions = errors.New("invalid board dimensions")
	ErrTooManyMines      = errors.New("invalid mine count")
)
