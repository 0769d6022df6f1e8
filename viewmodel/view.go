package viewmodel

import (
	jsoniter "github.com/json-iterator/go"

	"termsweeper/game"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type CellView struct {
	State  string `json:"state"` // hidden | flagged | mine | opened
	Count  int    `json:"count"`
	IsMine bool   `json:"is_mine"`
}

type GameView struct {
	Width          int          `json:"width"`
	Height         int          `json:"height"`
	Cells          [][]CellView `json:"cells"`
	MinesRemaining int          `json:"mines_remaining"`
	State          string       `json:"state"`
	IsGameOver     bool         `json:"is_game_over"`
	IsGameClear    bool         `json:"is_game_clear"`
}

// Build は盤面から表示用の構造体を作ります
// マスの見た目は Playfield.Cell の優先順位に従います
func Build(p *game.Playfield) GameView {
	w, h := p.Width(), p.Height()
	grid := make([][]CellView, h)
	for y := 0; y < h; y++ {
		grid[y] = make([]CellView, w)
		for x := 0; x < w; x++ {
			c := p.Cell(y*w + x)
			grid[y][x] = CellView{
				State:  c.State.String(),
				Count:  c.Count,
				IsMine: c.State == game.Mine,
			}
		}
	}

	return GameView{
		Width:          w,
		Height:         h,
		Cells:          grid,
		MinesRemaining: p.MineCount() - p.FlagCount(),
		State:          p.State().String(),
		IsGameOver:     p.GameOver(),
		IsGameClear:    p.State() == game.Win,
	}
}

// NewGameView は盤面をJSON文字列で返します
func NewGameView(p *game.Playfield) string {
	// nilの場合は空のJSONオブジェクトを返す
	if p == nil {
		return "{}"
	}
	bytes, err := Marshal(Build(p))
	if err != nil {
		return "{}"
	}
	return string(bytes)
}

func Marshal(v GameView) ([]byte, error) {
	return json.Marshal(v)
}
