//go:build js && wasm

package main

import (
	"syscall/js"

	"termsweeper/config"
	"termsweeper/game"
	"termsweeper/solver"
	"termsweeper/viewmodel"
)

// GameSession はブラウザ側の1ゲーム分の状態です
type GameSession struct {
	field *game.Playfield
	cfg   config.GameConfig
}

var session = &GameSession{
	cfg: config.GameConfig{Width: 10, Height: 10, Mines: 10, MaxCells: 10000},
}

// NewGame は新しいゲームを開始します。不正な大きさなら空文字を返します
func (s *GameSession) NewGame(width, height, mines int) string {
	g := s.cfg
	g.Width, g.Height, g.Mines = width, height, mines
	if err := g.Validate(); err != nil {
		println(err.Error())
		return ""
	}
	field, err := game.New(g.Width, g.Height, g.Mines, g.NewRand())
	if err != nil {
		println(err.Error())
		return ""
	}
	s.field = field
	return viewmodel.NewGameView(s.field)
}

func (s *GameSession) Open(x, y int) string {
	if s.field == nil {
		return ""
	}
	if !s.field.GameOver() {
		if _, err := s.field.Open(x, y); err != nil {
			println(err.Error())
		}
	}
	return viewmodel.NewGameView(s.field)
}

func (s *GameSession) ToggleFlag(x, y int) string {
	if s.field == nil {
		return ""
	}
	if !s.field.GameOver() {
		if _, err := s.field.ToggleFlag(x, y); err != nil {
			println(err.Error())
		}
	}
	return viewmodel.NewGameView(s.field)
}

// BotStep はBotに1手進めさせます
func (s *GameSession) BotStep() string {
	if s.field == nil || s.field.GameOver() {
		return ""
	}

	move := solver.New(s.field, nil).NextMove()
	if move == nil {
		return viewmodel.NewGameView(s.field) // 打つ手なし
	}

	var err error
	switch move.Type {
	case solver.MoveOpen:
		_, err = s.field.Open(move.X, move.Y)
	case solver.MoveFlag:
		_, err = s.field.ToggleFlag(move.X, move.Y)
	}
	if err != nil {
		println(err.Error())
	}
	return viewmodel.NewGameView(s.field)
}

// JS側から goNewGame(w, h, m) と呼ばれる
func newGameWrapper(this js.Value, args []js.Value) interface{} {
	w, h, m := session.cfg.Width, session.cfg.Height, session.cfg.Mines
	if len(args) >= 3 {
		w = args[0].Int()
		h = args[1].Int()
		m = args[2].Int()
	}
	return session.NewGame(w, h, m)
}

// 座標は1始まり
func openCellWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	return session.Open(args[0].Int(), args[1].Int())
}

func toggleFlagWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	return session.ToggleFlag(args[0].Int(), args[1].Int())
}

func botStepWrapper(this js.Value, args []js.Value) interface{} {
	return session.BotStep()
}

func main() {
	c := make(chan struct{})

	js.Global().Set("goNewGame", js.FuncOf(newGameWrapper))
	js.Global().Set("goOpenCell", js.FuncOf(openCellWrapper))
	js.Global().Set("goToggleFlag", js.FuncOf(toggleFlagWrapper))
	js.Global().Set("goBotStep", js.FuncOf(botStepWrapper))

	println("Go WebAssembly Initialized")
	<-c
}
