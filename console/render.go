package console

import (
	"fmt"
	"io"
	"strings"

	"termsweeper/game"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiFlag   = "\033[37;44m" // 白文字・青背景
)

// 1-4 の色。5-8 は同じ色の太字
var countColors = [4]string{ansiBlue, ansiGreen, ansiYellow, ansiRed}

// glyph はマス1つ分の文字 (色付きの場合はエスケープ込み) を返します
func glyph(c game.Cell, color bool) string {
	var s, style string
	switch c.State {
	case game.Flagged:
		s, style = "!", ansiFlag
	case game.Mine:
		s, style = "✱", ansiRed
	case game.Opened:
		if c.Count == 0 {
			return " "
		}
		s = fmt.Sprint(c.Count)
		style = countColors[(c.Count-1)%4]
		if c.Count > 4 {
			style = ansiBold + style
		}
	default:
		return "#"
	}
	if !color {
		return s
	}
	return style + s + ansiReset
}

// drawBoard は列番号・区切り線・各行を書き出します
func drawBoard(w io.Writer, p *game.Playfield, color bool) {
	width, height := p.Width(), p.Height()

	var b strings.Builder
	b.WriteString("\n    ")
	for x := 1; x <= width; x++ {
		fmt.Fprintf(&b, "%2d ", x)
	}
	b.WriteString("\n   ")
	b.WriteString(strings.Repeat("---", width))
	b.WriteString("\n")

	for y := 1; y <= height; y++ {
		fmt.Fprintf(&b, "%2d| ", y)
		for x := 1; x <= width; x++ {
			c, _ := p.CellAt(x, y)
			b.WriteString(" ")
			b.WriteString(glyph(c, color))
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}
	io.WriteString(w, b.String())
}
