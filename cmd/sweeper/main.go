package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"termsweeper/config"
	"termsweeper/console"
	"termsweeper/game"
)

var (
	// 設定ファイル (省略時はデフォルト値と環境変数)
	confPath = flag.String("conf", "", "config file (yaml)")
	// 盤面の大きさ。0 なら設定値
	width  = flag.Int("width", 0, "board width")
	height = flag.Int("height", 0, "board height")
	// -1 なら設定値
	mines = flag.Int("mines", -1, "number of mines")
	seed  = flag.Uint64("seed", 0, "random seed (0 = config or current time)")
	// 強制的に色なしにします
	noColor = flag.Bool("no-color", false, "disable ANSI colors")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*confPath)
	if err != nil {
		return err
	}
	if *width > 0 {
		cfg.Game.Width = *width
	}
	if *height > 0 {
		cfg.Game.Height = *height
	}
	if *mines >= 0 {
		cfg.Game.Mines = *mines
	}
	if *seed != 0 {
		cfg.Game.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}

	rng := cfg.Game.NewRand()
	field, err := game.New(cfg.Game.Width, cfg.Game.Height, cfg.Game.Mines, rng)
	if err != nil {
		return err
	}
	log.WithField("seed", cfg.Game.Seed).Debugf("new game %dx%d with %d mines", cfg.Game.Width, cfg.Game.Height, cfg.Game.Mines)

	color := !*noColor && term.IsTerminal(int(os.Stdout.Fd()))
	c := console.New(field, os.Stdin, os.Stdout,
		console.WithColor(color),
		console.WithLogger(log),
		console.WithRand(rng),
	)
	return c.Run()
}
