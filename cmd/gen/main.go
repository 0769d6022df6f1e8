package main

import (
	"encoding/csv"
	"flag"
	"io"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"termsweeper/config"
	"termsweeper/game"
	"termsweeper/solver"
)

var log = logrus.New()

// result は1試合分の記録です
type result struct {
	Seed    uint64
	State   game.GameState
	Moves   int
	Guesses int
	Opened  int
}

var header = []string{"seed", "result", "moves", "guesses", "opened"}

func (r result) record() []string {
	return []string{
		strconv.FormatUint(r.Seed, 10),
		r.State.String(),
		strconv.Itoa(r.Moves),
		strconv.Itoa(r.Guesses),
		strconv.Itoa(r.Opened),
	}
}

func main() {
	confPath := flag.String("conf", "", "config file (yaml)")
	games := flag.Int("games", 1000, "number of games to play")
	out := flag.String("out", "dataset.csv", "output csv ('-' for stdout)")
	seed := flag.Uint64("seed", 1, "seed of the first game; game i uses seed+i")
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.WithError(err).Fatal("create output")
		}
		defer f.Close()
		w = f
	}

	log.WithFields(logrus.Fields{
		"games": *games, "width": cfg.Game.Width, "height": cfg.Game.Height, "mines": cfg.Game.Mines,
	}).Info("generating")

	wins, err := generate(w, cfg.Game, *seed, *games)
	if err != nil {
		log.WithError(err).Fatal("generate")
	}
	log.WithFields(logrus.Fields{"wins": wins, "games": *games, "out": *out}).Info("done")
}

// generate は n 試合を Bot に打たせ、結果を CSV で書き出します
func generate(w io.Writer, g config.GameConfig, seed uint64, n int) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return 0, errors.Wrap(err, "write header")
	}

	wins := 0
	for i := 0; i < n; i++ {
		r, err := play(g, seed+uint64(i))
		if err != nil {
			return wins, err
		}
		if r.State == game.Win {
			wins++
		}
		if err := writer.Write(r.record()); err != nil {
			return wins, errors.Wrap(err, "write record")
		}
		if i > 0 && i%1000 == 0 {
			log.WithField("played", i).Debug("progress")
		}
	}
	writer.Flush()
	return wins, errors.Wrap(writer.Error(), "flush csv")
}

// play は勝敗が決まるか打つ手がなくなるまで Bot に打たせます
func play(g config.GameConfig, seed uint64) (result, error) {
	rng := rand.New(rand.NewPCG(seed, seed>>1))
	field, err := game.New(g.Width, g.Height, g.Mines, rng)
	if err != nil {
		return result{}, err
	}
	bot := solver.New(field, rng)

	r := result{Seed: seed, State: game.KeepPlaying}
	for limit := 2 * g.Width * g.Height; r.Moves < limit && !field.GameOver(); {
		m := bot.NextMove()
		if m == nil {
			break
		}
		r.Moves++
		if m.IsGuess {
			r.Guesses++
		}

		if m.Type == solver.MoveFlag {
			r.State, err = field.ToggleFlag(m.X, m.Y)
		} else {
			r.State, err = field.Open(m.X, m.Y)
		}
		if err != nil {
			return r, errors.Wrapf(err, "seed %d move %d", seed, r.Moves)
		}
	}
	r.Opened = field.OpenCount()
	return r, nil
}
