package console

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"termsweeper/game"
	"termsweeper/solver"
)

const help = `
Available Commands:
    O x y    - open cell
    F x y    - flag cell (toggle)
    H        - show a hint
    B        - let the bot play one move
    D        - draw board
    Q        - quit
`

// Console は標準入出力で遊ぶためのループです
type Console struct {
	field *game.Playfield
	in    *bufio.Reader
	out   io.Writer
	color bool
	log   logrus.FieldLogger
	rng   *rand.Rand
}

type Option func(*Console)

// WithColor はANSIカラーでの描画を切り替えます
func WithColor(enabled bool) Option {
	return func(c *Console) { c.color = enabled }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Console) { c.log = l }
}

// WithRand は Bot が運任せで選ぶときの乱数です
func WithRand(r *rand.Rand) Option {
	return func(c *Console) { c.rng = r }
}

func New(field *game.Playfield, in io.Reader, out io.Writer, opts ...Option) *Console {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	c := &Console{
		field: field,
		in:    bufio.NewReader(in),
		out:   out,
		log:   quiet,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run は勝敗が決まるか Q が入力されるか入力が終わるまで続きます
func (c *Console) Run() error {
	for {
		drawBoard(c.out, c.field, c.color)

		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "read line failed")
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, params := strings.ToUpper(fields[0]), fields[1:]

		var state game.GameState
		switch cmd {
		case "Q":
			c.log.Info("quit")
			return nil
		case "D", "P":
			continue
		case "O", "F":
			x, y, err := parsePosition(params)
			if err != nil {
				c.println(err)
				continue
			}
			if state, err = c.apply(cmd, x, y); err != nil {
				c.println(err)
				continue
			}
		case "H":
			c.hint()
			continue
		case "B":
			m := solver.New(c.field, c.rng).NextMove()
			if m == nil {
				c.println("No move left")
				continue
			}
			c.println(describe(m))
			if state, err = c.apply(moveCommand(m), m.X, m.Y); err != nil {
				c.println(err)
				continue
			}
		default:
			io.WriteString(c.out, help)
			continue
		}

		switch state {
		case game.Win:
			drawBoard(c.out, c.field, c.color)
			c.println("You win")
			return nil
		case game.Lose:
			drawBoard(c.out, c.field, c.color)
			c.println("You lose")
			return nil
		}
	}
}

func (c *Console) apply(cmd string, x, y int) (game.GameState, error) {
	var (
		state game.GameState
		err   error
	)
	if cmd == "F" {
		state, err = c.field.ToggleFlag(x, y)
	} else {
		state, err = c.field.Open(x, y)
	}

	entry := c.log.WithFields(logrus.Fields{"cmd": cmd, "x": x, "y": y})
	if err != nil {
		entry.WithError(err).Debug("move rejected")
		return state, err
	}
	entry.WithField("state", state).Debug("move")
	return state, nil
}

func (c *Console) hint() {
	m := solver.New(c.field, c.rng).NextMove()
	if m == nil {
		c.println("No move left")
		return
	}
	c.println("Hint: " + describe(m))
}

func (c *Console) println(v any) {
	fmt.Fprintln(c.out, v)
}

func moveCommand(m *solver.Move) string {
	if m.Type == solver.MoveFlag {
		return "F"
	}
	return "O"
}

func describe(m *solver.Move) string {
	return fmt.Sprintf("%s %d %d (%s, %.0f%%)", m.Type, m.X, m.Y, m.Strategy, m.Confidence*100)
}

// parsePosition は "x y" の2つの整数を読みます
func parsePosition(p []string) (int, int, error) {
	if len(p) != 2 {
		return 0, 0, errors.Errorf("Wrong parameter count. Expected 2, received %d.", len(p))
	}
	x, err := strconv.Atoi(p[0])
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(p[1])
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
