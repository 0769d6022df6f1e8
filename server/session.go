package server

import (
	"math/rand/v2"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"termsweeper/game"
	"termsweeper/solver"
	"termsweeper/viewmodel"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrFinished = errors.New("game already finished")
	ErrNoMove   = errors.New("no move left")
)

// Session は1ゲーム分の盤面と購読者 (websocket) を持ちます
// Playfield 自体はスレッドセーフではないので mu で守ります
type Session struct {
	ID        string
	mu        sync.Mutex
	field     *game.Playfield
	rng       *rand.Rand
	createdAt time.Time
	lastSeen  time.Time
	subs      map[chan []byte]struct{}
	closed    bool
}

// stateMessage は websocket に流す盤面更新です
type stateMessage struct {
	Type string             `json:"type"`
	Move *solver.Move       `json:"move,omitempty"`
	Game viewmodel.GameView `json:"game"`
}

func newSession(id string, field *game.Playfield, rng *rand.Rand, now time.Time) *Session {
	return &Session{
		ID:        id,
		field:     field,
		rng:       rng,
		createdAt: now,
		lastSeen:  now,
		subs:      make(map[chan []byte]struct{}),
	}
}

// View は現在の盤面を返します
func (s *Session) View() viewmodel.GameView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return viewmodel.Build(s.field)
}

// Open はマスを開けます。終了済みのゲームには ErrFinished を返します
func (s *Session) Open(x, y int) (viewmodel.GameView, error) {
	_, view, err := s.move(func() (*solver.Move, error) {
		_, err := s.field.Open(x, y)
		return nil, err
	})
	return view, err
}

// ToggleFlag はフラグを切り替えます
func (s *Session) ToggleFlag(x, y int) (viewmodel.GameView, error) {
	_, view, err := s.move(func() (*solver.Move, error) {
		_, err := s.field.ToggleFlag(x, y)
		return nil, err
	})
	return view, err
}

// BotStep は Solver に1手打たせます
func (s *Session) BotStep() (*solver.Move, viewmodel.GameView, error) {
	return s.move(func() (*solver.Move, error) {
		m := solver.New(s.field, s.rng).NextMove()
		if m == nil {
			return nil, ErrNoMove
		}
		var err error
		if m.Type == solver.MoveFlag {
			_, err = s.field.ToggleFlag(m.X, m.Y)
		} else {
			_, err = s.field.Open(m.X, m.Y)
		}
		return m, err
	})
}

func (s *Session) move(do func() (*solver.Move, error)) (*solver.Move, viewmodel.GameView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = time.Now()
	if s.field.GameOver() {
		return nil, viewmodel.Build(s.field), ErrFinished
	}
	m, err := do()
	view := viewmodel.Build(s.field)
	if err != nil {
		return nil, view, err
	}
	s.publish(stateMessage{Type: "state", Move: m, Game: view})
	return m, view, nil
}

// publish は mu を持った状態で呼びます。遅い購読者は更新を取りこぼします
func (s *Session) publish(msg stateMessage) {
	if len(s.subs) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for ch := range s.subs {
		select {
		case ch <- b:
		default:
		}
	}
}

// Subscribe は盤面更新を受け取るチャネルと解除関数を返します
func (s *Session) Subscribe() (<-chan []byte, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan []byte, 8)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

func (s *Session) expired(ttl time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ttl > 0 && now.Sub(s.lastSeen) > ttl
}

// close は購読者を全て切断します
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}
