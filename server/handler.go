package server

import (
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"termsweeper/config"
	"termsweeper/game"
	"termsweeper/solver"
	"termsweeper/viewmodel"
)

// Server はHTTPハンドラとゲームのセッションを管理します
type Server struct {
	Hub      *Hub
	defaults config.GameConfig
	log      logrus.FieldLogger
}

func NewServer(hub *Hub, defaults config.GameConfig, logger logrus.FieldLogger) *Server {
	return &Server{Hub: hub, defaults: defaults, log: logger}
}

type newGameRequest struct {
	Width  *int    `json:"width"`
	Height *int    `json:"height"`
	Mines  *int    `json:"mines"`
	Seed   *uint64 `json:"seed"`
}

type moveRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type gameResponse struct {
	ID   string             `json:"id"`
	Move *solver.Move       `json:"move,omitempty"`
	Game viewmodel.GameView `json:"game"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter はルーティングを設定した gin.Engine を返します
func NewRouter(s *Server, c config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(s.log))
	if c.RateLimit > 0 {
		r.Use(RateLimit(NewRateLimiter(c.RateLimit, c.RateWindow)))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"games":     s.Hub.Len(),
			"timestamp": time.Now().Unix(),
		})
	})

	api := r.Group("/api/games")
	api.POST("", s.HandleNew)
	api.GET("/:id", s.HandleGet)
	api.DELETE("/:id", s.HandleDelete)
	api.POST("/:id/open", s.HandleOpen)
	api.POST("/:id/flag", s.HandleFlag)
	api.POST("/:id/bot", s.HandleBot)
	api.GET("/:id/ws", s.HandleStream)

	// それ以外は static フォルダの中身 (html, js, wasm) を配信
	if c.StaticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(c.StaticDir))))
	}
	return r
}

// HandleNew はゲーム作成API。ボディ省略時は設定のデフォルト値
// 盤面の大きさは設定の max_cells までです
func (s *Server) HandleNew(c *gin.Context) {
	var req newGameRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid input"})
		return
	}

	g := s.defaults
	if req.Width != nil {
		g.Width = *req.Width
	}
	if req.Height != nil {
		g.Height = *req.Height
	}
	if req.Mines != nil {
		g.Mines = *req.Mines
	}
	if err := g.Validate(); err != nil {
		s.fail(c, err)
		return
	}
	var rng *rand.Rand
	if req.Seed != nil {
		rng = rand.New(rand.NewPCG(*req.Seed, *req.Seed>>1))
	} else {
		rng = g.NewRand()
	}

	session, err := s.Hub.Create(g.Width, g.Height, g.Mines, rng)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gameResponse{ID: session.ID, Game: session.View()})
}

func (s *Server) HandleGet(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gameResponse{ID: session.ID, Game: session.View()})
}

func (s *Server) HandleDelete(c *gin.Context) {
	if !s.Hub.Remove(c.Param("id")) {
		s.fail(c, errors.Wrapf(ErrNotFound, "id %s", c.Param("id")))
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleOpen はマスを開けるAPI
func (s *Server) HandleOpen(c *gin.Context) {
	s.handleMove(c, (*Session).Open)
}

// HandleFlag はフラグを切り替えるAPI
func (s *Server) HandleFlag(c *gin.Context) {
	s.handleMove(c, (*Session).ToggleFlag)
}

func (s *Server) handleMove(c *gin.Context, do func(*Session, int, int) (viewmodel.GameView, error)) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid input"})
		return
	}
	view, err := do(session, req.X, req.Y)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gameResponse{ID: session.ID, Game: view})
}

// HandleBot は Bot に1手打たせるAPI
func (s *Server) HandleBot(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	m, view, err := session.BotStep()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gameResponse{ID: session.ID, Move: m, Game: view})
}

func (s *Server) session(c *gin.Context) (*Session, bool) {
	session, err := s.Hub.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return session, true
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	_ = c.Error(err)
	c.JSON(status, errorResponse{Error: err.Error()})
}

// statusFor はエラーをHTTPステータスに対応付けます
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrHubFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, game.ErrInvalidCoordinate),
		errors.Is(err, game.ErrInvalidDimensions),
		errors.Is(err, game.ErrTooManyMines):
		return http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrCannotOpenFlagged),
		errors.Is(err, game.ErrAlreadyOpen),
		errors.Is(err, game.ErrCannotFlagOpen),
		errors.Is(err, ErrFinished),
		errors.Is(err, ErrNoMove):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
