package game

import (
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func mustField(t *testing.T, w, h int, mines ...Pos) *Playfield {
	t.Helper()
	p, err := NewFromMines(w, h, mines)
	if err != nil {
		t.Fatalf("NewFromMines: %v", err)
	}
	return p
}

func snapshot(p *Playfield) ([]bool, []bool, []bool, bool) {
	return append([]bool(nil), p.mine...),
		append([]bool(nil), p.open...),
		append([]bool(nil), p.flagged...),
		p.gameOver
}

func equalBools(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewPlacesExactMineCount(t *testing.T) {
	tests := []struct {
		w, h, mines int
	}{
		{1, 1, 0},
		{1, 1, 1},
		{10, 10, 10},
		{9, 9, 80},
		{30, 16, 99},
		{4, 3, 12},
	}
	for _, tt := range tests {
		for seed := uint64(1); seed <= 5; seed++ {
			p, err := New(tt.w, tt.h, tt.mines, seeded(seed))
			if err != nil {
				t.Fatalf("New(%d,%d,%d): %v", tt.w, tt.h, tt.mines, err)
			}
			got := 0
			for _, m := range p.mine {
				if m {
					got++
				}
			}
			if got != tt.mines || p.MineCount() != tt.mines {
				t.Errorf("New(%d,%d,%d) seed %d: %d mines placed, MineCount %d",
					tt.w, tt.h, tt.mines, seed, got, p.MineCount())
			}
			if p.GameOver() {
				t.Errorf("new playfield reports game over")
			}
		}
	}
}

func TestNewIsReproducibleWithSeed(t *testing.T) {
	a, _ := New(16, 16, 40, seeded(42))
	b, _ := New(16, 16, 40, seeded(42))
	if !equalBools(a.mine, b.mine) {
		t.Fatal("same seed produced different layouts")
	}
}

func TestNewRejectsBadParams(t *testing.T) {
	tests := []struct {
		name        string
		w, h, mines int
		want        error
	}{
		{"zero width", 0, 5, 1, ErrInvalidDimensions},
		{"negative height", 5, -1, 1, ErrInvalidDimensions},
		{"negative mines", 3, 3, -1, ErrTooManyMines},
		{"more mines than cells", 3, 3, 10, ErrTooManyMines},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.w, tt.h, tt.mines, seeded(1))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewFromMinesRejectsDuplicatesAndOutOfRange(t *testing.T) {
	if _, err := NewFromMines(3, 3, []Pos{{1, 1}, {1, 1}}); !errors.Is(err, ErrTooManyMines) {
		t.Errorf("duplicate mine: got %v", err)
	}
	if _, err := NewFromMines(3, 3, []Pos{{4, 1}}); !errors.Is(err, ErrInvalidCoordinate) {
		t.Errorf("out of range mine: got %v", err)
	}
}

func TestIndexCoordRoundTrip(t *testing.T) {
	p := mustField(t, 4, 3)
	for i := 0; i < 12; i++ {
		x, y, err := p.coordFromIndex(i)
		if err != nil {
			t.Fatalf("coordFromIndex(%d): %v", i, err)
		}
		j, err := p.indexFromCoord(x, y)
		if err != nil || j != i {
			t.Fatalf("indexFromCoord(%d,%d) = %d, %v; want %d", x, y, j, err, i)
		}
	}
	if _, _, err := p.coordFromIndex(12); err == nil {
		t.Error("coordFromIndex past storage should fail")
	}
	if _, _, err := p.coordFromIndex(-1); err == nil {
		t.Error("coordFromIndex(-1) should fail")
	}
}

func TestBoundaryCoordinatesAreInvalid(t *testing.T) {
	const w, h = 5, 4
	p := mustField(t, w, h, Pos{3, 3})
	var bad []Pos
	for y := 1; y <= h; y++ {
		bad = append(bad, Pos{0, y}, Pos{w + 1, y})
	}
	for x := 1; x <= w; x++ {
		bad = append(bad, Pos{x, 0}, Pos{x, h + 1})
	}
	bad = append(bad, Pos{-1, -1})

	mine, open, flag, over := snapshot(p)
	for _, c := range bad {
		if _, err := p.Open(c.X, c.Y); !errors.Is(err, ErrInvalidCoordinate) {
			t.Errorf("Open(%d,%d): got %v", c.X, c.Y, err)
		}
		if _, err := p.ToggleFlag(c.X, c.Y); !errors.Is(err, ErrInvalidCoordinate) {
			t.Errorf("ToggleFlag(%d,%d): got %v", c.X, c.Y, err)
		}
		if _, err := p.CellAt(c.X, c.Y); !errors.Is(err, ErrInvalidCoordinate) {
			t.Errorf("CellAt(%d,%d): got %v", c.X, c.Y, err)
		}
	}
	m2, o2, f2, over2 := snapshot(p)
	if !equalBools(mine, m2) || !equalBools(open, o2) || !equalBools(flag, f2) || over != over2 {
		t.Error("state mutated by invalid coordinates")
	}
}

func TestValidNeighborsOrderAndClipping(t *testing.T) {
	p := mustField(t, 3, 3)
	got := p.validNeighbors(2, 2)
	want := []Pos{{1, 1}, {2, 1}, {3, 1}, {1, 2}, {3, 2}, {1, 3}, {2, 3}, {3, 3}}
	if len(got) != len(want) {
		t.Fatalf("center neighbors: got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("center neighbors: got %v, want %v", got, want)
		}
	}

	corner := p.validNeighbors(1, 1)
	wantCorner := []Pos{{2, 1}, {1, 2}, {2, 2}}
	if len(corner) != len(wantCorner) {
		t.Fatalf("corner neighbors: got %v", corner)
	}
	for i := range wantCorner {
		if corner[i] != wantCorner[i] {
			t.Fatalf("corner neighbors: got %v, want %v", corner, wantCorner)
		}
	}
}

func TestMinesAround(t *testing.T) {
	p := mustField(t, 3, 3, Pos{1, 1}, Pos{3, 1}, Pos{2, 3})
	tests := []struct {
		x, y, want int
	}{
		{2, 2, 3},
		{2, 1, 2},
		{1, 3, 1},
		{3, 3, 1},
		{1, 2, 2},
	}
	for _, tt := range tests {
		i, _ := p.indexFromCoord(tt.x, tt.y)
		if got := p.minesAround(i); got != tt.want {
			t.Errorf("minesAround(%d,%d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestOpenSingleCellNoMines(t *testing.T) {
	p := mustField(t, 1, 1)
	st, err := p.Open(1, 1)
	if err != nil || st != KeepPlaying {
		t.Fatalf("Open = %v, %v", st, err)
	}
	if c := p.Cell(0); c.State != Opened || c.Count != 0 {
		t.Fatalf("cell = %+v, want Opened(0)", c)
	}
}

func TestOpenMineLosesThenFlagWins(t *testing.T) {
	p := mustField(t, 1, 1, Pos{1, 1})
	st, err := p.Open(1, 1)
	if err != nil || st != Lose {
		t.Fatalf("Open = %v, %v; want Lose", st, err)
	}
	if !p.GameOver() || p.open[0] {
		t.Fatal("losing mine must set game over without opening the cell")
	}
	if c := p.Cell(0); c.State != Mine {
		t.Fatalf("cell after loss = %v, want Mine", c.State)
	}
	st, err = p.ToggleFlag(1, 1)
	if err != nil || st != Win {
		t.Fatalf("ToggleFlag = %v, %v; want Win", st, err)
	}
}

func TestOpenDoesNotCascadeFromNumberedCell(t *testing.T) {
	p := mustField(t, 3, 1, Pos{2, 1})
	st, err := p.Open(1, 1)
	if err != nil || st != KeepPlaying {
		t.Fatalf("Open = %v, %v", st, err)
	}
	if c := p.Cell(0); c.State != Opened || c.Count != 1 {
		t.Fatalf("cell 1 = %+v, want Opened(1)", c)
	}
	if c := p.Cell(2); c.State != Closed {
		t.Fatalf("cell 3 = %+v, want Closed", c)
	}
}

func TestOpenFloodFill(t *testing.T) {
	// . . . . .
	// . . . . .
	// . . . 1 1
	// . . . 1 *
	p := mustField(t, 5, 4, Pos{5, 4})
	if _, err := p.Open(1, 1); err != nil {
		t.Fatal(err)
	}
	if got := p.OpenCount(); got != 19 {
		t.Fatalf("opened %d cells, want 19", got)
	}
	if p.open[(4-1)*5+(5-1)] {
		t.Fatal("flood fill opened a mine")
	}
	c, _ := p.CellAt(4, 3)
	if c.State != Opened || c.Count != 1 {
		t.Fatalf("(4,3) = %+v, want Opened(1)", c)
	}
}

func TestOpenFloodFillStopsAtFlags(t *testing.T) {
	p := mustField(t, 3, 3, Pos{3, 3})
	if _, err := p.ToggleFlag(1, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Open(1, 1); err != nil {
		t.Fatal(err)
	}
	c, _ := p.CellAt(1, 3)
	if c.State != Flagged {
		t.Fatalf("flagged cell became %v during flood fill", c.State)
	}
	if p.OpenCount() != 7 {
		t.Fatalf("opened %d cells, want 7", p.OpenCount())
	}
}

func TestFloodFillNeverOpensMines(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		p, err := New(12, 9, 15, seeded(seed))
		if err != nil {
			t.Fatal(err)
		}
		for i := range p.mine {
			if p.mine[i] || p.open[i] {
				continue
			}
			x, y, _ := p.coordFromIndex(i)
			if _, err := p.Open(x, y); err != nil {
				t.Fatalf("seed %d Open(%d,%d): %v", seed, x, y, err)
			}
			break
		}
		for i := range p.mine {
			if p.mine[i] && p.open[i] {
				t.Fatalf("seed %d: mine at %d opened", seed, i)
			}
		}
		// every opened zero cell has all its non-mine, non-flag neighbours opened
		for i := range p.open {
			if !p.open[i] || p.minesAround(i) != 0 {
				continue
			}
			x, y, _ := p.coordFromIndex(i)
			for _, n := range p.validNeighbors(x, y) {
				j, _ := p.indexFromCoord(n.X, n.Y)
				if !p.open[j] {
					t.Fatalf("seed %d: zero cell (%d,%d) left neighbour (%d,%d) closed", seed, x, y, n.X, n.Y)
				}
			}
		}
	}
}

func TestOpenErrorsDoNotMutate(t *testing.T) {
	p := mustField(t, 3, 3, Pos{3, 3})
	if _, err := p.ToggleFlag(3, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Open(1, 2); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		do   func() (GameState, error)
		want error
	}{
		{"open flagged", func() (GameState, error) { return p.Open(3, 1) }, ErrCannotOpenFlagged},
		{"open twice", func() (GameState, error) { return p.Open(1, 2) }, ErrAlreadyOpen},
		{"flag open", func() (GameState, error) { return p.ToggleFlag(1, 1) }, ErrCannotFlagOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mine, open, flag, over := snapshot(p)
			st, err := tt.do()
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if st != KeepPlaying {
				t.Fatalf("state = %v on error", st)
			}
			m2, o2, f2, over2 := snapshot(p)
			if !equalBools(mine, m2) || !equalBools(open, o2) || !equalBools(flag, f2) || over != over2 {
				t.Fatal("state mutated on error")
			}
		})
	}
}

func TestWinRequiresExactFlagSet(t *testing.T) {
	p := mustField(t, 3, 3, Pos{1, 1}, Pos{3, 3})

	st, _ := p.ToggleFlag(1, 1)
	if st != KeepPlaying {
		t.Fatalf("proper subset flagged: got %v", st)
	}
	st, _ = p.ToggleFlag(2, 2)
	if st != KeepPlaying {
		t.Fatalf("non-mine flagged: got %v", st)
	}
	st, _ = p.ToggleFlag(3, 3)
	if st != KeepPlaying {
		t.Fatalf("all mines plus a non-mine flagged: got %v", st)
	}
	if p.GameOver() {
		t.Fatal("game over without a win")
	}

	// 余分なフラグを外した時点でフラグと地雷が一致する
	st, _ = p.ToggleFlag(2, 2)
	if st != Win || !p.GameOver() || p.State() != Win {
		t.Fatalf("removing the extra flag: got %v (game over %v)", st, p.GameOver())
	}
}

func TestWinOnPlacingLastFlag(t *testing.T) {
	p := mustField(t, 3, 3, Pos{1, 1}, Pos{3, 3})
	for _, pos := range []Pos{{3, 3}, {3, 3}, {1, 1}} {
		if st, _ := p.ToggleFlag(pos.X, pos.Y); st != KeepPlaying {
			t.Fatalf("flag %v: got %v", pos, st)
		}
	}
	st, _ := p.ToggleFlag(3, 3)
	if st != Win || !p.GameOver() {
		t.Fatalf("exact flag set: got %v (game over %v)", st, p.GameOver())
	}
}

func TestNoWinByFlagsWithoutMines(t *testing.T) {
	p := mustField(t, 2, 2)
	for i := 0; i < 2; i++ {
		if st, err := p.ToggleFlag(1, 1); err != nil || st != KeepPlaying {
			t.Fatalf("toggle %d: %v, %v", i, st, err)
		}
	}
	if p.GameOver() {
		t.Fatal("empty flag set on a mine-free board must not win")
	}
}

func TestNewRejectsOversizedBoards(t *testing.T) {
	tests := []struct{ w, h int }{
		{3, 1 << 62},
		{1 << 32, 1 << 32},
		{MaxCells + 1, 1},
		{1024, 1025},
	}
	for _, tt := range tests {
		if _, err := New(tt.w, tt.h, 0, nil); !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("New(%d, %d): got %v, want ErrInvalidDimensions", tt.w, tt.h, err)
		}
		if _, err := NewFromMines(tt.w, tt.h, nil); !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("NewFromMines(%d, %d): got %v", tt.w, tt.h, err)
		}
	}
	if _, err := New(MaxCells, 1, 0, nil); err != nil {
		t.Fatalf("board of exactly MaxCells: %v", err)
	}
}

func TestToggleFlagIsReversible(t *testing.T) {
	p := mustField(t, 2, 2, Pos{2, 2})
	if _, err := p.ToggleFlag(1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Open(1, 1); !errors.Is(err, ErrCannotOpenFlagged) {
		t.Fatalf("open flagged: got %v", err)
	}
	if _, err := p.ToggleFlag(1, 1); err != nil {
		t.Fatal(err)
	}
	if p.FlagCount() != 0 {
		t.Fatalf("FlagCount = %d after unflag", p.FlagCount())
	}
	if st, err := p.Open(1, 1); err != nil || st != KeepPlaying {
		t.Fatalf("open after unflag: %v, %v", st, err)
	}
}

func TestCellPrecedenceAfterLoss(t *testing.T) {
	p := mustField(t, 3, 1, Pos{1, 1}, Pos{3, 1})
	if _, err := p.ToggleFlag(1, 1); err != nil {
		t.Fatal(err)
	}
	if st, _ := p.Open(3, 1); st != Lose {
		t.Fatalf("Open mine = %v", st)
	}
	cells := p.Cells()
	want := []CellState{Flagged, Closed, Mine}
	for i, c := range cells {
		if c.State != want[i] {
			t.Errorf("cell %d = %v, want %v", i, c.State, want[i])
		}
	}
	if p.State() != Lose {
		t.Errorf("State() = %v", p.State())
	}
}

func TestErrorMessagesAreReadable(t *testing.T) {
	p := mustField(t, 2, 2)
	_, err := p.Open(3, 1)
	if err == nil || err.Error() != "x=3 not in 1..2: invalid coordinate" {
		t.Fatalf("message = %q", err)
	}
}
