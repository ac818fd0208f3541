package engine

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	lua "github.com/Shopify/go-lua"

	"github.com/decker502/patience/pkg/geometry"
)

const bundledRulesDir = "../../rules"

func startRules(t *testing.T, filename string, seed int64) *Bridge {
	t.Helper()
	script, err := os.ReadFile(filepath.Join(bundledRulesDir, filename))
	if err != nil {
		t.Fatalf("read %s: %v", filename, err)
	}
	b, err := New(Config{Filename: filename, Script: string(script), Seed: seed})
	if err != nil {
		t.Fatalf("New(%s): %v", filename, err)
	}
	t.Cleanup(b.Close)
	if err := b.Initialize(); err != nil {
		t.Fatalf("Initialize(%s): %v", filename, err)
	}
	return b
}

// stage 把当前游戏对象设为全局 game 后执行一段脚本，用来摆出确定的牌局
func stage(t *testing.T, b *Bridge, code string) {
	t.Helper()
	err := b.Do(func(tx *Tx) error {
		l := b.l
		top := l.Top()
		defer l.SetTop(top)
		if err := tx.pushGame(); err != nil {
			return err
		}
		l.SetGlobal("game")
		return lua.DoString(l, code)
	})
	if err != nil {
		t.Fatalf("run lua: %v", err)
	}
}

func pileByKey(t *testing.T, b *Bridge, key string) Handle {
	t.Helper()
	var h Handle
	err := b.Do(func(tx *Tx) error {
		l := b.l
		top := l.Top()
		defer l.SetTop(top)
		if err := tx.pushGame(); err != nil {
			return err
		}
		l.Field(-1, "piles")
		l.Field(-1, key)
		if !l.IsTable(-1) {
			return fmt.Errorf("no pile %q", key)
		}
		h = tx.ref(-1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func cardsOf(t *testing.T, b *Bridge, pile Handle) ([]Handle, []CardInfo) {
	t.Helper()
	var (
		handles []Handle
		infos   []CardInfo
	)
	err := b.Do(func(tx *Tx) error {
		var err error
		handles, err = tx.Cards(pile)
		if err != nil {
			return err
		}
		for _, h := range handles {
			info, err := tx.Card(h)
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return handles, infos
}

func countOf(t *testing.T, b *Bridge, key string) int {
	t.Helper()
	h := pileByKey(t, b, key)
	n := 0
	_ = b.Do(func(tx *Tx) error {
		n = tx.CardCount(h)
		return nil
	})
	return n
}

// dragOnto 从 from 的第 index 张牌处分出一组牌并合并到 to，失败时放回
func dragOnto(t *testing.T, b *Bridge, from Handle, index int, to Handle) MergeResult {
	t.Helper()
	result := NoTarget
	err := b.Do(func(tx *Tx) error {
		cards, err := tx.Cards(from)
		if err != nil {
			return err
		}
		if index >= len(cards) {
			return fmt.Errorf("pile has %d cards, want index %d", len(cards), index)
		}
		moving, err := tx.Split(from, cards[index])
		if err != nil {
			return err
		}
		if !moving.Valid() {
			return nil
		}
		defer tx.Release(moving)
		result = tx.Merge(to, moving)
		if result != Merged {
			_, err = tx.Revert(moving, from)
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func tapPile(t *testing.T, b *Bridge, pile Handle) {
	t.Helper()
	if err := b.Do(func(tx *Tx) error { return tx.TapPile(pile) }); err != nil {
		t.Fatal(err)
	}
}

func TestBundledRules(t *testing.T) {
	tests := []struct {
		filename  string
		title     string
		piles     int
		cards     int
		portrait  [2]int
		landscape [2]int
	}{
		{"calculation.lua", "Calculation", 9, 52, [2]int{4, 5}, [2]int{5, 7}},
		{"freecell.lua", "Freecell", 16, 52, [2]int{4, 8}, [2]int{4, 11}},
		{"klondike.lua", "Klondike", 13, 52, [2]int{4, 7}, [2]int{4, 12}},
		{"pyramid.lua", "Pyramid", 4, 52, [2]int{6, 7}, [2]int{4, 10}},
		{"spider.lua", "Spider", 11, 104, [2]int{4, 12}, [2]int{4, 12}},
	}

	listed, err := ListRules(os.DirFS(bundledRulesDir), ".")
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(listed) != len(tests) {
		t.Fatalf("ListRules found %d programs, want %d", len(listed), len(tests))
	}

	for i, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if listed[i].Filename != tt.filename || listed[i].Title != tt.title {
				t.Errorf("listed %s %q, want %s %q", listed[i].Filename, listed[i].Title, tt.filename, tt.title)
			}

			b := startRules(t, tt.filename, 11)
			if b.Name() != tt.title {
				t.Errorf("Name() = %q, want %q", b.Name(), tt.title)
			}
			_, infos := pileInfos(t, b)
			if len(infos) != tt.piles {
				t.Errorf("piles = %d, want %d", len(infos), tt.piles)
			}
			total := 0
			for _, info := range infos {
				total += info.Count
			}
			if total != tt.cards {
				t.Errorf("cards = %d, want %d", total, tt.cards)
			}

			for _, size := range []struct {
				w, h int
				want [2]int
			}{{1200, 700, tt.landscape}, {700, 1200, tt.portrait}} {
				if err := b.Resize(size.w, size.h); err != nil {
					t.Fatalf("Resize: %v", err)
				}
				if rows, cols := b.Board(); rows != size.want[0] || cols != size.want[1] {
					t.Errorf("%dx%d: board = %dx%d, want %dx%d", size.w, size.h, rows, cols, size.want[0], size.want[1])
				}
			}

			s1, err := b.Serialize()
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			if err := b.Deserialize(s1); err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			s2, err := b.Serialize()
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			if s1 != s2 {
				t.Error("snapshot changed after round trip")
			}
			if err := b.Err(); err != nil {
				t.Errorf("Err() = %v", err)
			}
		})
	}
}

func TestPyramidKingAndPair(t *testing.T) {
	b := startRules(t, "pyramid.lua", 3)
	stage(t, b, `
		local cards = game.piles.pyramid.cards
		cards[22].rank = 'SIX'
		cards[23].rank = 'SEVEN'
		cards[28].rank = 'KING'
		cards[1].rank = 'KING'
	`)
	pyramid := pileByKey(t, b, "pyramid")
	handles, _ := cardsOf(t, b, pyramid)

	// 顶端的牌被压着，不能选
	if err := b.TapCard(handles[0]); err != nil {
		t.Fatal(err)
	}
	if _, infos := cardsOf(t, b, pyramid); !infos[0].Alive || infos[0].OffsetY != 0 {
		t.Errorf("covered king = %+v, want untouched", infos[0])
	}

	if err := b.TapCard(handles[27]); err != nil {
		t.Fatal(err)
	}
	if _, infos := cardsOf(t, b, pyramid); infos[27].Alive {
		t.Error("exposed king survived a tap")
	}
	if got := b.Score(); got != 10 {
		t.Errorf("score after king = %d, want 10", got)
	}

	if err := b.TapCard(handles[21]); err != nil {
		t.Fatal(err)
	}
	if _, infos := cardsOf(t, b, pyramid); infos[21].OffsetY != 0.3 {
		t.Errorf("selected card offsetY = %v, want 0.3", infos[21].OffsetY)
	}
	if err := b.TapCard(handles[22]); err != nil {
		t.Fatal(err)
	}
	_, infos := cardsOf(t, b, pyramid)
	if infos[21].Alive || infos[22].Alive {
		t.Error("pair summing to 13 not removed")
	}
	if infos[21].OffsetY != 0 {
		t.Errorf("removed card offsetY = %v, want 0", infos[21].OffsetY)
	}
	if got := b.Score(); got != 20 {
		t.Errorf("score after pair = %d, want 20", got)
	}
	if got := len(b.History()); got != 3 {
		t.Errorf("history length = %d, want 3", got)
	}
}

func TestPyramidClearsRowAndWins(t *testing.T) {
	b := startRules(t, "pyramid.lua", 3)
	stage(t, b, `
		local cards = game.piles.pyramid.cards
		for i = 2, #cards do
			cards[i].alive = false
		end
		cards[1].rank = 'KING'
	`)
	handles, _ := cardsOf(t, b, pileByKey(t, b, "pyramid"))
	ended := 0
	b.OnEnd(func() { ended++ })

	if err := b.TapCard(handles[0]); err != nil {
		t.Fatal(err)
	}
	// 国王 10 分，清空第一行 350 分
	if got := b.Score(); got != 360 {
		t.Errorf("score = %d, want 360", got)
	}
	if !b.HasWon() || ended != 1 {
		t.Errorf("HasWon() = %v, end events = %d", b.HasWon(), ended)
	}
}

func TestPyramidStockTap(t *testing.T) {
	b := startRules(t, "pyramid.lua", 5)
	stock, temp := pileByKey(t, b, "stock"), pileByKey(t, b, "temp")

	tapPile(t, b, stock)
	if countOf(t, b, "stock") != 23 || countOf(t, b, "temp") != 1 {
		t.Fatalf("stock=%d temp=%d, want 23 and 1", countOf(t, b, "stock"), countOf(t, b, "temp"))
	}
	handles, infos := cardsOf(t, b, temp)
	if !infos[0].Visible {
		t.Error("turned card face down")
	}

	// 同一次点击也会送到刚翻出的牌上，它不应被选中
	if err := b.TapCard(handles[0]); err != nil {
		t.Fatal(err)
	}
	if _, infos := cardsOf(t, b, temp); infos[0].OffsetY != 0 {
		t.Errorf("turned card selected by the stock tap")
	}
	if err := b.TapCard(handles[0]); err != nil {
		t.Fatal(err)
	}
	_, infos = cardsOf(t, b, temp)
	if infos[0].Rank == "KING" {
		if infos[0].Alive {
			t.Error("king in temp survived a tap")
		}
	} else if infos[0].OffsetY != 0.3 {
		t.Errorf("temp card offsetY = %v, want 0.3", infos[0].OffsetY)
	}

	tapPile(t, b, stock)
	if countOf(t, b, "waste") != 1 || countOf(t, b, "temp") != 1 {
		t.Errorf("waste=%d temp=%d, want 1 and 1", countOf(t, b, "waste"), countOf(t, b, "temp"))
	}
}

func TestSpiderDealsAndClearsRuns(t *testing.T) {
	b := startRules(t, "spider.lua", 9)
	for i := 1; i <= 10; i++ {
		want := 5
		if i <= 4 {
			want = 6
		}
		if got := countOf(t, b, fmt.Sprintf("tableaux%d", i)); got != want {
			t.Errorf("tableaux%d = %d, want %d", i, got, want)
		}
	}

	stock := pileByKey(t, b, "stock")
	tapPile(t, b, stock)
	if got := countOf(t, b, "stock"); got != 40 {
		t.Errorf("stock after deal = %d, want 40", got)
	}
	_, infos := cardsOf(t, b, pileByKey(t, b, "tableaux10"))
	if len(infos) != 6 || !infos[5].Visible {
		t.Errorf("tableaux10 after deal = %+v", infos)
	}

	stage(t, b, `
		local run = {}
		for i = 13, 2, -1 do
			local card = Card('SPADES', RANKS[i])
			card.visible = true
			run[#run + 1] = card
		end
		game.piles.tableaux1.cards = run
		local ace = Card('SPADES', 'ACE')
		ace.visible = true
		game.piles.tableaux2.cards = { ace }
		game.score = 0
	`)
	t2 := pileByKey(t, b, "tableaux2")
	aces, _ := cardsOf(t, b, t2)

	if got := dragOnto(t, b, t2, 0, pileByKey(t, b, "tableaux1")); got != Merged {
		t.Fatalf("merge = %v, want merged", got)
	}
	if countOf(t, b, "tableaux1") != 0 || countOf(t, b, "tableaux2") != 0 {
		t.Errorf("finished run left on the table")
	}
	var ace CardInfo
	_ = b.Do(func(tx *Tx) error {
		var err error
		ace, err = tx.Card(aces[0])
		return err
	})
	if ace.Alive {
		t.Error("cleared card still alive")
	}
	if got := b.Score(); got != 99 {
		t.Errorf("score = %d, want 99", got)
	}

	// 有空列时不能发牌
	tapPile(t, b, stock)
	if got := countOf(t, b, "stock"); got != 40 {
		t.Errorf("stock dealt with an empty tableaux: %d", got)
	}
}

func TestSpiderSplitNeedsOneSuit(t *testing.T) {
	b := startRules(t, "spider.lua", 9)
	stage(t, b, `
		local a, c, d = Card('HEARTS', 'NINE'), Card('HEARTS', 'EIGHT'), Card('CLUBS', 'SEVEN')
		a.visible, c.visible, d.visible = true, true, true
		game.piles.tableaux1.cards = { a, c, d }
		local e = Card('SPADES', 'TEN')
		e.visible = true
		game.piles.tableaux2.cards = { e }
	`)
	t1, t2 := pileByKey(t, b, "tableaux1"), pileByKey(t, b, "tableaux2")
	if got := dragOnto(t, b, t1, 0, t2); got == Merged {
		t.Error("mixed-suit run moved")
	}
	if countOf(t, b, "tableaux1") != 3 {
		t.Errorf("tableaux1 = %d after refused move, want 3", countOf(t, b, "tableaux1"))
	}
	if got := dragOnto(t, b, t1, 2, t2); got != NotMerged {
		t.Errorf("seven onto ten = %v, want not merged", got)
	}
	if got := dragOnto(t, b, t1, 1, t2); got == Merged {
		t.Error("eight-seven of two suits moved as a run")
	}
}

func TestFreecellMoves(t *testing.T) {
	b := startRules(t, "freecell.lua", 4)
	if err := b.SetOption("autoFoundation", false); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	for i := 1; i <= 8; i++ {
		want := 6
		if i <= 4 {
			want = 7
		}
		_, infos := cardsOf(t, b, pileByKey(t, b, fmt.Sprintf("tableaux%d", i)))
		if len(infos) != want {
			t.Errorf("tableaux%d = %d, want %d", i, len(infos), want)
		}
		for _, info := range infos {
			if !info.Visible {
				t.Errorf("tableaux%d has a face down card", i)
				break
			}
		}
	}

	t1, t2 := pileByKey(t, b, "tableaux1"), pileByKey(t, b, "tableaux2")
	cell := pileByKey(t, b, "cell1")
	if got := dragOnto(t, b, t1, 6, cell); got != Merged {
		t.Fatalf("card into empty cell = %v", got)
	}
	if got := dragOnto(t, b, t2, 6, cell); got != NotMerged {
		t.Errorf("card into full cell = %v", got)
	}
	if countOf(t, b, "cell1") != 1 || countOf(t, b, "tableaux2") != 7 {
		t.Errorf("cell1=%d tableaux2=%d", countOf(t, b, "cell1"), countOf(t, b, "tableaux2"))
	}

	stage(t, b, `
		local run = {
			Card('SPADES', 'NINE'), Card('HEARTS', 'EIGHT'), Card('CLUBS', 'SEVEN'),
			Card('DIAMONDS', 'SIX'), Card('SPADES', 'FIVE'), Card('HEARTS', 'FOUR'),
		}
		for _, card in ipairs(run) do
			card.visible = true
		end
		game.piles.tableaux3.cards = run
		local ten = Card('DIAMONDS', 'TEN')
		ten.visible = true
		game.piles.tableaux4.cards = { ten }
		local ace = Card('CLUBS', 'ACE')
		ace.visible = true
		game.piles.tableaux6.cards[#game.piles.tableaux6.cards + 1] = ace
		game.piles.cell1.cards = {}
	`)
	t3, t4 := pileByKey(t, b, "tableaux3"), pileByKey(t, b, "tableaux4")

	// 四个空单元格只够移动五张
	if got := dragOnto(t, b, t3, 0, t4); got != NotMerged {
		t.Errorf("six cards with four free cells = %v, want not merged", got)
	}
	if countOf(t, b, "tableaux3") != 6 {
		t.Errorf("refused run not returned: tableaux3 = %d", countOf(t, b, "tableaux3"))
	}
	stage(t, b, `game.piles.tableaux5.cards = {}`)
	if got := dragOnto(t, b, t3, 0, t4); got != Merged {
		t.Errorf("six cards with an empty tableaux = %v, want merged", got)
	}
	if countOf(t, b, "tableaux4") != 7 {
		t.Errorf("tableaux4 = %d, want 7", countOf(t, b, "tableaux4"))
	}

	t6 := pileByKey(t, b, "tableaux6")
	if got := dragOnto(t, b, t6, countOf(t, b, "tableaux6")-1, pileByKey(t, b, "foundation1")); got != Merged {
		t.Errorf("ace onto empty foundation = %v", got)
	}
}

func TestCalculationPlay(t *testing.T) {
	b := startRules(t, "calculation.lua", 2)
	for key, rank := range map[string]string{"ones": "ACE", "twos": "TWO", "threes": "THREE", "fours": "FOUR"} {
		_, infos := cardsOf(t, b, pileByKey(t, b, key))
		if len(infos) != 1 || infos[0].Rank != rank || !infos[0].Visible {
			t.Errorf("%s = %+v, want a face up %s", key, infos, rank)
		}
	}
	if got := countOf(t, b, "stock"); got != 48 {
		t.Errorf("stock = %d, want 48", got)
	}

	stock := pileByKey(t, b, "stock")
	if got := dragOnto(t, b, stock, 47, pileByKey(t, b, "tableaux1")); got == Merged {
		t.Error("face down stock card was played")
	}
	tapPile(t, b, stock)
	if got := dragOnto(t, b, stock, 47, pileByKey(t, b, "tableaux1")); got != Merged {
		t.Fatalf("turned stock card onto tableaux = %v", got)
	}

	stage(t, b, `
		local s = game.piles.stock.cards
		s[#s].rank = 'TWO'
		s[#s].visible = true
	`)
	if got := dragOnto(t, b, stock, 46, pileByKey(t, b, "twos")); got != NotMerged {
		t.Errorf("two onto twos = %v, want not merged", got)
	}
	if got := dragOnto(t, b, stock, 46, pileByKey(t, b, "ones")); got != Merged {
		t.Errorf("two onto ones = %v, want merged", got)
	}
	if got := b.Score(); got != 2 {
		t.Errorf("score = %d, want 2", got)
	}
}

func TestCalculationLandscapeFansRight(t *testing.T) {
	b := startRules(t, "calculation.lua", 2)
	if err := b.Resize(1200, 700); err != nil {
		t.Fatal(err)
	}
	stage(t, b, `
		local s = game.piles.stock.cards
		game.piles.tableaux1.cards = { table.remove(s), table.remove(s) }
	`)
	snapshot, err := b.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Deserialize(snapshot); err != nil {
		t.Fatal(err)
	}

	t1 := pileByKey(t, b, "tableaux1")
	var points []image.Point
	err = b.Do(func(tx *Tx) error {
		var err error
		points, err = tx.Layout(t1, geometry.R(150, 0, 1200, 700), 100, 140)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 || points[1].X <= points[0].X || points[1].Y != points[0].Y {
		t.Errorf("landscape layout = %v, want cards fanned right", points)
	}
}
