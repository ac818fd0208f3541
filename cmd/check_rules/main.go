// check_rules 加载目录中的每个规则程序并检查必需的函数
//
// 用法：
//
//	go run ./cmd/check_rules -dir rules
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/decker502/patience/pkg/engine"
)

var (
	dir     = flag.String("dir", "rules", "规则程序目录")
	verbose = flag.Bool("verbose", false, "显示详细调试信息")
)

func main() {
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	rules, err := engine.ListRules(os.DirFS(*dir), ".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(rules) == 0 {
		fmt.Fprintf(os.Stderr, "No rules programs found in %s\n", *dir)
		os.Exit(1)
	}

	failed := 0
	for _, r := range rules {
		if err := check(r); err != nil {
			fmt.Printf("FAIL %-20s %v\n", r.Filename, err)
			failed++
		}
	}
	fmt.Printf("\n%d rules programs, %d failed\n", len(rules), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// check 开一局，做一次序列化往返，并在两种屏幕方向下取牌桌尺寸
func check(r engine.RuleFile) error {
	b, err := engine.New(engine.Config{Filename: r.Filename, Script: r.Script, Seed: 1})
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.Initialize(); err != nil {
		return err
	}
	s1, err := b.Serialize()
	if err != nil {
		return err
	}
	if err := b.Deserialize(s1); err != nil {
		return err
	}
	s2, err := b.Serialize()
	if err != nil {
		return err
	}
	if s1 != s2 {
		return fmt.Errorf("snapshot changed after deserialize")
	}

	var piles, cards int
	err = b.Do(func(tx *engine.Tx) error {
		handles, err := tx.Piles()
		if err != nil {
			return err
		}
		piles = len(handles)
		for _, h := range handles {
			cards += tx.CardCount(h)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := b.Resize(600, 1000); err != nil {
		return err
	}
	pr, pc := b.Board()
	if err := b.Resize(1000, 600); err != nil {
		return err
	}
	lr, lc := b.Board()

	fmt.Printf("OK   %-20s %-12s v%d  piles=%d cards=%d options=%d board portrait=%dx%d landscape=%dx%d\n",
		r.Filename, b.Name(), b.Properties().Version, piles, cards, len(b.Options()), pc, pr, lc, lr)
	return b.Err()
}
