// patience_stats 打印存档数据库中每个规则程序的统计
//
// 用法：
//
//	go run ./cmd/patience_stats -db patience.db
//	go run ./cmd/patience_stats -db patience.db -list
//	go run ./cmd/patience_stats -db patience.db -reset klondike.lua
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/decker502/patience/pkg/storage"
)

var (
	dbPath  = flag.String("db", "patience.db", "存档数据库路径")
	list    = flag.Bool("list", false, "列出未归档的存档")
	reset   = flag.String("reset", "", "清除该规则程序的统计")
	verbose = flag.Bool("verbose", false, "显示详细调试信息")
)

func main() {
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	store, err := storage.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if err := run(ctx, store); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		store.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, store *storage.Store) error {
	if *reset != "" {
		if err := store.Reset(ctx, *reset); err != nil {
			return err
		}
		fmt.Printf("Statistics for %s cleared\n", *reset)
		return nil
	}

	if *list {
		games, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, g := range games {
			status := "in progress"
			if g.Won {
				status = "won"
			}
			fmt.Printf("#%-5d %-12s %-20s score %-8s %-12s %-8s saved %s\n",
				g.ID, g.Name, g.Filename, humanize.Comma(int64(g.Score)), status,
				formatDuration(g.PlayTime), humanize.Time(g.Timestamp))
		}
		return nil
	}

	names, err := store.Filenames(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No games played yet")
		return nil
	}
	for _, name := range names {
		st, err := store.Stats(ctx, name)
		if err != nil {
			return err
		}
		rate := 0.0
		if st.Played > 0 {
			rate = float64(st.Won) / float64(st.Played) * 100
		}
		high, best := "-", "-"
		if st.HighScore >= 0 {
			high = humanize.Comma(int64(st.HighScore))
		}
		if st.BestTime >= 0 {
			best = formatDuration(st.BestTime)
		}
		fmt.Printf("%-20s played %-6s won %-6s (%s%%)  high score %-8s best time %s\n",
			name, humanize.Comma(int64(st.Played)), humanize.Comma(int64(st.Won)),
			humanize.FormatFloat("#.#", rate), high, best)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
