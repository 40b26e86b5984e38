package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aretw0/tally"
)

func main() {
	accounts := flag.Int("accounts", 500, "Number of accounts in the document")
	writers := flag.Int("writers", 8, "Concurrent clients saving keyed stores")
	saves := flag.Int("saves", 200, "Saves per writer")
	keep := flag.Bool("keep", false, "Keep the benchmark data after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "tally_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	service, err := tally.New(benchDir, tally.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	ctx := context.Background()
	defer service.Close(ctx)

	// 1. One large accounts save: normalization plus a full rewrite.
	list := make([]any, *accounts)
	for i := range list {
		list[i] = map[string]any{
			"name":           fmt.Sprintf("<b>Account %d</b>", i),
			"category":       "Bench",
			"monthlyPayment": fmt.Sprintf("%d.99", i),
		}
	}
	start := time.Now()
	if err := service.SaveStore(ctx, "accounts", list, ""); err != nil {
		panic(err)
	}
	fmt.Printf("Accounts save (%d items): %v\n", *accounts, time.Since(start))

	// 2. Concurrent keyed saves, all serialized by the write queue.
	fmt.Printf("Running %d writers x %d saves...\n", *writers, *saves)
	start = time.Now()
	var wg sync.WaitGroup
	for w := 0; w < *writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < *saves; i++ {
				key := fmt.Sprintf("writer-%d", w)
				if err := service.SaveStore(ctx, "profile", map[string]any{"n": i}, key); err != nil {
					panic(err)
				}
			}
		}(w)
	}
	wg.Wait()
	total := *writers * *saves
	elapsed := time.Since(start)
	fmt.Printf("Keyed saves: %d in %v (%.0f saves/s)\n", total, elapsed, float64(total)/elapsed.Seconds())

	// 3. Reads go straight to disk.
	start = time.Now()
	const reads = 100
	for i := 0; i < reads; i++ {
		doc, err := service.Load(ctx)
		if err != nil {
			panic(err)
		}
		if len(doc.Profile) != *writers {
			panic(fmt.Sprintf("lost keyed saves: got %d keys, want %d", len(doc.Profile), *writers))
		}
	}
	fmt.Printf("Load: %v per read\n", time.Since(start)/reads)
}
