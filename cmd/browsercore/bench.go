// Package main provides the browsercore CLI application.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/browsercore/browsercore/pkg/fetch"
	"github.com/spf13/cobra"
)

// benchFlags holds the flags for the bench command
type benchFlags struct {
	requests int
	keys     int
	pageSize int
	seed     uint64
	metrics  bool
}

var benchOpts benchFlags

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run synthetic loads over a key space",
	Long: `Submit synthetic page loads to the worker pool. URLs are drawn from a
Zipf distribution over --keys pages, so a few pages are hot and most are
cold. Prints the cache hit rate and loader statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchOpts.requests <= 0 || benchOpts.keys <= 0 {
			return fmt.Errorf("--requests and --keys must be positive")
		}

		a, err := newApp(appConfig, fetch.ModeNormal, benchOpts.pageSize)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		urls := benchURLs(benchOpts.requests, benchOpts.keys, benchOpts.seed)
		var failed atomic.Int64
		start := time.Now()
		for _, u := range urls {
			u := u
			if err := a.dispatcher.Submit(func() error {
				_, err := a.loader.Load(ctx, u)
				if err != nil {
					failed.Add(1)
				}
				return err
			}); err != nil {
				return err
			}
		}
		a.close()
		elapsed := time.Since(start)

		cs := a.cache.Stats()
		ls := a.loader.Stats()
		ds := a.dispatcher.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "requests:      %d in %s (%.0f/s)\n", len(urls), elapsed.Round(time.Millisecond),
			float64(len(urls))/elapsed.Seconds())
		fmt.Fprintf(out, "hit rate:      %.1f%%\n", cs.HitRate()*100)
		fmt.Fprintf(out, "fetches:       %d (failed %d)\n", ls.Fetches, failed.Load())
		fmt.Fprintf(out, "evictions:     %d\n", cs.Evictions)
		fmt.Fprintf(out, "cache:         %d entries, %d/%d bytes\n", cs.Entries, cs.UsedBytes, cs.CapacityBytes)
		fmt.Fprintf(out, "avg fetch:     %s\n", ls.AvgLatency)
		fmt.Fprintf(out, "avg task:      %s\n", ds.AvgDuration)
		if a.prefetcher != nil {
			fmt.Fprintf(out, "prefetch drop: %d\n", a.prefetcher.Dropped())
		}

		if benchOpts.metrics {
			fmt.Fprintln(out)
			return a.metrics.WriteText(out)
		}
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVarP(&benchOpts.requests, "requests", "n", 1000, "number of loads")
	benchCmd.Flags().IntVarP(&benchOpts.keys, "keys", "k", 200, "number of distinct pages")
	benchCmd.Flags().IntVar(&benchOpts.pageSize, "page-size", 64*1024, "synthetic page size in bytes")
	benchCmd.Flags().Uint64Var(&benchOpts.seed, "seed", 1, "random seed")
	benchCmd.Flags().BoolVar(&benchOpts.metrics, "metrics", false, "print metrics after the run")
	rootCmd.AddCommand(benchCmd)
}

// benchURLs returns n URLs over keys distinct pages with a Zipf skew.
func benchURLs(n, keys int, seed uint64) []string {
	r := rand.New(rand.NewPCG(seed, seed))
	zipf := rand.NewZipf(r, 1.1, 1, uint64(keys-1))
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://bench.test/page/%d", zipf.Uint64())
	}
	return urls
}
