// Package main provides the browsercore CLI application.
package main

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/browsercore/browsercore/pkg/fetch"
	"github.com/browsercore/browsercore/pkg/observability"
	"github.com/spf13/cobra"
)

// loadFlags holds the flags for the load command
type loadFlags struct {
	mode     string
	metrics  bool
	pageSize int
}

var loadOpts loadFlags

var loadCmd = &cobra.Command{
	Use:   "load [urls...]",
	Short: "Load pages through the cache and render them",
	Long: `Load each URL through the page cache. Misses take a connection slot,
are fetched, stored and rendered on the worker pool. Linked resources
are prefetched afterwards unless the mode disables it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := fetch.ParseMode(firstNonEmpty(loadOpts.mode, appConfig.Fetch.Mode))
		if err != nil {
			return err
		}

		a, err := newApp(appConfig, mode, loadOpts.pageSize)
		if err != nil {
			return err
		}

		outcomes := loadPages(cmd.Context(), a, args)
		prefetched := 0
		if a.prefetcher != nil {
			n, err := a.prefetcher.Drain(cmd.Context(), a.dispatcher, a.loader)
			if err != nil {
				logger.Warn("prefetch stopped", observability.Err(err))
			}
			prefetched = n
		}
		a.close()

		out := cmd.OutOrStdout()
		printOutcomes(out, outcomes)
		fmt.Fprintf(out, "\nprefetched %d resources, %d entries cached (%d bytes)\n",
			prefetched, a.cache.Len(), a.cache.Used())

		if loadOpts.metrics {
			fmt.Fprintln(out)
			if err := a.metrics.WriteText(out); err != nil {
				return err
			}
		}

		if n := countFailed(outcomes); n > 0 {
			return fmt.Errorf("%d of %d loads failed", n, len(outcomes))
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVarP(&loadOpts.mode, "mode", "m", "", "browsing mode: normal, turbo, battery-saver, incognito")
	loadCmd.Flags().BoolVar(&loadOpts.metrics, "metrics", false, "print metrics after loading")
	loadCmd.Flags().IntVar(&loadOpts.pageSize, "page-size", 0, "synthetic page size in bytes")
	rootCmd.AddCommand(loadCmd)
}

type pageOutcome struct {
	url      string
	result   *fetch.Result
	checksum uint32
	err      error
}

// loadPages runs one load-and-render task per URL on the dispatcher and
// waits for all of them.
func loadPages(ctx context.Context, a *app, urls []string) []pageOutcome {
	if ctx == nil {
		ctx = context.Background()
	}
	outcomes := make([]pageOutcome, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		i, u := i, u
		outcomes[i].url = u
		wg.Add(1)
		err := a.dispatcher.Submit(func() error {
			defer wg.Done()
			res, err := a.loader.Load(ctx, u)
			if err != nil {
				outcomes[i].err = err
				return err
			}
			outcomes[i].result = res
			outcomes[i].checksum = render(res.Payload)
			return nil
		})
		if err != nil {
			wg.Done()
			outcomes[i].err = err
		}
	}
	wg.Wait()
	return outcomes
}

// render stands in for layout and paint.
func render(page []byte) uint32 {
	return crc32.ChecksumIEEE(page)
}

func printOutcomes(w io.Writer, outcomes []pageOutcome) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tSOURCE\tBYTES\tATTEMPTS\tTIME\tRESULT")
	for _, o := range outcomes {
		if o.err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%v\n", o.url, o.err)
			continue
		}
		r := o.result
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\trendered %08x\n",
			o.url, r.Source, len(r.Payload), r.Attempts, r.Duration, o.checksum)
	}
	tw.Flush()
}

func countFailed(outcomes []pageOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.err != nil {
			n++
		}
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
