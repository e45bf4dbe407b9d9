package main

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/certi-mate/compliance-api/internal/model"
)

var (
	batchFile        string
	batchOut         string
	batchConcurrency int
	batchUser        string
)

// batchLine is one JSONL input row.
type batchLine struct {
	Type  model.DiagnosticType `json:"type"`
	Input model.ProductInput   `json:"input"`
}

// batchResult is one JSONL output row. Failed rows carry the error and no
// result so a rerun can filter on the error field.
type batchResult struct {
	Type    model.DiagnosticType    `json:"type"`
	Product string                  `json:"product"`
	Result  *model.DiagnosticResult `json:"result,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run diagnostics for every line of a JSONL file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		f, err := os.Open(batchFile)
		if err != nil {
			return eris.Wrap(err, "open batch file")
		}
		defer f.Close()

		var lines []batchLine
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}
			var line batchLine
			if err := json.Unmarshal(raw, &line); err != nil {
				return eris.Wrapf(err, "parse batch line %d", len(lines)+1)
			}
			lines = append(lines, line)
		}
		if err := scanner.Err(); err != nil {
			return eris.Wrap(err, "read batch file")
		}

		caller := env.Gate.Resolve(ctx, batchUser)
		results := make([]batchResult, len(lines))
		var okCount int
		var mu sync.Mutex

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchConcurrency)
		for i, line := range lines {
			g.Go(func() error {
				res := batchResult{Type: line.Type, Product: line.Input.ProductName}
				result, err := env.Orch.Run(gctx, line.Type, line.Input, caller)
				if err != nil {
					res.Error = err.Error()
					zap.L().Warn("batch line failed",
						zap.Int("line", i+1),
						zap.String("product", line.Input.ProductName),
						zap.Error(err),
					)
				} else {
					res.Result = result
					mu.Lock()
					okCount++
					mu.Unlock()
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch run")
		}

		out := os.Stdout
		if batchOut != "" {
			out, err = os.Create(batchOut)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer out.Close()
		}
		enc := json.NewEncoder(out)
		for _, res := range results {
			if err := enc.Encode(res); err != nil {
				return eris.Wrap(err, "write result")
			}
		}

		zap.L().Info("batch complete",
			zap.Int("total", len(lines)),
			zap.Int("succeeded", okCount),
			zap.Int("failed", len(lines)-okCount),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "JSONL input file (required)")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "JSONL output file (default stdout)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 2, "concurrent diagnostics")
	batchCmd.Flags().StringVar(&batchUser, "user", "", "user ID to attribute the diagnostics to")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}
