package tensor

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// parallelRows is the row count below which MatVec stays on one goroutine.
const parallelRows = 256

// MatVec computes dst = w * x. Large matrices are split into row bands and
// computed concurrently; the context aborts outstanding bands.
func MatVec(ctx context.Context, dst []float32, w *Mat, x []float32) error {
	if w.R == 0 || w.C == 0 {
		return nil
	}
	if len(dst) < w.R || len(x) < w.C {
		panic("matvec shape mismatch")
	}

	workers := min(runtime.GOMAXPROCS(0), w.R/parallelRows)
	if workers <= 1 {
		matVecRange(dst, w, x, 0, w.R)
		return ctx.Err()
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := (w.R + workers - 1) / workers
	for rs := 0; rs < w.R; rs += chunk {
		re := min(rs+chunk, w.R)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			matVecRange(dst, w, x, rs, re)
			return nil
		})
	}
	return g.Wait()
}

func matVecRange(dst []float32, w *Mat, x []float32, rs, re int) {
	for r := rs; r < re; r++ {
		row := w.Data[r*w.Stride : r*w.Stride+w.C]
		dst[r] = Dot(row, x[:w.C])
	}
}
