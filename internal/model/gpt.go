package model

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/wick/internal/safetensors"
	"github.com/samcharles93/wick/internal/tensor"
)

type gptLayer struct {
	wq, wk, wv, wo *tensor.Mat
	fc1, fc2       *tensor.Mat
}

// GPT is a decoder-only transformer: token and position embeddings, RMSNorm,
// causal multi-head attention and a ReLU MLP per layer, then lm_head.
// Every Forward recomputes the whole window; no state is kept between calls,
// so a loaded GPT is safe for concurrent use.
type GPT struct {
	cfg    Config
	hidden int
	wte    *tensor.Mat
	wpe    *tensor.Mat
	layers []gptLayer
	lmHead *tensor.Mat
}

// LoadGPT reads weights from a safetensors file. Tensors are decoded
// concurrently and rounded to dtype.
func LoadGPT(ctx context.Context, weightsPath string, cfg Config, dtype DType) (*GPT, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := safetensors.Open(weightsPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	m := &GPT{cfg: cfg, layers: make([]gptLayer, cfg.NLayer)}
	type slot struct {
		dst  **tensor.Mat
		name string
	}
	slots := []slot{{&m.wte, "wte"}, {&m.wpe, "wpe"}, {&m.lmHead, "lm_head"}}
	for i := range m.layers {
		l := &m.layers[i]
		for _, s := range []struct {
			dst  **tensor.Mat
			base string
		}{
			{&l.wq, "attn_wq"}, {&l.wk, "attn_wk"}, {&l.wv, "attn_wv"}, {&l.wo, "attn_wo"},
			{&l.fc1, "mlp_fc1"}, {&l.fc2, "mlp_fc2"},
		} {
			slots = append(slots, slot{s.dst, fmt.Sprintf("layer%d.%s", i, s.base)})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, s := range slots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mat, err := tensor.LoadSafetensorsMat(st, s.name)
			if err != nil {
				return err
			}
			dtype.Round(mat.Data)
			*s.dst = mat
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := m.checkShapes(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *GPT) checkShapes() error {
	e, v := m.cfg.NEmbd, m.cfg.VocabSize
	check := func(name string, w *tensor.Mat, r, c int) error {
		if w.R != r || w.C != c {
			return fmt.Errorf("%s: expected shape [%d %d], got [%d %d]", name, r, c, w.R, w.C)
		}
		return nil
	}
	if err := check("wte", m.wte, v, e); err != nil {
		return err
	}
	if err := check("wpe", m.wpe, m.cfg.BlockSize, e); err != nil {
		return err
	}
	if err := check("lm_head", m.lmHead, v, e); err != nil {
		return err
	}
	for i, l := range m.layers {
		if i == 0 {
			m.hidden = l.fc1.R
		}
		for name, w := range map[string]*tensor.Mat{"attn_wq": l.wq, "attn_wk": l.wk, "attn_wv": l.wv, "attn_wo": l.wo} {
			if err := check(fmt.Sprintf("layer%d.%s", i, name), w, e, e); err != nil {
				return err
			}
		}
		if err := check(fmt.Sprintf("layer%d.mlp_fc1", i), l.fc1, m.hidden, e); err != nil {
			return err
		}
		if err := check(fmt.Sprintf("layer%d.mlp_fc2", i), l.fc2, e, m.hidden); err != nil {
			return err
		}
	}
	return nil
}

func (m *GPT) ContextLength() int { return m.cfg.BlockSize }
func (m *GPT) VocabSize() int     { return m.cfg.VocabSize }

// Forward returns next-token logits for the last position of window.
func (m *GPT) Forward(ctx context.Context, window []uint32) ([]float32, error) {
	n := len(window)
	if n == 0 {
		return nil, fmt.Errorf("empty window")
	}
	if n > m.cfg.BlockSize {
		return nil, fmt.Errorf("window of %d tokens exceeds block size %d", n, m.cfg.BlockSize)
	}
	e := m.cfg.NEmbd
	eps := m.cfg.NormEps

	xs := make([][]float32, n)
	for t, id := range window {
		if int(id) >= m.cfg.VocabSize {
			return nil, fmt.Errorf("token id out of range: %d", id)
		}
		x := make([]float32, e)
		copy(x, m.wte.Row(int(id)))
		tensor.Add(x, m.wpe.Row(t))
		tensor.RMSNorm(x, x, nil, eps)
		xs[t] = x
	}

	q, k, v := rows(n, e), rows(n, e), rows(n, e)
	xn := make([]float32, e)
	attn := make([]float32, e)
	proj := make([]float32, e)
	h := make([]float32, m.hidden)
	scores := make([]float32, n)

	for li := range m.layers {
		l := &m.layers[li]
		for t := range n {
			tensor.RMSNorm(xn, xs[t], nil, eps)
			for _, mv := range []struct {
				dst []float32
				w   *tensor.Mat
			}{{q[t], l.wq}, {k[t], l.wk}, {v[t], l.wv}} {
				if err := tensor.MatVec(ctx, mv.dst, mv.w, xn); err != nil {
					return nil, err
				}
			}
		}
		for t := range n {
			m.attend(attn, q[t], k[:t+1], v[:t+1], scores[:t+1])
			if err := tensor.MatVec(ctx, proj, l.wo, attn); err != nil {
				return nil, err
			}
			tensor.Add(xs[t], proj)

			tensor.RMSNorm(xn, xs[t], nil, eps)
			if err := tensor.MatVec(ctx, h, l.fc1, xn); err != nil {
				return nil, err
			}
			tensor.ReLU(h)
			if err := tensor.MatVec(ctx, proj, l.fc2, h); err != nil {
				return nil, err
			}
			tensor.Add(xs[t], proj)
		}
	}

	logits := make([]float32, m.cfg.VocabSize)
	if err := tensor.MatVec(ctx, logits, m.lmHead, xs[n-1]); err != nil {
		return nil, err
	}
	return logits, nil
}

// attend writes the causal attention output for one query into dst.
func (m *GPT) attend(dst, q []float32, keys, values [][]float32, scores []float32) {
	hd := m.cfg.NEmbd / m.cfg.NHead
	scale := float32(1 / math.Sqrt(float64(hd)))
	for head := range m.cfg.NHead {
		hs := head * hd
		for s := range keys {
			scores[s] = tensor.Dot(q[hs:hs+hd], keys[s][hs:hs+hd]) * scale
		}
		tensor.Softmax(scores)
		out := dst[hs : hs+hd]
		clear(out)
		for s, w := range scores {
			vs := values[s][hs : hs+hd]
			for j := range out {
				out[j] += w * vs[j]
			}
		}
	}
}

func rows(n, width int) [][]float32 {
	buf := make([]float32, n*width)
	out := make([][]float32, n)
	for i := range out {
		out[i] = buf[i*width : (i+1)*width]
	}
	return out
}
