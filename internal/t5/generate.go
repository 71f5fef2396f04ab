package t5

import (
	"errors"
	"fmt"
	"math"
)

// DefaultMaxLength matches the transformers generation default.
const DefaultMaxLength = 20

// ErrNonFinite is returned when a decoding step produces NaN or Inf logits.
var ErrNonFinite = errors.New("t5: non-finite logits")

// GenerateOptions bounds greedy decoding.
type GenerateOptions struct {
	// MaxLength caps the output length, decoder start token included.
	MaxLength int
}

// Generate runs the encoder over inputIDs and decodes greedily until the
// end-of-sequence token or MaxLength. The returned ids start with the decoder
// start token. attentionMask may be nil; otherwise 0 marks padding.
func (m *Model) Generate(inputIDs, attentionMask []int, opts GenerateOptions) ([]int, error) {
	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	mask, err := m.checkInput(inputIDs, attentionMask)
	if err != nil {
		return nil, err
	}

	enc := m.encode(inputIDs, mask)
	caches := make([]layerCache, len(m.decoder))
	for l := range m.decoder {
		cross := &m.decoder[l].cross
		for _, h := range enc {
			caches[l].crossK = append(caches[l].crossK, project(cross.k, h))
			caches[l].crossV = append(caches[l].crossV, project(cross.v, h))
		}
	}

	out := []int{m.cfg.DecoderStartTokenID}
	for len(out) < maxLen {
		logits := m.decodeStep(out[len(out)-1], len(out)-1, caches, mask)
		if !finite(logits) {
			return nil, fmt.Errorf("%w at step %d", ErrNonFinite, len(out))
		}
		next := argmax(logits)
		out = append(out, next)
		if next == m.cfg.EOSTokenID {
			break
		}
	}
	return out, nil
}

func (m *Model) checkInput(ids, attentionMask []int) ([]bool, error) {
	if len(ids) == 0 {
		return nil, errors.New("t5: generate: empty input")
	}
	if attentionMask != nil && len(attentionMask) != len(ids) {
		return nil, fmt.Errorf("t5: generate: attention mask has %d entries for %d ids", len(attentionMask), len(ids))
	}
	mask := make([]bool, len(ids))
	for i, id := range ids {
		if id < 0 || id >= m.cfg.VocabSize {
			return nil, fmt.Errorf("t5: generate: token id %d outside vocabulary of %d", id, m.cfg.VocabSize)
		}
		mask[i] = attentionMask == nil || attentionMask[i] != 0
	}
	return mask, nil
}

func (m *Model) encode(ids []int, mask []bool) [][]float32 {
	d, n := m.cfg.DModel, len(ids)
	eps := m.cfg.LayerNormEpsilon

	h := make([][]float32, n)
	for i, id := range ids {
		h[i] = append([]float32(nil), m.shared.row(id)...)
	}
	bias := make([][]float32, n)
	for i := range bias {
		bias[i] = m.positionBias(m.encoder[0].self.relBias, i, n, true)
	}

	x := make([][]float32, n)
	for i := range x {
		x[i] = make([]float32, d)
	}
	tmp := make([]float32, d)
	for l := range m.encoder {
		blk := &m.encoder[l]
		for i := range h {
			rmsNorm(h[i], blk.selfNorm.Data, eps, x[i])
		}
		keys := make([][]float32, n)
		values := make([][]float32, n)
		for j := range x {
			keys[j] = project(blk.self.k, x[j])
			values[j] = project(blk.self.v, x[j])
		}
		attended := make([][]float32, n)
		for i := range x {
			attended[i] = m.attend(&blk.self, project(blk.self.q, x[i]), keys, values, bias[i], mask)
		}
		for i := range h {
			addInPlace(h[i], attended[i])
			rmsNorm(h[i], blk.ffNorm.Data, eps, x[i])
			m.feedForward(&blk.ff, x[i], tmp)
			addInPlace(h[i], tmp)
		}
	}

	for i := range h {
		out := make([]float32, d)
		rmsNorm(h[i], m.encoderNorm.Data, eps, out)
		h[i] = out
	}
	return h
}

type layerCache struct {
	selfK, selfV   [][]float32
	crossK, crossV [][]float32
}

// decodeStep feeds one token at position pos and returns next-token logits.
func (m *Model) decodeStep(token, pos int, caches []layerCache, encMask []bool) []float32 {
	d := m.cfg.DModel
	eps := m.cfg.LayerNormEpsilon

	h := append([]float32(nil), m.shared.row(token)...)
	x := make([]float32, d)
	tmp := make([]float32, d)
	selfBias := m.positionBias(m.decoder[0].self.relBias, pos, pos+1, false)

	for l := range m.decoder {
		blk, c := &m.decoder[l], &caches[l]

		rmsNorm(h, blk.selfNorm.Data, eps, x)
		c.selfK = append(c.selfK, project(blk.self.k, x))
		c.selfV = append(c.selfV, project(blk.self.v, x))
		addInPlace(h, m.attend(&blk.self, project(blk.self.q, x), c.selfK, c.selfV, selfBias, nil))

		rmsNorm(h, blk.crossNorm.Data, eps, x)
		addInPlace(h, m.attend(&blk.cross, project(blk.cross.q, x), c.crossK, c.crossV, nil, encMask))

		rmsNorm(h, blk.ffNorm.Data, eps, x)
		m.feedForward(&blk.ff, x, tmp)
		addInPlace(h, tmp)
	}

	rmsNorm(h, m.decoderNorm.Data, eps, x)
	if m.cfg.TieWordEmbeddings {
		scale := float32(1 / math.Sqrt(float64(d)))
		for i := range x {
			x[i] *= scale
		}
	}
	return project(m.lmHead, x)
}

// attend is unscaled multi-head dot-product attention for one query vector.
// bias is [heads × keys] or nil; mask marks usable keys or is nil.
func (m *Model) attend(a *attention, q []float32, keys, values [][]float32, bias []float32, mask []bool) []float32 {
	heads, dkv := m.cfg.NumHeads, m.cfg.DKV
	nk := len(keys)
	scores := make([]float32, nk)
	ctx := make([]float32, heads*dkv)

	for h := 0; h < heads; h++ {
		lo, hi := h*dkv, (h+1)*dkv
		qh := q[lo:hi]
		for j := range keys {
			if mask != nil && !mask[j] {
				scores[j] = negInf
				continue
			}
			s := dot(qh, keys[j][lo:hi])
			if bias != nil {
				s += bias[h*nk+j]
			}
			scores[j] = s
		}
		softmax(scores)
		for j, p := range scores {
			if p != 0 {
				axpy(p, values[j][lo:hi], ctx[lo:hi])
			}
		}
	}
	return project(a.o, ctx)
}

func (m *Model) feedForward(ff *feedForward, x, out []float32) {
	var hidden []float32
	if ff.gated {
		hidden = project(ff.wi0, x)
		linear := project(ff.wi1, x)
		for i, v := range hidden {
			hidden[i] = ff.act(v) * linear[i]
		}
	} else {
		hidden = project(ff.wi, x)
		for i, v := range hidden {
			hidden[i] = ff.act(v)
		}
	}
	matVec(ff.wo, hidden, out)
}
