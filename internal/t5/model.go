package t5

import (
	"fmt"
)

// Param is one named, row-major float32 parameter.
type Param struct {
	Name  string
	Shape []int
	Data  []float32
}

func (p *Param) row(i int) []float32 {
	cols := p.Shape[1]
	return p.Data[i*cols : (i+1)*cols]
}

type attention struct {
	q, k, v, o *Param
	// relBias is set on block 0 only; later blocks reuse it.
	relBias *Param
}

type feedForward struct {
	wi, wi0, wi1, wo *Param
	gated            bool
	act              activation
}

type encoderBlock struct {
	selfNorm *Param
	self     attention
	ffNorm   *Param
	ff       feedForward
}

type decoderBlock struct {
	selfNorm  *Param
	self      attention
	crossNorm *Param
	cross     attention
	ffNorm    *Param
	ff        feedForward
}

// Model is a T5 encoder-decoder with every parameter held in memory.
// A Model is read-only once weights are loaded and safe for concurrent Generate calls.
type Model struct {
	cfg Config

	shared      *Param
	encoder     []encoderBlock
	encoderNorm *Param
	decoder     []decoderBlock
	decoderNorm *Param
	lmHead      *Param

	params  map[string]*Param
	order   []string
	aliases map[string]*Param
}

// New builds the architecture described by cfg with zeroed parameters.
func New(cfg Config) (*Model, error) {
	if cfg.NumDecoderLayers == 0 {
		cfg.NumDecoderLayers = cfg.NumLayers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gated, act, _ := cfg.feedForward()

	m := &Model{
		cfg:     cfg,
		params:  make(map[string]*Param),
		aliases: make(map[string]*Param),
	}
	d, inner := cfg.DModel, cfg.NumHeads*cfg.DKV

	m.shared = m.register("shared.weight", cfg.VocabSize, d)
	m.aliases["encoder.embed_tokens.weight"] = m.shared
	m.aliases["decoder.embed_tokens.weight"] = m.shared

	newAttention := func(prefix string, withBias bool) attention {
		a := attention{
			q: m.register(prefix+".q.weight", inner, d),
			k: m.register(prefix+".k.weight", inner, d),
			v: m.register(prefix+".v.weight", inner, d),
			o: m.register(prefix+".o.weight", d, inner),
		}
		if withBias {
			a.relBias = m.register(prefix+".relative_attention_bias.weight",
				cfg.RelativeAttentionNumBuckets, cfg.NumHeads)
		}
		return a
	}
	newFeedForward := func(prefix string) feedForward {
		ff := feedForward{gated: gated, act: act}
		if gated {
			ff.wi0 = m.register(prefix+".wi_0.weight", cfg.DFF, d)
			ff.wi1 = m.register(prefix+".wi_1.weight", cfg.DFF, d)
		} else {
			ff.wi = m.register(prefix+".wi.weight", cfg.DFF, d)
		}
		ff.wo = m.register(prefix+".wo.weight", d, cfg.DFF)
		return ff
	}

	for i := 0; i < cfg.NumLayers; i++ {
		p := fmt.Sprintf("encoder.block.%d.layer", i)
		m.encoder = append(m.encoder, encoderBlock{
			self:     newAttention(p+".0.SelfAttention", i == 0),
			selfNorm: m.register(p+".0.layer_norm.weight", d),
			ff:       newFeedForward(p + ".1.DenseReluDense"),
			ffNorm:   m.register(p+".1.layer_norm.weight", d),
		})
	}
	m.encoderNorm = m.register("encoder.final_layer_norm.weight", d)

	for i := 0; i < cfg.NumDecoderLayers; i++ {
		p := fmt.Sprintf("decoder.block.%d.layer", i)
		m.decoder = append(m.decoder, decoderBlock{
			self:      newAttention(p+".0.SelfAttention", i == 0),
			selfNorm:  m.register(p+".0.layer_norm.weight", d),
			cross:     newAttention(p+".1.EncDecAttention", false),
			crossNorm: m.register(p+".1.layer_norm.weight", d),
			ff:        newFeedForward(p + ".2.DenseReluDense"),
			ffNorm:    m.register(p+".2.layer_norm.weight", d),
		})
	}
	m.decoderNorm = m.register("decoder.final_layer_norm.weight", d)

	if cfg.TieWordEmbeddings {
		m.lmHead = m.shared
		m.aliases["lm_head.weight"] = m.shared
	} else {
		m.lmHead = m.register("lm_head.weight", cfg.VocabSize, d)
	}
	return m, nil
}

func (m *Model) register(name string, shape ...int) *Param {
	n := 1
	for _, s := range shape {
		n *= s
	}
	p := &Param{Name: name, Shape: shape, Data: make([]float32, n)}
	m.params[name] = p
	m.order = append(m.order, name)
	return p
}

// Config returns the configuration the model was built from.
func (m *Model) Config() Config { return m.cfg }

// Parameters returns every owned parameter in registration order.
func (m *Model) Parameters() []*Param {
	out := make([]*Param, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.params[name])
	}
	return out
}

// Parameter looks up a parameter by state-dict name, including tied aliases.
func (m *Model) Parameter(name string) (*Param, bool) {
	if p, ok := m.params[name]; ok {
		return p, true
	}
	p, ok := m.aliases[name]
	return p, ok
}
