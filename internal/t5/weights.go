package t5

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// Tensor is a dense row-major tensor decoded from a checkpoint.
type Tensor struct {
	Shape []int
	Data  []float32
}

// StateDict maps parameter names to tensors, as torch.save(model.state_dict()) writes them.
type StateDict map[string]Tensor

// StateDictError lists every name that kept a state dict from loading.
type StateDictError struct {
	Missing    []string
	Unexpected []string
	Mismatched []string
}

func (e *StateDictError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing keys: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected keys: "+strings.Join(e.Unexpected, ", "))
	}
	if len(e.Mismatched) > 0 {
		parts = append(parts, "shape mismatch: "+strings.Join(e.Mismatched, ", "))
	}
	return "t5: load state dict: " + strings.Join(parts, "; ")
}

// ReadStateDict decodes a PyTorch checkpoint file (zip or legacy format).
func ReadStateDict(path string) (StateDict, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("t5: read state dict: %w", err)
	}
	return stateDictFrom(obj)
}

// dictGetter matches the plain pickled dict types, which hold wrappers such
// as {"state_dict": OrderedDict(...)}.
type dictGetter interface {
	Get(key interface{}) (interface{}, bool)
}

// nestedKeys name the entries training checkpoints keep the weights under.
var nestedKeys = []string{"state_dict", "model_state_dict"}

func stateDictFrom(obj interface{}) (StateDict, error) {
	for _, key := range nestedKeys {
		var inner interface{}
		switch d := obj.(type) {
		case *types.OrderedDict:
			if e, ok := d.Map[key]; ok {
				inner = e.Value
			}
		case dictGetter:
			inner, _ = d.Get(key)
		}
		if od, ok := inner.(*types.OrderedDict); ok {
			obj = od
			break
		}
	}
	od, ok := obj.(*types.OrderedDict)
	if !ok {
		return nil, fmt.Errorf("t5: read state dict: top-level object is %T, want an ordered dict", obj)
	}

	sd := make(StateDict, len(od.Map))
	for el := od.List.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*types.OrderedDictEntry)
		name, ok := entry.Key.(string)
		if !ok {
			return nil, fmt.Errorf("t5: read state dict: non-string key %v", entry.Key)
		}
		t, ok := entry.Value.(*pytorch.Tensor)
		if !ok {
			return nil, fmt.Errorf("t5: read state dict: %s is %T, want a tensor", name, entry.Value)
		}
		data, err := tensorData(t)
		if err != nil {
			return nil, fmt.Errorf("t5: read state dict: %s: %w", name, err)
		}
		sd[name] = Tensor{Shape: slices.Clone(t.Size), Data: data}
	}
	return sd, nil
}

// tensorData gathers a possibly strided tensor view into a contiguous float32 slice.
func tensorData(t *pytorch.Tensor) ([]float32, error) {
	var src []float32
	switch s := t.Source.(type) {
	case *pytorch.FloatStorage:
		src = s.Data
	case *pytorch.HalfStorage:
		src = s.Data
	case *pytorch.DoubleStorage:
		src = make([]float32, len(s.Data))
		for i, v := range s.Data {
			src[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("unsupported storage %T", t.Source)
	}
	if len(t.Stride) != len(t.Size) {
		return nil, fmt.Errorf("stride rank %d does not match size rank %d", len(t.Stride), len(t.Size))
	}

	n := 1
	for _, s := range t.Size {
		n *= s
	}
	out := make([]float32, n)
	idx := make([]int, len(t.Size))
	for i := 0; i < n; i++ {
		off := t.StorageOffset
		for d, v := range idx {
			off += v * t.Stride[d]
		}
		if off < 0 || off >= len(src) {
			return nil, fmt.Errorf("element offset %d outside storage of %d", off, len(src))
		}
		out[i] = src[off]
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < t.Size[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out, nil
}

// LoadStateDict copies sd into the model. Every owned parameter must be present
// with a matching shape and no unknown names may appear; tied aliases such as
// lm_head.weight are accepted when their shape matches.
func (m *Model) LoadStateDict(sd StateDict) error {
	e := &StateDictError{}
	for _, name := range m.order {
		p := m.params[name]
		t, ok := sd[name]
		switch {
		case !ok:
			e.Missing = append(e.Missing, name)
		case !slices.Equal(p.Shape, t.Shape) || len(t.Data) != len(p.Data):
			e.Mismatched = append(e.Mismatched, fmt.Sprintf("%s %v != %v", name, t.Shape, p.Shape))
		}
	}
	for name, t := range sd {
		if _, ok := m.params[name]; ok {
			continue
		}
		alias, ok := m.aliases[name]
		if !ok {
			e.Unexpected = append(e.Unexpected, name)
			continue
		}
		if !slices.Equal(alias.Shape, t.Shape) {
			e.Mismatched = append(e.Mismatched, fmt.Sprintf("%s %v != %v", name, t.Shape, alias.Shape))
		}
	}
	if len(e.Missing)+len(e.Unexpected)+len(e.Mismatched) > 0 {
		slices.Sort(e.Missing)
		slices.Sort(e.Unexpected)
		slices.Sort(e.Mismatched)
		return e
	}

	for _, name := range m.order {
		copy(m.params[name].Data, sd[name].Data)
	}
	return nil
}

// StateDict exports the owned parameters, the inverse of LoadStateDict.
func (m *Model) StateDict() StateDict {
	sd := make(StateDict, len(m.order))
	for _, name := range m.order {
		p := m.params[name]
		sd[name] = Tensor{Shape: slices.Clone(p.Shape), Data: slices.Clone(p.Data)}
	}
	return sd
}
