package modeltest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
	"slices"
	"strconv"
	"testing"

	"github.com/mlorentedev/gramfix/internal/t5"
)

// Pickle opcodes used by torch.save for a float32 state dict.
const (
	opProto      = 0x80
	opGlobal     = 'c'
	opMark       = '('
	opTuple      = 't'
	opEmptyTuple = ')'
	opReduce     = 'R'
	opBinUnicode = 'X'
	opBinInt     = 'J'
	opNewFalse   = 0x89
	opBinPersID  = 'Q'
	opSetItems   = 'u'
	opStop       = '.'
)

// Checkpoint encodes sd the way torch.save writes a state dict: a zip with
// archive/data.pkl holding an OrderedDict of rebuilt tensors and one
// archive/data/<key> file of little-endian float32 per storage. A non-empty
// nest wraps the state dict in an outer OrderedDict under that key.
func Checkpoint(t testing.TB, sd t5.StateDict, nest string) []byte {
	t.Helper()
	names := make([]string, 0, len(sd))
	for name := range sd {
		names = append(names, name)
	}
	slices.Sort(names)

	var p pickler
	p.op(opProto, 2)
	if nest != "" {
		p.orderedDict()
		p.op(opMark)
		p.str(nest)
	}
	p.orderedDict()
	p.op(opMark)
	for i, name := range names {
		p.str(name)
		p.tensor(strconv.Itoa(i), sd[name])
	}
	p.op(opSetItems)
	if nest != "" {
		p.op(opSetItems)
	}
	p.op(opStop)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name string, data []byte) {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: "archive/" + name, Method: zip.Store})
		if err != nil {
			t.Fatalf("modeltest: checkpoint %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("modeltest: checkpoint %s: %v", name, err)
		}
	}
	write("data.pkl", p.Bytes())
	for i, name := range names {
		data := make([]byte, 4*len(sd[name].Data))
		for j, v := range sd[name].Data {
			binary.LittleEndian.PutUint32(data[4*j:], math.Float32bits(v))
		}
		write("data/"+strconv.Itoa(i), data)
	}
	write("version", []byte("3\n"))
	if err := zw.Close(); err != nil {
		t.Fatalf("modeltest: checkpoint: %v", err)
	}
	return buf.Bytes()
}

type pickler struct {
	bytes.Buffer
}

func (p *pickler) op(b ...byte) { p.Write(b) }

func (p *pickler) global(module, name string) {
	p.WriteByte(opGlobal)
	p.WriteString(module + "\n" + name + "\n")
}

func (p *pickler) str(s string) {
	p.WriteByte(opBinUnicode)
	p.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(s))))
	p.WriteString(s)
}

func (p *pickler) binInt(n int) {
	p.WriteByte(opBinInt)
	p.Write(binary.LittleEndian.AppendUint32(nil, uint32(int32(n))))
}

func (p *pickler) intTuple(vals []int) {
	p.op(opMark)
	for _, v := range vals {
		p.binInt(v)
	}
	p.op(opTuple)
}

func (p *pickler) orderedDict() {
	p.global("collections", "OrderedDict")
	p.op(opEmptyTuple, opReduce)
}

// tensor emits torch._utils._rebuild_tensor_v2(storage, 0, size, stride,
// False, OrderedDict()) over a contiguous storage.
func (p *pickler) tensor(key string, t t5.Tensor) {
	stride := make([]int, len(t.Shape))
	step := 1
	for d := len(t.Shape) - 1; d >= 0; d-- {
		stride[d] = step
		step *= t.Shape[d]
	}

	p.global("torch._utils", "_rebuild_tensor_v2")
	p.op(opMark)
	p.op(opMark)
	p.str("storage")
	p.global("torch", "FloatStorage")
	p.str(key)
	p.str("cpu")
	p.binInt(len(t.Data))
	p.op(opTuple, opBinPersID)
	p.binInt(0)
	p.intTuple(t.Shape)
	p.intTuple(stride)
	p.op(opNewFalse)
	p.orderedDict()
	p.op(opTuple, opReduce)
}
