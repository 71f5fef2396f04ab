package t5

import "math"

// negInf masks attention scores. It stays finite so a fully masked row
// softmaxes to a uniform distribution instead of NaN.
const negInf = -math.MaxFloat32

type activation func(float32) float32

var activations = map[string]activation{
	"relu": func(x float32) float32 {
		if x < 0 {
			return 0
		}
		return x
	},
	"gelu": func(x float32) float32 {
		return float32(0.5 * float64(x) * (1 + math.Erf(float64(x)/math.Sqrt2)))
	},
	"gelu_new": func(x float32) float32 {
		v := float64(x)
		return float32(0.5 * v * (1 + math.Tanh(math.Sqrt(2/math.Pi)*(v+0.044715*v*v*v))))
	},
	"silu": func(x float32) float32 {
		return float32(float64(x) / (1 + math.Exp(-float64(x))))
	},
}

func init() {
	activations["swish"] = activations["silu"]
}

// matVec computes out = W·x for a row-major [rows, cols] weight.
func matVec(w *Param, x, out []float32) {
	cols := w.Shape[1]
	for r := range out {
		out[r] = dot(w.Data[r*cols:(r+1)*cols], x)
	}
}

func project(w *Param, x []float32) []float32 {
	out := make([]float32, w.Shape[0])
	matVec(w, x, out)
	return out
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func axpy(alpha float32, x, y []float32) {
	for i := range x {
		y[i] += alpha * x[i]
	}
}

func addInPlace(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// rmsNorm is T5's LayerNorm: no mean subtraction and no bias.
func rmsNorm(x, weight []float32, eps float64, out []float32) {
	var ss float64
	for _, v := range x {
		ss += float64(v) * float64(v)
	}
	inv := float32(1 / math.Sqrt(ss/float64(len(x))+eps))
	for i, v := range x {
		out[i] = weight[i] * (v * inv)
	}
}

func softmax(x []float32) {
	hi := x[0]
	for _, v := range x[1:] {
		if v > hi {
			hi = v
		}
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - hi))
		x[i] = float32(e)
		sum += e
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / sum)
	}
}

func finite(x []float32) bool {
	for _, v := range x {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// argmax returns the first index holding the maximum value.
func argmax(x []float32) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}
