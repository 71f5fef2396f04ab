package t5

import "math"

// relativePositionBucket maps a key-minus-query offset to one of numBuckets
// buckets: half exact, half log-spaced up to maxDistance. Decoder self-attention
// is unidirectional, so future offsets collapse to bucket 0.
func relativePositionBucket(relative int, bidirectional bool, numBuckets, maxDistance int) int {
	bucket := 0
	if bidirectional {
		numBuckets /= 2
		if relative > 0 {
			bucket += numBuckets
		}
		if relative < 0 {
			relative = -relative
		}
	} else {
		if relative > 0 {
			relative = 0
		}
		relative = -relative
	}

	maxExact := numBuckets / 2
	if relative < maxExact {
		return bucket + relative
	}

	large := maxExact + int(math.Log(float64(relative)/float64(maxExact))/
		math.Log(float64(maxDistance)/float64(maxExact))*float64(numBuckets-maxExact))
	if large > numBuckets-1 {
		large = numBuckets - 1
	}
	return bucket + large
}

// positionBias returns a [heads × keys] additive bias for one query position.
func (m *Model) positionBias(table *Param, query, keys int, bidirectional bool) []float32 {
	heads := m.cfg.NumHeads
	bias := make([]float32, heads*keys)
	for j := 0; j < keys; j++ {
		b := relativePositionBucket(j-query, bidirectional,
			m.cfg.RelativeAttentionNumBuckets, m.cfg.RelativeAttentionMaxDistance)
		row := table.Data[b*heads : (b+1)*heads]
		for h := 0; h < heads; h++ {
			bias[h*keys+j] = row[h]
		}
	}
	return bias
}
