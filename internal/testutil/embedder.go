package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const FakeDimension = 64

// FakeEmbedder hashes lowercase words into a fixed number of buckets. Texts
// sharing words get similar vectors, which is enough to rank passages.
type FakeEmbedder struct {
	Err           error
	DocumentCalls int
	QueryCalls    int
	Dim           int
}

func (f *FakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.DocumentCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vector(text)
	}
	return out, nil
}

func (f *FakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.QueryCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.vector(text), nil
}

func (f *FakeEmbedder) vector(text string) []float32 {
	dim := f.Dim
	if dim == 0 {
		dim = FakeDimension
	}
	vec := make([]float32, dim)
	// bucket 0 keeps the vector non-zero for texts without words
	vec[0] = 0.1
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[1+int(h.Sum32()%uint32(dim-1))]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
