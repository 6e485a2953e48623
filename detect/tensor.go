package detect

import (
	"context"
	"errors"
	"math"
)

var ErrShape = errors.New("tensor shape does not match data")

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Dims []int     `msgpack:"dims" json:"dims"`
	Data []float32 `msgpack:"data" json:"data"`
}

// Size is the element count the dims describe. It is -1 when a dim is not
// positive or the product overflows int.
func (t Tensor) Size() int {
	if len(t.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Dims {
		if d <= 0 || n > math.MaxInt/d {
			return -1
		}
		n *= d
	}
	return n
}

// Validate checks that Data holds exactly the elements Dims describes.
func (t Tensor) Validate() error {
	if n := t.Size(); n < 0 || n != len(t.Data) {
		return ErrShape
	}
	return nil
}

// Engine runs a model on named input tensors and returns its named outputs.
type Engine interface {
	Run(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error)
}

type EngineFunc func(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error)

func (fn EngineFunc) Run(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
	return fn(ctx, inputs)
}
