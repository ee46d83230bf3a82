package helper

import (
	"iter"

	"github.com/hatlonely/datadb/rdb"
	"github.com/pkg/errors"
)

// Chunk 把序列按 size 分组，最后一组可能不足 size
//
// 每次迭代都从头消费 seq，seq 本身可重复迭代时结果也可重复迭代
func Chunk[T any](seq iter.Seq[T], size int) (iter.Seq[[]T], error) {
	if size < 1 {
		return nil, errors.Wrapf(rdb.ErrInvalidChunkSize, "chunk size must be at least 1, got %d", size)
	}
	return func(yield func([]T) bool) {
		chunk := make([]T, 0, size)
		for v := range seq {
			chunk = append(chunk, v)
			if len(chunk) == size {
				if !yield(chunk) {
					return
				}
				chunk = make([]T, 0, size)
			}
		}
		if len(chunk) > 0 {
			yield(chunk)
		}
	}, nil
}
