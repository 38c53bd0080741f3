package domain

import (
	"context"
	"strings"
)

// CollectStream drains chunks and returns the fragments concatenated in
// arrival order. It returns the first chunk error, or ctx.Err() if the
// context ends before the stream does.
func CollectStream(ctx context.Context, chunks <-chan StreamChunk) (string, error) {
	var builder strings.Builder

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				return builder.String(), nil
			}

			if chunk.Error != nil {
				return "", chunk.Error
			}

			builder.WriteString(chunk.Delta)

			if chunk.Done {
				return builder.String(), nil
			}
		}
	}
}
