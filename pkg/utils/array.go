package utils

// Splits a sequence into consecutive chunks of size elements. The last chunk
// may be shorter.
func Chunks[T any](input []T, size int) [][]T {
	if size <= 0 {
		return [][]T{input}
	}

	chunks := make([][]T, 0, (len(input)+size-1)/size)

	for start := 0; start < len(input); start += size {
		chunks = append(chunks, input[start:min(start+size, len(input))])
	}

	return chunks
}
