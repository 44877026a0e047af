// Package indexer turns repository file contents into embedded, deterministic
// vector records, the unit of retrieval for review context.
package indexer

import (
	"crypto/sha256"
	"fmt"
)

// SplitText slices content into chunks of at most size runes, each chunk
// overlapping the previous by overlap runes so context at boundaries is not
// lost. The split is deterministic: identical content yields identical
// chunks in identical order.
func SplitText(content string, size, overlap int) []string {
	if content == "" {
		return nil
	}
	if size <= 0 {
		size = 2000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(content)
	if len(runes) <= size {
		return []string{content}
	}

	step := size - overlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// ChunkID derives the stable identity of a vector record from the
// repository, file path and chunk position. Re-indexing unchanged content
// produces the same IDs, so upserts overwrite instead of duplicating.
// The digest is formatted as a UUID because that is what the vector store
// accepts as a point ID.
func ChunkID(repoFullName, filePath string, chunkIndex int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%s:%d", repoFullName, filePath, chunkIndex)
	sum := h.Sum(nil)
	return fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16])
}
