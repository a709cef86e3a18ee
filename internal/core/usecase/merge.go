package usecase

import (
	"fmt"
	"sort"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

// mergeByChunkKey unions the pools in order, keeping the higher score for a
// repeated (document, chunk index) pair. First-seen position is kept so the
// later stable sort is deterministic.
func mergeByChunkKey(pools ...[]domain.SearchResult) []domain.SearchResult {
	size := 0
	for _, pool := range pools {
		size += len(pool)
	}

	positions := make(map[string]int, size)
	out := make([]domain.SearchResult, 0, size)
	for _, pool := range pools {
		for _, result := range pool {
			key := resultChunkKey(result)
			if pos, ok := positions[key]; ok {
				if result.Score > out[pos].Score {
					out[pos] = result
				}
				continue
			}
			positions[key] = len(out)
			out = append(out, result)
		}
	}
	return out
}

func sortByScore(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

func trimResults(results []domain.SearchResult, limit int) []domain.SearchResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}

func resultChunkKey(result domain.SearchResult) string {
	return fmt.Sprintf("%s:%d", result.DocumentID, result.ChunkIndex)
}
