package usecase

import "github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"

// FoldStats derives run statistics as a pure fold over the final
// outcome list. Nothing increments counters mid-run.
func FoldStats(outcomes []domain.PaperOutcome) domain.RunStats {
	stats := domain.RunStats{TotalPapers: len(outcomes)}
	for _, o := range outcomes {
		if o.Stage1 != nil && o.Stage1.Pass {
			stats.Stage1Passed++
		}
		if o.Stage2 != nil && o.Stage2.Pass {
			stats.Stage2Passed++
		}
		if o.Stage3 != nil && o.Stage3.Pass {
			stats.Stage3Passed++
		}
	}
	return stats
}
