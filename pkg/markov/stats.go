package markov

import (
	"context"
)

// DBStats holds aggregated statistics for the entire store, including a
// list of all matrices and their individual stats.
type DBStats struct {
	Matrices  []MatrixInfo        // A list of matrices in the store
	Stats     map[int]MatrixStats // A mapping of matrix ids to their stats
	TotalRuns int                 // The number of runs across all matrices
}

// MatrixStats holds aggregated statistics for a single stored matrix.
type MatrixStats struct {
	Runs         int // The number of stored runs.
	TotalSteps   int // The sum of steps over all stored runs.
	RecordedRuns int // The number of runs that kept their full path.
}

// GetStats returns a snapshot of statistics for the entire store,
// including global counts and per-matrix stats.
func (s *Store) GetStats(ctx context.Context) (*DBStats, error) {
	matrices, err := s.ListMatrices(ctx)
	if err != nil {
		return nil, err
	}

	var totalRuns int
	if err = s.stmtRunCount.QueryRowContext(ctx).Scan(&totalRuns); err != nil {
		return nil, err
	}

	matrixStats := make(map[int]MatrixStats)
	for _, info := range matrices {
		var stats MatrixStats
		err = s.stmtRunStats.QueryRowContext(ctx, info.Id).Scan(&stats.Runs, &stats.TotalSteps, &stats.RecordedRuns)
		if err != nil {
			return nil, err
		}
		matrixStats[info.Id] = stats
	}

	return &DBStats{
		Matrices:  matrices,
		Stats:     matrixStats,
		TotalRuns: totalRuns,
	}, nil
}
