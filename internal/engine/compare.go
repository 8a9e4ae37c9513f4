package engine

import (
	"context"
	"errors"
	"fmt"

	"meeple/internal/extraction"
	"meeple/internal/logging"
	"meeple/internal/migrate"
	"meeple/internal/services"
)

// CompareAlgorithms extracts one PDF in all-backends mode and classifies the
// image set under both algorithm pairs. Both passes run while the job's
// workspace is still alive, since the coordinator hashes the extracted
// files directly; the workspace is reaped before return as usual.
func (e *Engine) CompareAlgorithms(ctx context.Context, pdfPath string, specs []ComponentSpec, current, candidate migrate.AlgorithmPair) (*migrate.Report, error) {
	if len(specs) == 0 {
		return nil, errors.New("at least one component required")
	}
	components := make([]migrate.Component, 0, len(specs))
	for _, spec := range specs {
		components = append(components, migrate.Component{
			Name:                spec.Name,
			ExpectedQuantity:    spec.ExpectedQuantity,
			ConfidenceThreshold: spec.ConfidenceThreshold,
			ReferencePaths:      spec.ReferencePaths,
		})
	}

	coordinator := migrate.New(migrate.WithLogger(e.logger))

	var report *migrate.Report
	err := e.governor.Execute(ctx, func(jobCtx context.Context) error {
		ws, err := extraction.AcquireWorkspace(e.cfg.Paths.WorkDir)
		if err != nil {
			return fmt.Errorf("acquire workspace: %w", err)
		}
		defer func() {
			if releaseErr := ws.Release(); releaseErr != nil {
				e.logger.Warn("workspace reap failed",
					logging.String(logging.FieldJobID, ws.JobID),
					logging.Error(releaseErr),
				)
			}
		}()

		jobCtx = services.WithJobID(jobCtx, ws.JobID)
		images, attempts, err := e.orchestrator.Extract(jobCtx, pdfPath, ws, extraction.RunOptions{AllBackends: true})
		e.stats.recordAttempts(attempts)
		if err != nil {
			return err
		}

		report, err = coordinator.Compare(migrate.Request{
			Images:     images,
			Components: components,
			Current:    current,
			Candidate:  candidate,
			Policy:     e.policy(),
		})
		return err
	})
	e.stats.recordJob(err != nil)
	if err != nil {
		return nil, err
	}
	return report, nil
}
