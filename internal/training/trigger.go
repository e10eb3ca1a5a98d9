package training

import (
	"context"
	"errors"
	"fmt"

	"github.com/CamiloRuizJ/rexeli/constants"
)

// ScanTriggers walks the enabled per-type triggers and starts a
// fine-tuning job for every type whose verified corpus has crossed its
// next threshold. One failing type does not stop the scan; errors are
// collected and returned joined.
// PollRunningJobs advances every in-flight job against the remote
// training service. With autoDeploy set, a job reaching succeeded during
// this pass gets its model registered and activated immediately.
func (c *Coordinator) PollRunningJobs(ctx context.Context, autoDeploy bool) error {
	jobs, err := c.jobs.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("list non-terminal jobs: %w", err)
	}

	var errs []error
	for _, job := range jobs {
		updated, err := c.UpdateFineTuningJobStatus(ctx, job.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("poll job %s: %w", job.ID, err))
			continue
		}
		if autoDeploy && updated.Status == constants.FineTuningSucceeded {
			if _, err := c.DeployFineTunedModel(ctx, updated.ID, true); err != nil {
				errs = append(errs, fmt.Errorf("deploy model for job %s: %w", updated.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) ScanTriggers(ctx context.Context, baseModel string, validationFraction float64) error {
	triggers, err := c.triggers.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list triggers: %w", err)
	}

	var errs []error
	for _, t := range triggers {
		count, err := c.docs.CountVerified(ctx, t.DocumentType)
		if err != nil {
			errs = append(errs, fmt.Errorf("count verified for %s: %w", t.DocumentType, err))
			continue
		}
		if !t.ShouldFire(count) {
			continue
		}

		c.log.Info("training.trigger.firing",
			"document_type", string(t.DocumentType),
			"verified_count", count,
			"threshold", t.NextTriggerAt,
		)

		_, err = c.StartFineTuningJob(ctx, t.DocumentType, Options{
			BaseModel:          baseModel,
			MinCorpusSize:      t.MinCorpusSize,
			ValidationFraction: validationFraction,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("start job for %s: %w", t.DocumentType, err))
			continue
		}
		if err := c.triggers.MarkTriggered(ctx, t.DocumentType, count); err != nil {
			errs = append(errs, fmt.Errorf("mark triggered for %s: %w", t.DocumentType, err))
		}
	}
	return errors.Join(errs...)
}
