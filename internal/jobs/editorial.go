package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/repository"
	"github.com/damoang/recipe-cms/internal/service"
	"github.com/rs/zerolog"
)

const defaultBatchSize = 100

// AutoCopydeskJob forwards versions that waited in review too long to the copydesk
type AutoCopydeskJob struct {
	versions  repository.VersionRepository
	workflow  service.WorkflowService
	after     time.Duration
	batchSize int
	now       func() time.Time
	log       zerolog.Logger
}

// NewAutoCopydeskJob creates an AutoCopydeskJob
func NewAutoCopydeskJob(versions repository.VersionRepository, workflow service.WorkflowService,
	after time.Duration, batchSize int, log zerolog.Logger) *AutoCopydeskJob {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &AutoCopydeskJob{
		versions:  versions,
		workflow:  workflow,
		after:     after,
		batchSize: batchSize,
		now:       time.Now,
		log:       log,
	}
}

// Run moves each stale review version to copydesk as the system actor.
// Versions whose workflow has no review -> copydesk edge are skipped; the
// listing pages past them by id so they never block the rest.
func (j *AutoCopydeskJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.after)
	moved := 0

	var afterID uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		stale, err := j.versions.ListByStatus(domain.StatusReview, cutoff, afterID, j.batchSize)
		if err != nil {
			return err
		}

		for _, v := range stale {
			afterID = v.ID
			_, err := j.workflow.Transition(ctx, v.ID, domain.StatusCopydesk,
				"Automatically sent to copydesk", domain.SystemActor())
			switch {
			case err == nil:
				moved++
			case skippable(err):
				j.log.Debug().Err(err).Uint64("version_id", v.ID).Msg("auto copydesk skipped")
			default:
				return err
			}
		}
		if len(stale) < j.batchSize {
			break
		}
	}

	if moved > 0 {
		j.log.Info().Int("moved", moved).Msg("auto copydesk")
	}
	return nil
}

// ScheduledPublishJob publishes approved drafts whose publish_at has passed
type ScheduledPublishJob struct {
	posts     repository.PostRepository
	workflow  service.WorkflowService
	batchSize int
	now       func() time.Time
	log       zerolog.Logger
}

// NewScheduledPublishJob creates a ScheduledPublishJob
func NewScheduledPublishJob(posts repository.PostRepository, workflow service.WorkflowService,
	batchSize int, log zerolog.Logger) *ScheduledPublishJob {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &ScheduledPublishJob{
		posts:     posts,
		workflow:  workflow,
		batchSize: batchSize,
		now:       time.Now,
		log:       log,
	}
}

// Run publishes the draft version of every due post
func (j *ScheduledPublishJob) Run(ctx context.Context) error {
	now := j.now()
	published := 0

	var afterID uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		due, err := j.posts.ListDueForPublish(now, afterID, j.batchSize)
		if err != nil {
			return err
		}

		for _, post := range due {
			afterID = post.ID
			if post.DraftVersionID == nil {
				continue
			}
			_, err := j.workflow.Transition(ctx, *post.DraftVersionID, domain.StatusPublished,
				"Scheduled publish", domain.SystemActor())
			switch {
			case err == nil:
				published++
			case skippable(err):
				j.log.Warn().Err(err).Uint64("post_id", post.ID).Msg("scheduled publish skipped")
			default:
				return err
			}
		}
		if len(due) < j.batchSize {
			break
		}
	}

	if published > 0 {
		j.log.Info().Int("published", published).Msg("scheduled publish")
	}
	return nil
}

// skippable errors concern a single item and must not stop the batch
func skippable(err error) bool {
	return errors.Is(err, common.ErrInvalidTransition) ||
		errors.Is(err, common.ErrForbiddenTransition) ||
		errors.Is(err, common.ErrConcurrentModification) ||
		errors.Is(err, common.ErrVersionNotFound) ||
		errors.Is(err, common.ErrOwnerNotFound)
}
