// Package annotate posts rendered reports to the CI annotation surface and
// merges contributions from successive jobs into one running document.
package annotate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// MetadataStore is the durable cross-job key-value store that carries the
// "header already created" flag. Jobs run in separate processes, so the flag
// cannot live in memory.
type MetadataStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key, value string) error
}

// Style selects the CI annotation style.
type Style string

const (
	StyleInfo  Style = "info"
	StyleError Style = "error"
)

// Sink posts a document to the CI system's annotation surface.
type Sink interface {
	Annotate(ctx context.Context, style Style, content, contextID string, appendMode bool) error
}

// headerFlagKey marks that some job already posted the full document header
// for this pipeline run. Cleared only by the surrounding pipeline
// infrastructure.
const headerFlagKey = "bepreport-annotation-header"

// Controller decides whether a rendered document becomes the initial full
// annotation or a job-scoped section appended to the running one.
type Controller struct {
	store     MetadataStore
	sink      Sink
	contextID string
	jobName   string
	logger    zerolog.Logger
}

// NewController wires the merge controller to its collaborators.
func NewController(store MetadataStore, sink Sink, contextID, jobName string, logger zerolog.Logger) *Controller {
	return &Controller{
		store:     store,
		sink:      sink,
		contextID: contextID,
		jobName:   jobName,
		logger:    logger,
	}
}

// Publish posts the document. The first job of a pipeline run sets the
// durable flag and posts the full document in replace mode; later jobs post
// a job-scoped section in append mode. Two jobs racing on an absent flag
// both post a header, which duplicates cosmetics but loses no data.
func (c *Controller) Publish(ctx context.Context, document string, style Style) error {
	exists, err := c.store.Exists(ctx, headerFlagKey)
	if err != nil {
		return fmt.Errorf("check annotation header flag: %w", err)
	}

	if exists {
		section := fmt.Sprintf("### %s\n\n%s", c.jobName, document)
		if err := c.sink.Annotate(ctx, style, section, c.contextID, true); err != nil {
			return fmt.Errorf("append annotation section: %w", err)
		}
		return nil
	}

	// Failing to set the flag only risks a later job re-emitting a full
	// header, so it is logged rather than propagated.
	if err := c.store.Set(ctx, headerFlagKey, "1"); err != nil {
		c.logger.Warn().Err(err).Msg("could not set annotation header flag")
	}

	if err := c.sink.Annotate(ctx, style, document, c.contextID, false); err != nil {
		return fmt.Errorf("post annotation: %w", err)
	}
	return nil
}
