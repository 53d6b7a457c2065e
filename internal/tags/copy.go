package tags

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Copier copies tag type definitions from one project to another
type Copier struct {
	store  Store
	logger *logrus.Logger
}

// NewCopier creates a new tag copier
func NewCopier(store Store, logger *logrus.Logger) *Copier {
	return &Copier{
		store:  store,
		logger: logger,
	}
}

// CopyProjectTags creates a copy of every tag type of the source project in the target
// project and returns the new tag types. Each tag is saved on its own, so a failure leaves
// the tags saved before it in place.
func (c *Copier) CopyProjectTags(ctx context.Context, sourceGUID, targetGUID string) ([]*TagType, error) {
	source, err := c.store.GetProjectByGUID(ctx, sourceGUID)
	if err != nil {
		return nil, fmt.Errorf("loading source project: %w", err)
	}
	target, err := c.store.GetProjectByGUID(ctx, targetGUID)
	if err != nil {
		return nil, fmt.Errorf("loading target project: %w", err)
	}
	if source.ID == target.ID {
		return nil, fmt.Errorf("source and target are the same project: %s", sourceGUID)
	}

	tagTypes, err := c.store.ListTagTypes(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("listing source tags: %w", err)
	}

	copied := make([]*TagType, 0, len(tagTypes))
	for _, tag := range tagTypes {
		clone := tag.CloneFor(target.ID)
		if err := c.store.CreateTagType(ctx, clone); err != nil {
			return copied, fmt.Errorf("copying tag %q: %w", tag.Name, err)
		}
		copied = append(copied, clone)
		c.logger.Infof("Saved tag %s (new id = %d)", clone.Name, clone.ID)
	}

	c.logger.WithFields(logrus.Fields{
		"source": source.GUID,
		"target": target.GUID,
		"count":  len(copied),
	}).Debug("Project tags copied")

	return copied, nil
}
