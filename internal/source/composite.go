package source

import (
	"context"
	"fmt"
)

// Composite fans a single source-config out to several underlying Adapters and
// unions their listings, so a single-source KB that wants to treat several
// local roots (or a mix of adapter types) as one source can do so under
// source_type_tag "mixed". Modeled on the original_source/ mixed_source.py
// composite adapter.
//
// Composite does not implement DeltaCapable even if every member does: mixing
// delta cursors across heterogeneous underlying adapters has no single
// well-defined token, so a "mixed" source always does a full List.
type Composite struct {
	members []Adapter
}

// NewComposite builds a Composite over members. At least one member is
// required.
func NewComposite(members ...Adapter) (*Composite, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("source: composite requires at least one member adapter")
	}
	return &Composite{members: members}, nil
}

// List concatenates every member's listing. original_uri collisions across
// members are not deduplicated — each member is expected to produce a
// disjoint namespace (e.g. distinct root paths); a collision indicates a
// misconfigured set of members, and each colliding descriptor is returned,
// classified and processed on its own.
func (c *Composite) List(ctx context.Context) ([]Descriptor, error) {
	var all []Descriptor
	for i, m := range c.members {
		descriptors, err := m.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("source: composite member %d: %w", i, err)
		}
		all = append(all, descriptors...)
	}
	return all, nil
}

// Fetch tries each member in order until one does not return ErrNotFound.
func (c *Composite) Fetch(ctx context.Context, originalURI string) (*Content, error) {
	var lastErr error
	for _, m := range c.members {
		content, err := m.Fetch(ctx, originalURI)
		if err == nil {
			return content, nil
		}
		if err == ErrNotFound {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return nil, lastErr
}
