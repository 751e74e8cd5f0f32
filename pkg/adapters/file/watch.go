package file

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/loam/pkg/core"
)

// Watch reports the id of every pack document that is written, created, renamed or removed.
// The channel is closed when ctx is done.
func (s *Source) Watch(ctx context.Context) (<-chan string, error) {
	repo, err := s.repository()
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", s.Dir, err)
	}
	watchable, ok := repo.(core.Watchable)
	if !ok {
		return nil, fmt.Errorf("failed to watch %s: repository does not support watching", s.Dir)
	}

	pattern := "*.{" + strings.Join(trimDots(packExtensions), ",") + "}"
	events, err := watchable.Watch(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start pack watcher: %w", err)
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				if !validPackName(evt.ID) {
					continue
				}
				select {
				case out <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func trimDots(exts []string) []string {
	out := make([]string, len(exts))
	for i, ext := range exts {
		out[i] = strings.TrimPrefix(ext, ".")
	}
	return out
}
