package observability

import (
	"context"
	"log/slog"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// LoggingHooks logs every lifecycle event to logger.
// Node events are logged at debug level, transitions at info and errors at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter",
				"case_id", e.CaseID, "pack_id", e.PackID, "node_id", e.NodeID, "type", e.NodeType)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave",
				"case_id", e.CaseID, "pack_id", e.PackID, "node_id", e.NodeID)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "transition",
				"case_id", e.CaseID,
				"kind", e.Kind,
				"pack_id", e.PackID,
				"from", e.FromNode,
				"to_pack", e.ToPack,
				"to", e.ToNode,
				"duration", e.Duration,
			)
		},
		OnError: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.WarnContext(ctx, "transition_failed",
				"case_id", e.CaseID,
				"kind", e.Kind,
				"pack_id", e.PackID,
				"from", e.FromNode,
				"to_pack", e.ToPack,
				"err", e.Err,
			)
		},
	}
}
