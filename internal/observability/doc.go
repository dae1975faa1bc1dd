// Package observability provides logging and metrics support for the
// article intake service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for sessions, uploads, status polling, and submissions
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("session_id", sessionID).Msg("session created")
//
// Add session context to logger:
//
//	logger = observability.WithSessionContext(logger, requestID, sessionID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("article_intake")
//
// Record metrics:
//
//	metrics.RecordSessionCreated()
//	metrics.RecordUploadCompleted(elapsed.Seconds())
//	metrics.RecordUpstreamRequest("generate_url", elapsed.Seconds())
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithSessionID(ctx, sessionID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	sessionID := observability.SessionIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - session_id: Wizard session identifier
//   - entity_id: Metadata entity identifier (file name or group id)
//   - file_name: Uploaded file name
//   - file_uuid: Backend-assigned file identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
