package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithRequestID(ctx, "req-123")

		result := RequestIDFromContext(ctx)
		assert.Equal(t, "req-123", result)
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		ctx := context.Background()
		result := RequestIDFromContext(ctx)
		assert.Equal(t, "", result)
	})
}

func TestSessionIDContext(t *testing.T) {
	t.Run("stores and retrieves session ID", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithSessionID(ctx, "sess-456")

		result := SessionIDFromContext(ctx)
		assert.Equal(t, "sess-456", result)
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		ctx := context.Background()
		result := SessionIDFromContext(ctx)
		assert.Equal(t, "", result)
	})
}

func TestEntityIDContext(t *testing.T) {
	t.Run("stores and retrieves entity ID", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithEntityID(ctx, "report.pdf")

		result := EntityIDFromContext(ctx)
		assert.Equal(t, "report.pdf", result)
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		ctx := context.Background()
		result := EntityIDFromContext(ctx)
		assert.Equal(t, "", result)
	})
}

func TestFileUUIDContext(t *testing.T) {
	t.Run("stores and retrieves file UUID", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithFileUUID(ctx, "uuid-abc")

		result := FileUUIDFromContext(ctx)
		assert.Equal(t, "uuid-abc", result)
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		ctx := context.Background()
		result := FileUUIDFromContext(ctx)
		assert.Equal(t, "", result)
	})
}

func TestSessionContextFull(t *testing.T) {
	t.Run("stores and retrieves full session context", func(t *testing.T) {
		ctx := context.Background()
		sc := SessionContext{
			RequestID: "req-123",
			SessionID: "sess-456",
			EntityID:  "group-789",
			FileUUID:  "uuid-abc",
		}

		ctx = WithSessionContextFull(ctx, sc)
		result := SessionContextFromContext(ctx)

		assert.Equal(t, sc.RequestID, result.RequestID)
		assert.Equal(t, sc.SessionID, result.SessionID)
		assert.Equal(t, sc.EntityID, result.EntityID)
		assert.Equal(t, sc.FileUUID, result.FileUUID)
	})

	t.Run("handles partial context", func(t *testing.T) {
		ctx := context.Background()
		sc := SessionContext{
			RequestID: "req-only",
		}

		ctx = WithSessionContextFull(ctx, sc)
		result := SessionContextFromContext(ctx)

		assert.Equal(t, "req-only", result.RequestID)
		assert.Equal(t, "", result.SessionID)
		assert.Equal(t, "", result.EntityID)
	})

	t.Run("returns empty context when nothing set", func(t *testing.T) {
		ctx := context.Background()
		result := SessionContextFromContext(ctx)

		assert.Equal(t, SessionContext{}, result)
	})
}

func TestContextChaining(t *testing.T) {
	ctx := context.Background()

	// Chain multiple context additions
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithEntityID(ctx, "entity-1")
	ctx = WithFileUUID(ctx, "uuid-1")

	// All values should be retrievable
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "sess-1", SessionIDFromContext(ctx))
	assert.Equal(t, "entity-1", EntityIDFromContext(ctx))
	assert.Equal(t, "uuid-1", FileUUIDFromContext(ctx))
}

func TestContextOverwrite(t *testing.T) {
	ctx := context.Background()

	// Set initial values
	ctx = WithRequestID(ctx, "req-1")

	// Overwrite with new values
	ctx = WithRequestID(ctx, "req-2")

	// Should have new value
	assert.Equal(t, "req-2", RequestIDFromContext(ctx))
}
