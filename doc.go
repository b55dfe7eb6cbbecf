// Package backend provides the ClassPulse API server.

// The application entry point lives in cmd/server. The API is organized
// into subpackages:

// - internal/handlers: HTTP request handlers for all API endpoints
// - internal/models: Data models and database schemas
// - internal/discussion: Discussion thread service and business rules
// - internal/moderation: Content moderation pipeline
// - internal/assistant: AI summary and engagement suggestion generation
// - internal/engagement: Thread activity monitoring
// - internal/events: In-process event bus
// - internal/websocket: WebSocket server for real-time updates
// - internal/store: Thread persistence (in-memory and GORM)
// - internal/database: Database connection and migrations
// - internal/cache: Redis response caching
// - internal/middleware: HTTP middleware (request IDs, metrics)
// - internal/seed: Development data seeding

// See the individual package documentation for detailed API reference.
package backend
