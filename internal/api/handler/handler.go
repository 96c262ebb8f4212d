package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/dispatch"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/reconcile"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/session"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/storage"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/vault"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/shared/postgresql"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
	Storage      *storage.Storage
	Dispatcher   *dispatch.Dispatcher
	Reconciler   *reconcile.Reconciler
	Vault        *vault.Vault
	Freshness    *session.Freshness
	WebhookToken string
}

// ContextUserIDKey is the gin context key under which the identity
// middleware stores the authenticated caller id.
const ContextUserIDKey = "user_id"

func callerID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}
