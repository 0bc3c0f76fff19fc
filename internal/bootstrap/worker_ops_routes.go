package bootstrap

import (
	"mailparser_server/infra/database"
	"mailparser_server/internal/stream"
	"mailparser_server/pkg/apperr"
	"mailparser_server/pkg/logger"
	"mailparser_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// maxReplay caps one dead-letter replay request.
const maxReplay = 1000

// RegisterOpsRoutes registers operator endpoints: store pool statistics and
// dead-letter replay.
func RegisterOpsRoutes(router fiber.Router, deps *Dependencies) {
	ops := router.Group("/ops")

	ops.Get("/stats", func(c *fiber.Ctx) error {
		stats := fiber.Map{}
		if deps.Postgres != nil {
			stats["postgres"] = database.GetPoolStats(deps.Postgres.Pool)
			stats["pool_health"] = deps.Pools.AllHealth()
		}
		if deps.Redis != nil {
			stats["redis"] = database.GetRedisStats(deps.Redis)
			pending, err := stream.NewRedisStream(deps.Redis, deps.Config.ConsumerGroup).Pending(c.UserContext(), deps.Config.ParseStream)
			if err == nil {
				stats["stream_pending"] = pending
			}
		}
		return response.OK(c, stats)
	})

	// Moves dead-lettered parse jobs back onto the parse stream.
	ops.Post("/dlq/replay", func(c *fiber.Ctx) error {
		if deps.Producer == nil {
			return apperr.Unavailable("redis")
		}
		count := c.QueryInt("count", 100)
		if count <= 0 || count > maxReplay {
			return apperr.InvalidInput("count", "must be between 1 and 1000")
		}

		dlq := stream.DeadLetterPrefix + deps.Config.ParseStream
		n, err := deps.Producer.Replay(c.UserContext(), dlq, deps.Config.ParseStream, int64(count))
		if err != nil {
			return apperr.DatabaseError("dlq replay", err)
		}

		logger.Info("Replayed %d dead-lettered jobs from %s", n, dlq)
		return response.OK(c, fiber.Map{"replayed": n, "from": dlq})
	})
}
