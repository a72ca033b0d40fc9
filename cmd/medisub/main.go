package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/medisub/internal/clock"
	"github.com/smallbiznis/medisub/internal/config"
	"github.com/smallbiznis/medisub/internal/migration"
	"github.com/smallbiznis/medisub/internal/observability"
	"github.com/smallbiznis/medisub/internal/scheduler"
	"github.com/smallbiznis/medisub/internal/server"
	"github.com/smallbiznis/medisub/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API and the domains behind it
		server.Module,

		// Background jobs
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
