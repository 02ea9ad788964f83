package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aguas/internal/clock"
	"github.com/smallbiznis/aguas/internal/config"
	"github.com/smallbiznis/aguas/internal/migration"
	"github.com/smallbiznis/aguas/internal/observability"
	"github.com/smallbiznis/aguas/internal/seed"
	"github.com/smallbiznis/aguas/internal/server"
	"github.com/smallbiznis/aguas/pkg/db"
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

		// Schema and reference data must exist before the listener starts.
		migration.Module,
		seed.Module,

		server.Module,
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
