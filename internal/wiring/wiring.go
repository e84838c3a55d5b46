// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/pipecache/internal/adapters/cas"
	_ "go.trai.ch/pipecache/internal/adapters/config"
	_ "go.trai.ch/pipecache/internal/adapters/hasher"
	_ "go.trai.ch/pipecache/internal/adapters/logger"
	_ "go.trai.ch/pipecache/internal/adapters/telemetry"
	// Register app and engine nodes.
	_ "go.trai.ch/pipecache/internal/app"
	_ "go.trai.ch/pipecache/internal/engine/materializer"
	_ "go.trai.ch/pipecache/internal/engine/scheduler"
)
