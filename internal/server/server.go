package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clipcast/config"
	"clipcast/internal/notify"
	"clipcast/internal/router"
	"clipcast/internal/service"
	"clipcast/log"
)

// StartBackend wires the service graph and blocks serving HTTP.
func StartBackend() error {
	gin.SetMode(gin.ReleaseMode)

	hub := notify.NewHub()
	svc := service.NewService(hub)
	svc.RestoreSessions()
	defer svc.Shutdown()

	engine := gin.Default()
	router.SetupRouter(engine, svc, hub)

	addr := fmt.Sprintf("%s:%d", config.Conf.Server.Host, config.Conf.Server.Port)
	log.GetLogger().Info("backend listening", zap.String("addr", addr))
	return engine.Run(addr)
}
