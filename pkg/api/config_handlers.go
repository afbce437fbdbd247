package api

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-teleop/simbridge/pkg/log"
	"github.com/open-teleop/simbridge/services"
)

// ConfigHandler holds dependencies for configuration API endpoints.
type ConfigHandler struct {
	configService services.BridgeConfigService
	logger        customlog.Logger
}

// NewConfigHandler creates a new handler for configuration endpoints.
func NewConfigHandler(configService services.BridgeConfigService, logger customlog.Logger) *ConfigHandler {
	if configService == nil {
		panic("ConfigService cannot be nil in NewConfigHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewConfigHandler")
	}
	return &ConfigHandler{
		configService: configService,
		logger:        logger,
	}
}

// RegisterConfigRoutes registers the read-only configuration endpoints.
func RegisterConfigRoutes(app *fiber.App, configService services.BridgeConfigService, logger customlog.Logger) {
	h := NewConfigHandler(configService, logger)

	apiGroup := app.Group("/api/v1/config")
	apiGroup.Get("/bridge", h.handleGetBridgeConfig)
	apiGroup.Get("/scene", h.handleGetScene)

	logger.Infof("Registered configuration API endpoints under /api/v1/config")
}

// handleGetBridgeConfig returns the effective bridge configuration as YAML.
func (h *ConfigHandler) handleGetBridgeConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling GET request for /api/v1/config/bridge")
	yamlData, err := h.configService.GetCurrentConfigYAML()
	if err != nil {
		h.logger.Errorf("Failed to render bridge config YAML: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to retrieve configuration: %v", err),
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}

func (h *ConfigHandler) handleGetScene(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "success",
		"scene":  h.configService.GetScene(),
	})
}
