package api

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/simbridge/pkg/config"
	customlog "github.com/open-teleop/simbridge/pkg/log"
	"github.com/open-teleop/simbridge/services"
)

type fakeStatus struct{}

func (fakeStatus) Subscribe(int) (<-chan []byte, func()) {
	ch := make(chan []byte)
	close(ch)
	return ch, func() {}
}

func (fakeStatus) GetStatusHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "success"})
}

func (fakeStatus) GetObstaclesHandler(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusServiceUnavailable, "no session")
}

func testLogger() customlog.Logger {
	return customlog.NewLogrusLoggerWithOutput("error", io.Discard)
}

func getJSON(t *testing.T, app *fiber.App, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return resp.StatusCode, out
}

func TestRoutes(t *testing.T) {
	app := NewApp(fakeStatus{}, testLogger())

	code, body := getJSON(t, app, "/health")
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	code, body = getJSON(t, app, "/api/v1/status")
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "success", body["status"])

	code, body = getJSON(t, app, "/api/v1/obstacles")
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
	assert.Equal(t, "no session", body["error"])

	code, _ = getJSON(t, app, "/ws/cycles")
	assert.Equal(t, fiber.StatusUpgradeRequired, code)

	code, _ = getJSON(t, app, "/nope")
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestConfigRoutes(t *testing.T) {
	scene, err := config.ResolveScene([]string{"panda_1", "fr3_2"}, "")
	require.NoError(t, err)
	svc, err := services.NewBridgeConfigService("", config.DefaultBootstrapConfig(), scene, "robot list", testLogger())
	require.NoError(t, err)

	app := NewApp(fakeStatus{}, testLogger())
	RegisterConfigRoutes(app, svc, testLogger())

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/config/bridge", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-yaml", resp.Header.Get(fiber.HeaderContentType))
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "peer_address:")
	assert.Contains(t, string(body), "tcp://localhost:5555")

	code, out := getJSON(t, app, "/api/v1/config/scene")
	assert.Equal(t, fiber.StatusOK, code)
	sceneOut := out["scene"].(map[string]interface{})
	robots := sceneOut["robots"].([]interface{})
	require.Len(t, robots, 2)
	assert.Equal(t, "fr3_2", robots[1].(map[string]interface{})["name"])
	assert.Equal(t, "robot list", sceneOut["source"])
}
