package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/energyopt2mqtt/internal/config"
	"github.com/berfenger/energyopt2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *MQTTClient {
	cfg := &config.Config{MQTT: config.MQTTConfig{Host: "localhost", Port: 1883, BaseTopic: "energyopt", HADiscoveryTopic: "homeassistant"}}
	return CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)
}

func TestBridgeSensorDiscovery(t *testing.T) {
	client := testClient()
	dev := domain.BridgeDevice("energyopt")
	bridge := domain.BridgeSensors(dev)[0]

	msg := GenericSensorToHADiscoveryMessage(client, bridge)
	assert.Equal(t, "energyopt/bridge/state", msg.StateTopic)
	assert.Equal(t, MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Empty(t, msg.AvTopic)
	assert.Equal(t, "homeassistant/binary_sensor/"+dev.Id+"/bridge/config", HADiscoverySensorTopic(client.HADiscoveryTopic(), bridge))
}

func TestSelectDiscovery(t *testing.T) {
	client := testClient()
	sel := domain.OptimizerSelects(domain.BridgeDevice("energyopt"))[0]

	msg := GenericSelectToHADiscoveryMessage(client, sel)
	assert.Equal(t, "energyopt/select/strategy/set", msg.CommandTopic)
	assert.Equal(t, "energyopt/select/strategy/state", msg.StateTopic)
	assert.Equal(t, []string{"minimize_cost", "maximize_self_consumption", "grid_independence", "balanced"}, msg.Options)
}

func TestButtonAndNumberDiscovery(t *testing.T) {
	client := testClient()
	dev := domain.BridgeDevice("energyopt")

	button := GenericButtonToHADiscoveryMessage(client, domain.OptimizerButtons(dev)[0])
	assert.Equal(t, "energyopt/button/trigger_optimization/press", button.CommandTopic)
	assert.Empty(t, button.StateTopic)

	number := GenericInputNumberToHADiscoveryMessage(client, domain.OptimizerInputNumbers(dev, domain.DefaultOptimizerConfig())[0])
	payload, err := json.Marshal(number)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, 0.0, decoded["min"])
	assert.Equal(t, 100.0, decoded["max"])
	assert.Equal(t, "slider", decoded["mode"])
	assert.Equal(t, "energyopt/number/min_soc/set", decoded["command_topic"])
}
