package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/config"
	"github.com/berfenger/energyopt2mqtt/internal/core/domain"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
	MQTT_PAYLOAD_PRESS   = "PRESS"
	MQTT_PAYLOAD_NONE    = "None"
)

const (
	COMMAND_SWITCH = "switch"
	COMMAND_NUMBER = "number"
	COMMAND_SELECT = "select"
	COMMAND_BUTTON = "button"
)

const (
	STATESTREAM_LEAF_STATE      = "state"
	STATESTREAM_LEAF_ATTRIBUTES = "attributes"
)

var ErrInvalidCommand = errors.New("invalid command")
var ErrInvalidStatestreamMessage = errors.New("invalid statestream message")

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("energyopt_%d", rand.Intn(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:            mqtt.NewClient(opts),
		cfg:               cfg.MQTT,
		commandExtractors: commandExtractors(cfg.MQTT.BaseTopic),
	}
}

type MQTTClient struct {
	client            mqtt.Client
	cfg               config.MQTTConfig
	commandExtractors []commandExtractor
}

type ParsedMQTTCommand struct {
	DeviceId string
	Command  string
	Payload  string
}

type commandExtractor struct {
	command string
	regexp  *regexp.Regexp
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) SwitchStateTopic(switchId string) string {
	return fmt.Sprintf("%s/switch/%s/state", c.baseTopic(), switchId)
}

func (c *MQTTClient) SwitchCommandTopic(switchId string) string {
	return fmt.Sprintf("%s/switch/%s/command", c.baseTopic(), switchId)
}

func (c *MQTTClient) InputNumberStateTopic(id string) string {
	return fmt.Sprintf("%s/number/%s/state", c.baseTopic(), id)
}

func (c *MQTTClient) InputNumberCommandTopic(id string) string {
	return fmt.Sprintf("%s/number/%s/set", c.baseTopic(), id)
}

func (c *MQTTClient) SelectStateTopic(id string) string {
	return fmt.Sprintf("%s/select/%s/state", c.baseTopic(), id)
}

func (c *MQTTClient) SelectCommandTopic(id string) string {
	return fmt.Sprintf("%s/select/%s/set", c.baseTopic(), id)
}

func (c *MQTTClient) ButtonCommandTopic(id string) string {
	return fmt.Sprintf("%s/button/%s/press", c.baseTopic(), id)
}

func (c *MQTTClient) HADiscoveryTopic() string {
	return c.cfg.HADiscoveryTopic
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return parseCommand(c.commandExtractors, msg.Topic(), string(msg.Payload()))
}

func parseCommand(extractors []commandExtractor, topic string, payload string) (*ParsedMQTTCommand, error) {
	for _, ex := range extractors {
		matches := ex.regexp.FindAllStringSubmatch(topic, 1)
		if len(matches) == 0 {
			continue
		}
		if len(matches[0]) != 2 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCommand, topic)
		}
		if ex.command == COMMAND_NUMBER {
			// try to parse a valid number
			if _, err := strconv.ParseFloat(strings.TrimSpace(payload), 64); err != nil {
				return nil, err
			}
		}
		return &ParsedMQTTCommand{
			DeviceId: matches[0][1],
			Command:  ex.command,
			Payload:  payload,
		}, nil
	}
	return nil, ErrInvalidCommand
}

// ParseStatestreamMessage turns a Home Assistant mqtt_statestream message into an
// entity update. Topics look like <base>/<domain>/<object_id>/<leaf>.
func (c *MQTTClient) ParseStatestreamMessage(msg mqtt.Message) (*domain.EntityStateUpdateRequest, error) {
	return parseStatestream(c.cfg.StatestreamBaseTopic, msg.Topic(), msg.Payload())
}

func parseStatestream(base string, topic string, payload []byte) (*domain.EntityStateUpdateRequest, error) {
	prefix := strings.TrimSuffix(base, "/") + "/"
	if base == "" || !strings.HasPrefix(topic, prefix) {
		return nil, ErrInvalidStatestreamMessage
	}
	parts := strings.Split(strings.TrimPrefix(topic, prefix), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrInvalidStatestreamMessage
	}
	req := &domain.EntityStateUpdateRequest{
		EntityId: parts[0] + "." + parts[1],
	}
	switch leaf := parts[2]; leaf {
	case STATESTREAM_LEAF_STATE:
		state := string(payload)
		req.State = &state
	case STATESTREAM_LEAF_ATTRIBUTES:
		var attrs map[string]any
		if err := json.Unmarshal(payload, &attrs); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatestreamMessage, err)
		}
		req.Attributes = attrs
		req.ReplaceAttributes = true
	case "last_changed", "last_updated":
		return nil, ErrInvalidStatestreamMessage
	default:
		var value any
		if err := json.Unmarshal(payload, &value); err != nil {
			value = string(payload)
		}
		req.Attributes = map[string]any{leaf: value}
	}
	return req, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.commandTopic(), 1, handler, continuation, timeout)
}

// SubscribeToStatestream is a no-op reporting success when no statestream base topic is configured.
func (c *MQTTClient) SubscribeToStatestream(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	if c.cfg.StatestreamBaseTopic == "" {
		continuation(nil)
		return
	}
	c.Subscribe(fmt.Sprintf("%s/#", strings.TrimSuffix(c.cfg.StatestreamBaseTopic, "/")), 0, handler, continuation, timeout)
}

func (c *MQTTClient) Unsubscribe(topic string, continuation func(error), timeout time.Duration) {
	token := c.client.Unsubscribe(topic)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT unsubscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) commandTopic() string {
	return fmt.Sprintf("%s/#", c.baseTopic())
}

func commandExtractors(baseTopic string) []commandExtractor {
	return []commandExtractor{
		{command: COMMAND_SWITCH, regexp: switchCommandExtractor(baseTopic)},
		{command: COMMAND_NUMBER, regexp: inputNumberCommandExtractor(baseTopic)},
		{command: COMMAND_SELECT, regexp: selectCommandExtractor(baseTopic)},
		{command: COMMAND_BUTTON, regexp: buttonCommandExtractor(baseTopic)},
	}
}

func switchCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/switch/([a-zA-Z0-9_]+)/command$", baseTopic))
}

func inputNumberCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/number/([a-zA-Z0-9_]+)/set$", baseTopic))
}

func selectCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/select/([a-zA-Z0-9_]+)/set$", baseTopic))
}

func buttonCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/button/([a-zA-Z0-9_]+)/press$", baseTopic))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
