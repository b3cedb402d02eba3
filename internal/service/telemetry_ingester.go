package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/config"
	"github.com/zanewnch/AIOT-sub003/internal/mqttclient"
)

// TelemetryIngester 遥测接入：订阅无人机上行主题并写库
// 主题约定：drones/<droneId>/position | status | command_ack
type TelemetryIngester struct {
	mqtt         *mqttclient.Client
	cfg          *config.MQTTConfig
	positionCmds DronePositionCommandsSvc
	statusCmds   DroneStatusCommandsSvc
	commandCmds  DroneCommandCommandsSvc
	logger       *zap.Logger
}

// NewTelemetryIngester 创建遥测接入器
func NewTelemetryIngester(
	mqtt *mqttclient.Client,
	cfg *config.MQTTConfig,
	positionCmds DronePositionCommandsSvc,
	statusCmds DroneStatusCommandsSvc,
	commandCmds DroneCommandCommandsSvc,
	logger *zap.Logger,
) *TelemetryIngester {
	return &TelemetryIngester{
		mqtt:         mqtt,
		cfg:          cfg,
		positionCmds: positionCmds,
		statusCmds:   statusCmds,
		commandCmds:  commandCmds,
		logger:       logger,
	}
}

// Start 订阅三类上行主题
func (t *TelemetryIngester) Start() error {
	if err := t.mqtt.Subscribe(t.cfg.PositionTopic, t.cfg.QoS, t.handlePosition); err != nil {
		return err
	}
	if err := t.mqtt.Subscribe(t.cfg.StatusTopic, t.cfg.QoS, t.handleStatus); err != nil {
		return err
	}
	if err := t.mqtt.Subscribe(t.cfg.AckTopic, t.cfg.QoS, t.handleAck); err != nil {
		return err
	}

	t.logger.Info("Telemetry ingester started",
		zap.String("position_topic", t.cfg.PositionTopic),
		zap.String("status_topic", t.cfg.StatusTopic),
		zap.String("ack_topic", t.cfg.AckTopic),
	)
	return nil
}

// Stop 取消订阅
func (t *TelemetryIngester) Stop() error {
	return t.mqtt.Unsubscribe(t.cfg.PositionTopic, t.cfg.StatusTopic, t.cfg.AckTopic)
}

// droneIDFromTopic 从 drones/<droneId>/<kind> 提取 droneId
func droneIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" {
		return "", fmt.Errorf("unexpected topic layout: %s", topic)
	}
	return parts[1], nil
}

func (t *TelemetryIngester) handlePosition(topic string, payload []byte) error {
	droneID, err := droneIDFromTopic(topic)
	if err != nil {
		return err
	}

	var req IngestPositionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal position payload: %w", err)
	}
	// 主题里的 droneId 优先于载荷字段
	req.DroneID = droneID

	if _, err := t.positionCmds.IngestPosition(context.Background(), req); err != nil {
		return fmt.Errorf("failed to ingest position: %w", err)
	}
	return nil
}

func (t *TelemetryIngester) handleStatus(topic string, payload []byte) error {
	droneID, err := droneIDFromTopic(topic)
	if err != nil {
		return err
	}

	var req IngestStatusRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal status payload: %w", err)
	}
	req.DroneID = droneID

	if _, err := t.statusCmds.IngestStatus(context.Background(), req); err != nil {
		return fmt.Errorf("failed to ingest status: %w", err)
	}
	return nil
}

func (t *TelemetryIngester) handleAck(topic string, payload []byte) error {
	if _, err := droneIDFromTopic(topic); err != nil {
		return err
	}

	var ack CommandAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("failed to unmarshal command ack: %w", err)
	}

	if err := t.commandCmds.HandleAck(context.Background(), ack); err != nil {
		return fmt.Errorf("failed to handle command ack: %w", err)
	}
	return nil
}
