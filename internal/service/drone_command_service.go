package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
	"github.com/zanewnch/AIOT-sub003/internal/models"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
)

// CommandPublisher 指令下行发布接口（mqttclient.Client 满足此接口）
type CommandPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// DroneCommandQueriesSvc 指令查询服务（CQRS 读侧）
type DroneCommandQueriesSvc interface {
	GetCommand(ctx context.Context, id int64) (*CommandView, error)
	ListCommands(ctx context.Context, req ListCommandsRequest) ([]*CommandView, *models.Pagination, error)
	ListArchivedCommands(ctx context.Context, req ListCommandsRequest) ([]*CommandArchiveView, *models.Pagination, error)
}

// DroneCommandCommandsSvc 指令写服务（CQRS 写侧）
type DroneCommandCommandsSvc interface {
	// SendCommand 创建 pending 指令，经 MQTT 下发后流转为 sent；下发失败转 failed
	SendCommand(ctx context.Context, req SendCommandRequest) (*CommandView, error)
	// HandleAck 处理无人机执行回执：sent -> completed / failed
	HandleAck(ctx context.Context, ack CommandAck) error
}

// ListCommandsRequest 指令列表请求
type ListCommandsRequest struct {
	Page        int
	PageSize    int
	DroneID     string
	CommandType string
	Status      string
	StartTime   *time.Time
	EndTime     *time.Time
}

// droneCommandQueriesSvc 实现
type droneCommandQueriesSvc struct {
	commandsRepo repository.DroneCommandsRepository
	logger       *zap.Logger
}

// NewDroneCommandQueriesSvc 创建指令查询服务
func NewDroneCommandQueriesSvc(commandsRepo repository.DroneCommandsRepository, logger *zap.Logger) DroneCommandQueriesSvc {
	return &droneCommandQueriesSvc{commandsRepo: commandsRepo, logger: logger}
}

// GetCommand 查询单条指令
func (s *droneCommandQueriesSvc) GetCommand(ctx context.Context, id int64) (*CommandView, error) {
	cmd, err := s.commandsRepo.GetCommand(ctx, id)
	if err != nil {
		return nil, err
	}
	return toCommandView(cmd), nil
}

// ListCommands 热表指令列表
func (s *droneCommandQueriesSvc) ListCommands(ctx context.Context, req ListCommandsRequest) ([]*CommandView, *models.Pagination, error) {
	commands, total, err := s.commandsRepo.ListCommands(ctx, repository.CommandFilters{
		DroneID:     req.DroneID,
		CommandType: req.CommandType,
		Status:      req.Status,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	return toCommandViews(commands), models.NewPagination(req.Page, req.PageSize, total), nil
}

// ListArchivedCommands 归档指令列表
func (s *droneCommandQueriesSvc) ListArchivedCommands(ctx context.Context, req ListCommandsRequest) ([]*CommandArchiveView, *models.Pagination, error) {
	records, total, err := s.commandsRepo.ListArchivedCommands(ctx, repository.CommandFilters{
		DroneID:     req.DroneID,
		CommandType: req.CommandType,
		Status:      req.Status,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	return toCommandArchiveViews(records), models.NewPagination(req.Page, req.PageSize, total), nil
}

// droneCommandCommandsSvc 实现
type droneCommandCommandsSvc struct {
	commandsRepo repository.DroneCommandsRepository
	publisher    CommandPublisher // nil 表示 MQTT 未启用，指令停留在 pending
	topicTmpl    string           // 如 "drones/%s/commands"
	qos          byte
	logger       *zap.Logger
}

// NewDroneCommandCommandsSvc 创建指令写服务，publisher 可为 nil
func NewDroneCommandCommandsSvc(commandsRepo repository.DroneCommandsRepository, publisher CommandPublisher, topicTmpl string, qos byte, logger *zap.Logger) DroneCommandCommandsSvc {
	return &droneCommandCommandsSvc{
		commandsRepo: commandsRepo,
		publisher:    publisher,
		topicTmpl:    topicTmpl,
		qos:          qos,
		logger:       logger,
	}
}

// SendCommandRequest 指令下发请求
type SendCommandRequest struct {
	DroneID     string          `json:"droneId"`
	CommandType string          `json:"commandType"`
	CommandData json.RawMessage `json:"commandData"` // goto 的目标坐标等
	IssuedBy    int64           `json:"-"`           // 会话用户
}

// commandEnvelope MQTT 下行载荷
type commandEnvelope struct {
	CommandID   int64           `json:"commandId"`
	DroneID     string          `json:"droneId"`
	CommandType string          `json:"commandType"`
	CommandData json.RawMessage `json:"commandData,omitempty"`
	IssuedAt    int64           `json:"issuedAt"` // Unix 毫秒
}

// SendCommand 指令下发：落库 pending -> 发布 MQTT -> sent / failed
func (s *droneCommandCommandsSvc) SendCommand(ctx context.Context, req SendCommandRequest) (*CommandView, error) {
	// 1. 业务规则校验
	if req.DroneID == "" {
		return nil, fmt.Errorf("drone_id is required")
	}
	if !domain.ValidCommandType(req.CommandType) {
		return nil, fmt.Errorf("invalid command_type: %s", req.CommandType)
	}
	if req.CommandType == domain.CommandGoto && len(req.CommandData) == 0 {
		return nil, fmt.Errorf("goto command requires target coordinates in command_data")
	}

	// 2. 落库 pending
	cmd := &domain.DroneCommand{
		DroneID:     req.DroneID,
		CommandType: req.CommandType,
		Status:      domain.CommandStatusPending,
		IssuedAt:    time.Now(),
	}
	if len(req.CommandData) > 0 {
		if !json.Valid(req.CommandData) {
			return nil, fmt.Errorf("command_data is not valid JSON")
		}
		cmd.CommandData = sql.NullString{String: string(req.CommandData), Valid: true}
	}
	if req.IssuedBy > 0 {
		cmd.IssuedBy = sql.NullInt64{Int64: req.IssuedBy, Valid: true}
	}

	id, err := s.commandsRepo.CreateCommand(ctx, cmd)
	if err != nil {
		return nil, err
	}
	cmd.ID = id

	// 3. MQTT 下发
	if s.publisher == nil {
		s.logger.Warn("MQTT publisher not configured, command stays pending",
			zap.Int64("command_id", id),
			zap.String("drone_id", req.DroneID),
		)
		return toCommandView(cmd), nil
	}

	payload, err := json.Marshal(commandEnvelope{
		CommandID:   id,
		DroneID:     req.DroneID,
		CommandType: req.CommandType,
		CommandData: req.CommandData,
		IssuedAt:    cmd.IssuedAt.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command envelope: %w", err)
	}

	topic := fmt.Sprintf(s.topicTmpl, req.DroneID)
	if err := s.publisher.Publish(topic, s.qos, false, payload); err != nil {
		s.logger.Error("Failed to publish command, marking failed",
			zap.Int64("command_id", id),
			zap.String("topic", topic),
			zap.Error(err),
		)
		if markErr := s.commandsRepo.MarkFailed(ctx, id, fmt.Sprintf("publish failed: %v", err), time.Now()); markErr != nil {
			s.logger.Error("Failed to mark command failed",
				zap.Int64("command_id", id),
				zap.Error(markErr),
			)
		}
		return nil, fmt.Errorf("failed to publish command: %w", err)
	}

	// 4. pending -> sent
	if err := s.commandsRepo.MarkSent(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("Command sent",
		zap.Int64("command_id", id),
		zap.String("drone_id", req.DroneID),
		zap.String("command_type", req.CommandType),
		zap.String("topic", topic),
	)

	return s.reload(ctx, id)
}

func (s *droneCommandCommandsSvc) reload(ctx context.Context, id int64) (*CommandView, error) {
	cmd, err := s.commandsRepo.GetCommand(ctx, id)
	if err != nil {
		return nil, err
	}
	return toCommandView(cmd), nil
}

// CommandAck 无人机执行回执（MQTT drones/+/command_ack 载荷）
type CommandAck struct {
	CommandID    int64  `json:"commandId"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
	CompletedAt  int64  `json:"completedAt"` // Unix 毫秒，0 取服务端时间
}

// HandleAck 执行回执处理
func (s *droneCommandCommandsSvc) HandleAck(ctx context.Context, ack CommandAck) error {
	if ack.CommandID <= 0 {
		return fmt.Errorf("command_id is required")
	}

	completedAt := time.Now()
	if ack.CompletedAt > 0 {
		completedAt = time.UnixMilli(ack.CompletedAt)
	}

	if ack.Success {
		if err := s.commandsRepo.MarkCompleted(ctx, ack.CommandID, completedAt); err != nil {
			return err
		}
		s.logger.Info("Command completed", zap.Int64("command_id", ack.CommandID))
		return nil
	}

	msg := ack.ErrorMessage
	if msg == "" {
		msg = "execution failed"
	}
	if err := s.commandsRepo.MarkFailed(ctx, ack.CommandID, msg, completedAt); err != nil {
		return err
	}
	s.logger.Warn("Command failed",
		zap.Int64("command_id", ack.CommandID),
		zap.String("error_message", msg),
	)
	return nil
}
