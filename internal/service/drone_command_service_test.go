package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
)

// fakeCommandsRepo 指令 Repository 测试替身（内存状态机）
type fakeCommandsRepo struct {
	repository.DroneCommandsRepository

	nextID   int64
	commands map[int64]*domain.DroneCommand
}

func newFakeCommandsRepo() *fakeCommandsRepo {
	return &fakeCommandsRepo{nextID: 1, commands: map[int64]*domain.DroneCommand{}}
}

func (f *fakeCommandsRepo) CreateCommand(_ context.Context, cmd *domain.DroneCommand) (int64, error) {
	id := f.nextID
	f.nextID++
	stored := *cmd
	stored.ID = id
	stored.Status = domain.CommandStatusPending
	f.commands[id] = &stored
	return id, nil
}

func (f *fakeCommandsRepo) GetCommand(_ context.Context, id int64) (*domain.DroneCommand, error) {
	cmd, ok := f.commands[id]
	if !ok {
		return nil, fmt.Errorf("command not found: id=%d", id)
	}
	return cmd, nil
}

func (f *fakeCommandsRepo) MarkSent(_ context.Context, id int64) error {
	cmd := f.commands[id]
	if cmd == nil || cmd.Status != domain.CommandStatusPending {
		return fmt.Errorf("command not in pending state: id=%d", id)
	}
	cmd.Status = domain.CommandStatusSent
	return nil
}

func (f *fakeCommandsRepo) MarkCompleted(_ context.Context, id int64, _ time.Time) error {
	cmd := f.commands[id]
	if cmd == nil || cmd.Status != domain.CommandStatusSent {
		return fmt.Errorf("command not in sent state: id=%d", id)
	}
	cmd.Status = domain.CommandStatusCompleted
	return nil
}

func (f *fakeCommandsRepo) MarkFailed(_ context.Context, id int64, msg string, _ time.Time) error {
	cmd := f.commands[id]
	if cmd == nil || (cmd.Status != domain.CommandStatusPending && cmd.Status != domain.CommandStatusSent) {
		return fmt.Errorf("command already in terminal state: id=%d", id)
	}
	cmd.Status = domain.CommandStatusFailed
	return nil
}

// fakePublisher MQTT 发布测试替身
type fakePublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestSendCommand(t *testing.T) {
	repo := newFakeCommandsRepo()
	pub := &fakePublisher{}
	svc := NewDroneCommandCommandsSvc(repo, pub, "drones/%s/commands", 1, zap.NewNop())

	view, err := svc.SendCommand(context.Background(), SendCommandRequest{
		DroneID:     "drone-001",
		CommandType: domain.CommandTakeoff,
		IssuedBy:    7,
	})
	require.NoError(t, err)
	require.Equal(t, domain.CommandStatusSent, view.Status)
	require.Equal(t, []string{"drones/drone-001/commands"}, pub.topics)

	var envelope commandEnvelope
	require.NoError(t, json.Unmarshal(pub.payloads[0], &envelope))
	require.Equal(t, view.ID, envelope.CommandID)
	require.Equal(t, domain.CommandTakeoff, envelope.CommandType)
}

func TestSendCommand_PublishFailure(t *testing.T) {
	repo := newFakeCommandsRepo()
	pub := &fakePublisher{err: fmt.Errorf("broker unreachable")}
	svc := NewDroneCommandCommandsSvc(repo, pub, "drones/%s/commands", 1, zap.NewNop())

	_, err := svc.SendCommand(context.Background(), SendCommandRequest{
		DroneID:     "drone-001",
		CommandType: domain.CommandLand,
	})
	require.Error(t, err)

	// 下发失败的指令转 failed
	cmd, err := repo.GetCommand(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, domain.CommandStatusFailed, cmd.Status)
}

func TestSendCommand_GotoRequiresTarget(t *testing.T) {
	svc := NewDroneCommandCommandsSvc(newFakeCommandsRepo(), &fakePublisher{}, "drones/%s/commands", 1, zap.NewNop())

	_, err := svc.SendCommand(context.Background(), SendCommandRequest{
		DroneID:     "drone-001",
		CommandType: domain.CommandGoto,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "target coordinates")
}

func TestSendCommand_NoPublisherStaysPending(t *testing.T) {
	repo := newFakeCommandsRepo()
	svc := NewDroneCommandCommandsSvc(repo, nil, "drones/%s/commands", 1, zap.NewNop())

	view, err := svc.SendCommand(context.Background(), SendCommandRequest{
		DroneID:     "drone-001",
		CommandType: domain.CommandHover,
	})
	require.NoError(t, err)
	require.Equal(t, domain.CommandStatusPending, view.Status)
}

func TestHandleAck(t *testing.T) {
	repo := newFakeCommandsRepo()
	pub := &fakePublisher{}
	svc := NewDroneCommandCommandsSvc(repo, pub, "drones/%s/commands", 1, zap.NewNop())

	view, err := svc.SendCommand(context.Background(), SendCommandRequest{
		DroneID:     "drone-001",
		CommandType: domain.CommandReturn,
	})
	require.NoError(t, err)

	require.NoError(t, svc.HandleAck(context.Background(), CommandAck{
		CommandID: view.ID,
		Success:   true,
	}))

	cmd, err := repo.GetCommand(context.Background(), view.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CommandStatusCompleted, cmd.Status)

	// 终态指令不再接受回执
	err = svc.HandleAck(context.Background(), CommandAck{CommandID: view.ID, Success: false})
	require.Error(t, err)
}
