package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/models"
	"github.com/zanewnch/AIOT-sub003/internal/service"
)

type fakeCommandQueries struct {
	commands map[int64]*service.CommandView
}

func (f *fakeCommandQueries) GetCommand(_ context.Context, id int64) (*service.CommandView, error) {
	cmd, found := f.commands[id]
	if !found {
		return nil, fmt.Errorf("command not found: %d", id)
	}
	return cmd, nil
}

func (f *fakeCommandQueries) ListCommands(_ context.Context, req service.ListCommandsRequest) ([]*service.CommandView, *models.Pagination, error) {
	views := make([]*service.CommandView, 0, len(f.commands))
	for _, cmd := range f.commands {
		views = append(views, cmd)
	}
	return views, models.NewPagination(req.Page, req.PageSize, len(views)), nil
}

func (f *fakeCommandQueries) ListArchivedCommands(_ context.Context, req service.ListCommandsRequest) ([]*service.CommandArchiveView, *models.Pagination, error) {
	return nil, models.NewPagination(req.Page, req.PageSize, 0), nil
}

type fakeCommandCommands struct {
	lastSend service.SendCommandRequest
	sendErr  error
}

func (f *fakeCommandCommands) SendCommand(_ context.Context, req service.SendCommandRequest) (*service.CommandView, error) {
	f.lastSend = req
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &service.CommandView{ID: 99, DroneID: req.DroneID, CommandType: req.CommandType, Status: "sent"}, nil
}

func (f *fakeCommandCommands) HandleAck(_ context.Context, _ service.CommandAck) error { return nil }

func newCommandTestServer(t *testing.T, perms ...string) (*fakeCommandCommands, *http.Cookie, http.HandlerFunc) {
	t.Helper()
	auth := newFakeAuthService()
	cookie := auth.seedSession(perms...)
	mw := NewSessionMiddleware(auth, "aiot_session", zap.NewNop())

	commands := &fakeCommandCommands{}
	handler := NewDroneCommandHandler(&fakeCommandQueries{}, commands, zap.NewNop())
	return commands, cookie, mw.Wrap(handler.Send)
}

func TestSendCommand_IssuedByFromSession(t *testing.T) {
	commands, cookie, send := newCommandTestServer(t, "drone:command")

	// 请求体里伪造的 issuedBy 必须被会话覆盖
	body := strings.NewReader(`{"droneId":"drone-001","commandType":"takeoff","issuedBy":1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/drone-commands/send", body)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	send(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, int64(42), commands.lastSend.IssuedBy)
	assert.Equal(t, "drone-001", commands.lastSend.DroneID)
}

func TestSendCommand_PermissionDenied(t *testing.T) {
	commands, cookie, send := newCommandTestServer(t) // 无 drone:command 权限

	body := strings.NewReader(`{"droneId":"drone-001","commandType":"land"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/drone-commands/send", body)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	send(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusForbidden, result.Status)
	assert.Empty(t, commands.lastSend.DroneID)
}

func TestSendCommand_ServiceError(t *testing.T) {
	commands, cookie, send := newCommandTestServer(t, "drone:command")
	commands.sendErr = fmt.Errorf("invalid command_type: hover")

	body := strings.NewReader(`{"droneId":"drone-001","commandType":"hover"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/drone-commands/send", body)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	send(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Contains(t, result.Message, "invalid command_type")
}

func TestGetCommandItem(t *testing.T) {
	queries := &fakeCommandQueries{commands: map[int64]*service.CommandView{
		5: {ID: 5, DroneID: "drone-002", CommandType: "land", Status: "completed"},
	}}
	handler := NewDroneCommandHandler(queries, &fakeCommandCommands{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/drone-commands/data/5", nil)
	rec := httptest.NewRecorder()
	handler.Item(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result Result[service.CommandView]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, int64(5), result.Data.ID)
	assert.Equal(t, "drone-002", result.Data.DroneID)
}

func TestGetCommandItem_InvalidID(t *testing.T) {
	handler := NewDroneCommandHandler(&fakeCommandQueries{}, &fakeCommandCommands{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/drone-commands/data/abc", nil)
	rec := httptest.NewRecorder()
	handler.Item(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusBadRequest, result.Status)
}
