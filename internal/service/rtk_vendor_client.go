package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RTKVendorToken RTK 厂家认证 Token
type RTKVendorToken struct {
	AppId     string `json:"appId"`
	SecureKey string `json:"secureKey"`
}

// RTKVendorRequest RTK 厂家 API 请求
type RTKVendorRequest struct {
	Token *RTKVendorToken `json:"token"`
	Data  map[string]any  `json:"data"`
}

// RTKVendorResponse RTK 厂家 API 响应
type RTKVendorResponse struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

// RTKVendorRecord 厂家回传的基准站定位记录
type RTKVendorRecord struct {
	DeviceID       string  `json:"deviceId"`
	Longitude      float64 `json:"longitude"`
	Latitude       float64 `json:"latitude"`
	Altitude       float64 `json:"altitude"`
	FixQuality     string  `json:"fixQuality"`
	SatelliteCount int64   `json:"satelliteCount"`
	HDOP           float64 `json:"hdop"`
	Timestamp      int64   `json:"timestamp"` // Unix 毫秒
}

// RTKVendorClient RTK 基准站厂家 API 客户端
type RTKVendorClient struct {
	httpClient *resty.Client
	token      *RTKVendorToken
	logger     *zap.Logger
}

// NewRTKVendorClient 创建 RTK 厂家客户端
func NewRTKVendorClient(baseURL, appID, secretKey string, logger *zap.Logger) *RTKVendorClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	token := &RTKVendorToken{
		AppId:     appID,
		SecureKey: secretKey,
	}

	return &RTKVendorClient{
		httpClient: client,
		token:      token,
		logger:     logger,
	}
}

// FetchRecords 拉取某基准站在给定时间窗内的修正后定位记录
func (c *RTKVendorClient) FetchRecords(deviceID string, startTime, endTime int64) ([]RTKVendorRecord, error) {
	request := RTKVendorRequest{
		Token: c.token,
		Data: map[string]any{
			"deviceId":  deviceID,
			"startTime": startTime,
			"endTime":   endTime,
		},
	}

	c.logger.Info("Calling RTK vendor API: getCorrectedRecords",
		zap.String("device_id", deviceID),
		zap.Int64("start_time", startTime),
		zap.Int64("end_time", endTime),
	)

	var response RTKVendorResponse
	resp, err := c.httpClient.R().
		SetBody(request).
		SetResult(&response).
		Post("/rtk/getCorrectedRecords")

	if err != nil {
		c.logger.Error("RTK vendor API call failed",
			zap.Error(err),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("failed to call RTK vendor API: %w", err)
	}

	if response.Status != 0 {
		c.logger.Error("RTK vendor API returned error",
			zap.Int("status", response.Status),
			zap.String("msg", response.Msg),
		)
		return nil, fmt.Errorf("RTK vendor API error: %s (status: %d)", response.Msg, response.Status)
	}

	var records []RTKVendorRecord
	if err := json.Unmarshal(response.Data, &records); err != nil {
		c.logger.Error("Failed to unmarshal RTK vendor API response",
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to unmarshal rtk records: %w", err)
	}

	c.logger.Info("Successfully retrieved records from RTK vendor API",
		zap.Int("record_count", len(records)),
	)

	return records, nil
}
