package main

import (
	"Parley/internal/api/dto"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const presencePath = "/api/user/presence"

// presenceClient 通过 HTTP 接口上报在线状态
type presenceClient struct {
	http *resty.Client
}

func newPresenceClient(server, token string, timeout time.Duration) *presenceClient {
	client := resty.New().
		SetBaseURL(server).
		SetTimeout(timeout).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")
	return &presenceClient{http: client}
}

// WriteStatus 满足 presence.StatusWriter
func (s *presenceClient) WriteStatus(ctx context.Context, online bool) error {
	var res dto.Response
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(dto.PresenceDTO{IsOnline: &online}).
		// 按信封解码，不依赖上游返回的 Content-Type
		ForceContentType("application/json").
		SetResult(&res).
		Post(presencePath)
	if err != nil {
		return fmt.Errorf("post presence: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post presence: http %d", resp.StatusCode())
	}
	if res.Code != 200 {
		return fmt.Errorf("post presence: code %d %s", res.Code, res.Message)
	}
	return nil
}
