package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"powerhause/internal/model"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	opList    = "list communities"
	opGet     = "get community"
	opCreate  = "create community"
	opUpdate  = "update community"
	opDeploy  = "deploy community"
	opPostNow = "post now"
)

// HTTPConfig 远程社区服务配置
// TokenFrom 从请求上下文取调用方的 bearer token，取不到时退回 APIToken
type HTTPConfig struct {
	BaseURL   string
	APIToken  string
	Timeout   time.Duration
	TokenFrom func(ctx context.Context) string
}

// HTTPClient 通过 HTTP 调用远程社区服务
type HTTPClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

var _ Gateway = (*HTTPClient)(nil)

// NewHTTPClient 创建远程网关客户端，重试次数固定为 0
func NewHTTPClient(cfg HTTPConfig, logger *zap.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIToken != "" {
		client.SetAuthToken(cfg.APIToken)
	}
	if cfg.TokenFrom != nil {
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			if token := cfg.TokenFrom(req.Context()); token != "" {
				req.SetAuthToken(token)
			}
			return nil
		})
	}
	return &HTTPClient{httpClient: client, logger: logger}
}

func (c *HTTPClient) List(ctx context.Context) ([]model.Community, error) {
	resp, err := c.httpClient.R().SetContext(ctx).Get("/api/communities")
	if err := c.check(opList, resp, err); err != nil {
		return nil, err
	}
	var list []model.Community
	if err := decode(opList, resp.Body(), &list); err != nil {
		return nil, err
	}
	for i := range list {
		list[i].ApplyDefaults()
	}
	return list, nil
}

func (c *HTTPClient) Get(ctx context.Context, id string) (*model.Community, error) {
	resp, err := c.httpClient.R().SetContext(ctx).Get(communityPath(id))
	if err := c.check(opGet, resp, err); err != nil {
		return nil, err
	}
	return decodeCommunity(opGet, resp.Body())
}

func (c *HTTPClient) Create(ctx context.Context, name, purpose string) (*model.Community, error) {
	if strings.TrimSpace(name) == "" {
		return nil, NewValidation(opCreate, "Community name is required")
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(model.CreateReq{Name: name, Purpose: purpose}).
		Post("/api/communities/create")
	if err := c.check(opCreate, resp, err); err != nil {
		return nil, err
	}
	community, err := decodeCommunity(opCreate, resp.Body())
	if err != nil {
		return nil, err
	}
	c.logger.Info("community created", zap.String("community_id", community.ID))
	return community, nil
}

func (c *HTTPClient) Update(ctx context.Context, id string, fields *model.UpdateFields) (*model.Community, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(fields).
		Put(communityPath(id))
	if err := c.check(opUpdate, resp, err); err != nil {
		return nil, err
	}
	return decodeCommunity(opUpdate, resp.Body())
}

func (c *HTTPClient) Deploy(ctx context.Context, id string) (*model.DeploymentResult, error) {
	c.logger.Info("calling deploy API", zap.String("community_id", id))

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{}).
		Post(communityPath(id) + "/deploy")
	if err := c.check(opDeploy, resp, err); err != nil {
		return nil, err
	}

	// 只接受 JSON 对象；status/message 缺失时保留空值，由调用方判定失败
	var raw map[string]any
	if err := json.Unmarshal(resp.Body(), &raw); err != nil || raw == nil {
		c.logger.Error("invalid deployment response", zap.ByteString("body", resp.Body()))
		return nil, NewDeployment(opDeploy, "Deployment response was invalid")
	}
	result := &model.DeploymentResult{}
	result.Status, _ = raw["status"].(string)
	result.Message, _ = raw["message"].(string)
	return result, nil
}

func (c *HTTPClient) PostNow(ctx context.Context, id string) error {
	resp, err := c.httpClient.R().SetContext(ctx).Post(communityPath(id) + "/post-now")
	return c.check(opPostNow, resp, err)
}

// check 把传输错误和非 2xx 响应转换为 *Error
func (c *HTTPClient) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		c.logger.Error("gateway call failed", zap.String("op", op), zap.Error(err))
		return NewTransport(op, err)
	}
	if !resp.IsError() && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	status := resp.StatusCode()
	detail := detailFromBody(resp.Body())
	c.logger.Warn("gateway returned error",
		zap.String("op", op),
		zap.Int("status_code", status),
		zap.String("detail", detail),
	)

	ge := &Error{Op: op, Detail: detail, Status: status}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		ge.Kind = ErrUnauthorized
	case status == http.StatusNotFound:
		ge.Kind = ErrNotFound
	case op == opDeploy:
		ge.Kind = ErrDeployment
	case op == opPostNow:
		ge.Kind = ErrOperation
	case status < http.StatusInternalServerError:
		ge.Kind = ErrValidation
	default:
		ge.Kind = ErrTransport
	}
	if ge.Detail == "" {
		ge.Err = fmt.Errorf("request failed with status %d %s", status, http.StatusText(status))
	}
	return ge
}

// detailFromBody 依次取 detail、message、msg 字段
func detailFromBody(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "message", "msg"} {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func decode(op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return NewTransport(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func decodeCommunity(op string, body []byte) (*model.Community, error) {
	var community model.Community
	if err := decode(op, body, &community); err != nil {
		return nil, err
	}
	community.ApplyDefaults()
	return &community, nil
}

func communityPath(id string) string {
	return "/api/communities/" + url.PathEscape(id)
}
