package queue

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// SettlementQueue 结算队列名称
	SettlementQueue = constants.QueueSettlement
	// NotifyQueue 通知队列名称
	NotifyQueue = constants.QueueNotify

	defaultMaxRetry = 5
)

// Client 队列客户端封装
type Client struct {
	client  *asynq.Client
	enabled bool
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false}, nil
	}
	return &Client{
		client:  asynq.NewClient(buildRedisOpt(cfg)),
		enabled: true,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueSettlementStage 推送结算阶段任务，同一 (订单, 阶段) 在队列中仅保留一份
func (c *Client) EnqueueSettlementStage(payload SettlementStagePayload, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewSettlementStageTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, SettlementQueue, SettlementTaskID(payload.OrderID, payload.Stage), opts)
}

// EnqueueNotification 推送通知任务
func (c *Client) EnqueueNotification(payload NotificationPayload, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewNotificationTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, NotifyQueue, "notify:"+payload.DedupeKey(), opts)
}

// enqueue 任务 ID 冲突视为已入队
func (c *Client) enqueue(task *asynq.Task, queueName, taskID string, extra []asynq.Option) error {
	options := make([]asynq.Option, 0, len(extra)+3)
	options = append(options, asynq.Queue(queueName), asynq.TaskID(taskID), asynq.MaxRetry(defaultMaxRetry))
	options = append(options, extra...)
	_, err := c.client.Enqueue(task, options...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	serverCfg := asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{SettlementQueue: 6, NotifyQueue: 1},
	}
	if cfg != nil && cfg.Concurrency > 0 {
		serverCfg.Concurrency = cfg.Concurrency
	}
	if cfg != nil && len(cfg.Queues) > 0 {
		serverCfg.Queues = cfg.Queues
	}
	return buildRedisOpt(cfg), serverCfg
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if cfg == nil {
		return opt
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	opt.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
