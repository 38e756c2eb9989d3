package pkg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// 机器人运行时消费的事件类型
const (
	EventDeploy  = "community.deploy"
	EventPostNow = "community.post_now"
)

// BotEvent 发送给机器人运行时的消息体
type BotEvent struct {
	Type             string    `json:"type"`
	CommunityID      string    `json:"community_id"`
	Name             string    `json:"name,omitempty"`
	Purpose          string    `json:"purpose,omitempty"`
	Rules            []string  `json:"rules,omitempty"`
	ModerationLevel  string    `json:"moderation_level,omitempty"`
	EngagementStyle  string    `json:"engagement_style,omitempty"`
	PostingFrequency string    `json:"posting_frequency,omitempty"`
	TelegramToken    string    `json:"telegram_token,omitempty"`
	TelegramChatID   string    `json:"telegram_chat_id,omitempty"`
	At               time.Time `json:"at"`
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// messageWriter 由 *kafka.Writer 实现，测试时可替换
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer messageWriter
	topic  string
}

func NewKafkaProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka brokers and topic are required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: w, topic: cfg.Topic}, nil
}

func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Publish 以社区 ID 为 key 发送事件，同一社区的事件保持有序
func (p *KafkaProducer) Publish(ctx context.Context, ev BotEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.CommunityID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	})
}
