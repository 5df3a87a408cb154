package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/threatwatch/internal/domain"
	"github.com/xela07ax/threatwatch/internal/infra"
	"github.com/xela07ax/threatwatch/internal/timeline"
	"go.uber.org/zap"
)

const (
	redisQueueSize      = 256
	redisPublishTimeout = 2 * time.Second
)

// RedisClient: подмножество *redis.Client, нужное для публикации.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type outbound struct {
	channel string
	payload []byte
}

// RedisPublisher рассылает обновления другим инстансам дашборда через Redis Pub/Sub.
// Publish* только ставят сообщение в очередь, сеть трогает Run.
type RedisPublisher struct {
	rdb    RedisClient
	queue  chan outbound
	logger *zap.Logger
}

func NewRedisPublisher(rdb RedisClient, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		rdb:    rdb,
		queue:  make(chan outbound, redisQueueSize),
		logger: logger.Named("redis-publisher"),
	}
}

func (p *RedisPublisher) PublishSnapshot(snap domain.Snapshot) {
	p.enqueue(infra.RedisChanSnapshot, newEnvelope(TypeSnapshot, snap))
}

func (p *RedisPublisher) PublishAlert(alert domain.Alert) {
	p.enqueue(infra.RedisChanAlerts, newEnvelope(TypeAlert, alert))
}

func (p *RedisPublisher) PublishConnectivity(status domain.ConnectivityStatus) {
	p.enqueue(infra.RedisChanConnectivity, newEnvelope(TypeConnectivity, status))
}

func (p *RedisPublisher) PublishBuckets(tl timeline.Timeline, trend []timeline.TrendBucket) {
	p.enqueue(infra.RedisChanBuckets, newEnvelope(TypeBuckets, BucketsPayload{Timeline: tl, Trend: trend}))
}

func (p *RedisPublisher) PublishNotice(n domain.Notice) {
	p.enqueue(infra.RedisChanNotices, newEnvelope(TypeNotice, n))
}

// Run отправляет накопленные сообщения, пока не отменен контекст.
func (p *RedisPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			p.send(ctx, msg)
		}
	}
}

func (p *RedisPublisher) send(ctx context.Context, msg outbound) {
	tCtx, cancel := context.WithTimeout(ctx, redisPublishTimeout)
	defer cancel()

	if err := p.rdb.Publish(tCtx, msg.channel, msg.payload).Err(); err != nil {
		p.logger.Warn("failed to publish to redis", zap.String("chan", msg.channel), zap.Error(err))
	}
}

func (p *RedisPublisher) enqueue(channel string, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("failed to marshal envelope", zap.String("type", env.Type), zap.Error(err))
		return
	}

	select {
	case p.queue <- outbound{channel: channel, payload: payload}:
	default:
		p.logger.Warn("redis queue full, message dropped", zap.String("chan", channel))
	}
}
