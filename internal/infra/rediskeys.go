package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "threatwatch"
)

// Каналы Pub/Sub (события для других инстансов дашборда)
const (
	RedisChanSnapshot     = RedisNamespace + ":snapshot"
	RedisChanAlerts       = RedisNamespace + ":alerts"
	RedisChanConnectivity = RedisNamespace + ":connectivity"
	RedisChanBuckets      = RedisNamespace + ":buckets"
	RedisChanNotices      = RedisNamespace + ":notices"

	// RedisChanCommands: входящие команды: "range:<hours>" или "refresh".
	RedisChanCommands = RedisNamespace + ":commands"
)

// GetInstanceChannel Генератор имен каналов, если нужна адресная доставка одному инстансу
func GetInstanceChannel(base, instance string) string {
	return fmt.Sprintf("%s:%s", base, instance)
}
