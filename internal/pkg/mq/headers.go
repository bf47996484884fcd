package mq

import "github.com/segmentio/kafka-go"

const (
	HeaderPartitionKey = "x-partition-key"
	HeaderEventType    = "x-event-type"

	// 死信消息头
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderConsumerGroup     = "x-consumer-group"
	HeaderExceptionFqcn     = "x-exception-fqcn"
	HeaderExceptionMessage  = "x-exception-message"
	HeaderAttempts          = "x-attempts"
)

// GetHeader 返回第一个匹配 key 的头的值，不存在时返回空字符串。
func GetHeader(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
