package queue

import "strings"

const keyPrefix = "gmq:queue:"

// Main is the default queue every class is routed to unless overridden.
const Main = "prgov_cap"

// Key is the FIFO list holding jobs ready to run.
func Key(queue string) string { return keyPrefix + queue }

// ProcessingKey is the list holding jobs a consumer has taken but not settled.
func ProcessingKey(queue, consumer string) string {
	return keyPrefix + queue + ":processing:" + consumer
}

// ScheduleKey is the sorted set of delayed retries, scored by unix milliseconds.
func ScheduleKey(queue string) string { return keyPrefix + queue + ":schedule" }

// DeadKey is the capped list of jobs that will not be retried.
func DeadKey(queue string) string { return keyPrefix + queue + ":dead" }

func heartbeatKey(consumer string) string { return "gmq:consumer:" + consumer }

// consumerFromProcessingKey extracts the consumer id from a processing key.
func consumerFromProcessingKey(queue, key string) (string, bool) {
	prefix := keyPrefix + queue + ":processing:"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return strings.TrimPrefix(key, prefix), true
}
