package queue

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"cognito.app/sentinel/internal/notify"
)

// TaskType tags stream entries so the stream can carry more kinds of work later.
type TaskType string

const TaskTypeDelivery TaskType = "notification_delivery"

type Message struct {
	ID       string
	TaskType TaskType
	Delivery notify.Delivery
	Attempt  int
	TraceID  string
	Raw      redis.XMessage
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	taskType, err := parseOptionalString(msg.Values, "task_type")
	if err != nil {
		return Message{}, err
	}
	if taskType == "" {
		taskType = string(TaskTypeDelivery)
	}
	if TaskType(taskType) != TaskTypeDelivery {
		return Message{}, fmt.Errorf("unknown task_type %q", taskType)
	}

	payload, err := parseOptionalString(msg.Values, "payload")
	if err != nil {
		return Message{}, err
	}
	if payload == "" {
		return Message{}, fmt.Errorf("missing payload")
	}

	var delivery notify.Delivery
	if err := json.Unmarshal([]byte(payload), &delivery); err != nil {
		return Message{}, fmt.Errorf("decoding payload: %w", err)
	}
	if delivery.AlertID == 0 || delivery.Channel == "" {
		return Message{}, fmt.Errorf("payload missing alert id or channel")
	}

	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	traceID, err := parseOptionalString(msg.Values, "trace_id")
	if err != nil {
		return Message{}, err
	}

	return Message{
		ID:       msg.ID,
		TaskType: TaskTypeDelivery,
		Delivery: delivery,
		Attempt:  attempt,
		TraceID:  traceID,
		Raw:      msg,
	}, nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	str := fmt.Sprint(raw)
	num, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}

func deliveryValues(d notify.Delivery, attempt int, traceID string) (map[string]any, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding delivery: %w", err)
	}

	values := map[string]any{
		"task_type": string(TaskTypeDelivery),
		"payload":   string(payload),
		"channel":   string(d.Channel),
		"alert_id":  d.AlertID,
		"attempt":   attempt,
	}
	if traceID != "" {
		values["trace_id"] = traceID
	}
	return values, nil
}

func messageValues(msg Message, attempt int) (map[string]any, error) {
	return deliveryValues(msg.Delivery, attempt, msg.TraceID)
}
