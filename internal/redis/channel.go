package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ChangesChannel carries one message per committed scheduling write.
	ChangesChannel = "scheduling:changes"
	// RemindersChannel carries confirmation reminders for the next day.
	RemindersChannel = "scheduling:reminders"
)

// ChangeMessage is published on ChangesChannel. Origin identifies the
// publishing instance so it can ignore its own messages.
type ChangeMessage struct {
	Origin string    `json:"origin"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Publish encodes v as JSON and publishes it on channel.
func Publish(ctx context.Context, client *redis.Client, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", channel, err)
	}
	if err := client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func DecodeChange(payload string) (ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return ChangeMessage{}, fmt.Errorf("decode change message: %w", err)
	}
	return msg, nil
}

// ReminderMessage is published on RemindersChannel for every appointment of
// the next day that still waits for confirmation.
type ReminderMessage struct {
	AppointmentID string    `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	TherapistID   string    `json:"therapist_id"`
	StartTime     string    `json:"start_time"`
	At            time.Time `json:"at"`
}
