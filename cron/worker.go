package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"servly/config"
	contactRepo "servly/database/repository/contact"
	"servly/models"
	"servly/services/notification"
	"servly/utils"

	"firebase.google.com/go/v4/messaging"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

// InitDispatchWorker runs the notification dispatch worker in background. It
// drains the Redis-backed queue the engine enqueues on; asynq retries failed
// deliveries with backoff, so at-least-once holds without the engine ever
// waiting on delivery.
func InitDispatchWorker(contacts contactRepo.ContactRepository) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TypeNotifyDispatch, handleNotifyTask(contacts))

	// Start Redis health monitor
	go monitorRedisConnection()

	// Start async worker with retry logic
	go func() {
		log.Println("[DispatchWorker] Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[DispatchWorker] Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[DispatchWorker] Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleNotifyTask(contacts contactRepo.ContactRepository) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.NotificationPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[DispatchHandler] Invalid payload: %v", err)
			return err
		}

		title, body := renderTemplate(p)
		log.Printf("[DispatchHandler] Delivering %s to %s %s", p.TemplateKind, p.RecipientType, p.RecipientID)

		token, err := contacts.GetToken(ctx, p.RecipientType, p.RecipientID)
		if err != nil {
			log.Printf("[DispatchHandler] No push target: %v", err)
			return err
		}

		msg := &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: p.Data,
		}
		if p.TemplateKind == models.TemplateOfferProposed || p.TemplateKind == models.TemplateOperatorAlert {
			msg.Android = &messaging.AndroidConfig{
				Priority: "high",
				Notification: &messaging.AndroidNotification{
					ChannelID: "high_priority",
					Sound:     "default",
				},
			}
			msg.APNS = &messaging.APNSConfig{
				Headers: map[string]string{
					"apns-priority":  "10",
					"apns-push-type": "alert",
				},
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{
						Sound: "default",
					},
				},
			}
		}

		if _, err := utils.FCMClient.Send(ctx, msg); err != nil {
			log.Printf("[DispatchHandler] Failed to send notification: %v", err)
			return err
		}
		return nil
	}
}

// renderTemplate maps a template kind to push copy.
func renderTemplate(p models.NotificationPayload) (title, body string) {
	switch p.TemplateKind {
	case models.TemplateOfferProposed:
		return "New mission offer", fmt.Sprintf("You have a new mission offer. Respond before %s.", p.Data["expires_at"])
	case models.TemplateOfferWithdrawn:
		return "Offer withdrawn", "A mission offer was withdrawn before you responded."
	case models.TemplateBookingConfirmed:
		return "Booking confirmed", "A provider accepted your booking."
	case models.TemplateBookingCancelled:
		return "Booking cancelled", "Your booking has been cancelled."
	case models.TemplateReassigned:
		return "Finding a replacement", "Your provider became unavailable. We are finding a replacement now."
	case models.TemplateOperatorAlert:
		return "Operator attention needed", fmt.Sprintf("Booking %s needs manual review: %s", p.Data["booking_id"], p.Data["reason"])
	default:
		return "Update", "You have a new update."
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[DispatchWorker] Redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
