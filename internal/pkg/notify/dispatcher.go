package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/cache"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/mail"
)

const (
	// Redis key for the pending notification list
	QueueKey = "notify_queue"

	popTimeout = time.Second
)

// Dispatcher moves queued notifications to their targets: an in-app
// notification row, plus mail when an address is attached. Delivery is best
// effort; enqueue never fails the caller's business transaction.
type Dispatcher struct {
	client  *redis.Client
	db      *gorm.DB
	workers int
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewDispatcher creates a notification dispatcher
func NewDispatcher(db *gorm.DB, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	return &Dispatcher{
		client:  cache.GetClient(),
		db:      db,
		workers: workers,
		stopCh:  make(chan struct{}),
	}
}

// Start starts the dispatcher workers
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	log.Infof("[Notify] Starting %d workers", d.workers)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop stops the dispatcher workers
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	log.Info("[Notify] Stopping workers...")
	close(d.stopCh)
	d.running = false
	d.wg.Wait()
	log.Info("[Notify] All workers stopped")
}

// Enqueue pushes a message onto the queue. Failures are logged and swallowed
// so notification delivery can never break a business transaction.
func (d *Dispatcher) Enqueue(msg Message) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("[Notify] marshal message %s: %v", msg.ID, err)
		return
	}
	if err := d.client.LPush(context.Background(), QueueKey, data).Err(); err != nil {
		log.Errorf("[Notify] enqueue %s (kind=%s): %v", msg.ID, msg.Kind, err)
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	log.Infof("[Notify] Worker %d started", id)

	ctx := context.Background()
	for {
		select {
		case <-d.stopCh:
			log.Infof("[Notify] Worker %d stopping", id)
			return
		default:
			result, err := d.client.BRPop(ctx, popTimeout, QueueKey).Result()
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[Notify] Worker %d: pop error: %v", id, err)
					time.Sleep(time.Second)
				}
				continue
			}
			if len(result) < 2 {
				continue
			}

			var msg Message
			if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
				log.Errorf("[Notify] Worker %d: bad message dropped: %v", id, err)
				continue
			}
			d.deliver(&msg)
		}
	}
}

// deliver writes the notification row and sends mail. Errors are logged and
// the message is dropped, delivery is best effort.
func (d *Dispatcher) deliver(msg *Message) {
	repos := repository.NewRepositories(d.db)

	notification := &models.Notification{
		UserID:      msg.UserID,
		Type:        models.NotificationTypeBilling,
		Title:       msg.Title,
		Content:     msg.Body,
		ReferenceID: msg.ReferenceID,
	}
	if err := repos.Notification.Create(notification); err != nil {
		log.Errorf("[Notify] store notification %s for user %d: %v", msg.ID, msg.UserID, err)
	}

	email := msg.Email
	if email == "" && msg.UserID != 0 {
		if user, err := repos.User.GetByID(msg.UserID); err == nil {
			email = user.Email
		}
	}
	if email != "" {
		if err := mail.SendMail(email, msg.Title, msg.Body); err != nil {
			log.Errorf("[Notify] mail %s to %s: %v", msg.ID, email, err)
		}
	}

	log.Debugf("[Notify] delivered %s (kind=%s) to user %d", msg.ID, msg.Kind, msg.UserID)
}
