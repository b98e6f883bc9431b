//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/villa-stay/service-booking/internal/adapter"
	"github.com/villa-stay/service-booking/internal/application"
	"github.com/villa-stay/service-booking/internal/events"
	"github.com/villa-stay/service-booking/internal/platform/database"
	"github.com/villa-stay/service-booking/internal/platform/kafka"
	"github.com/villa-stay/service-booking/internal/platform/retry"
	"github.com/villa-stay/service-booking/internal/repository"
	"github.com/villa-stay/service-booking/migrations"
)

const testWebhookSecret = "whsec_integration"

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Repo       *repository.BookingRepositoryImpl
	Coupons    *repository.GormCouponRepository
	Bookings   *application.BookingService
	Checkout   *application.CheckoutService
	Reconciler *application.Reconciler
	Verifier   *adapter.WebhookVerifier
	Cleanup    func()
}

// setupPostgres starts a PostgreSQL container and applies the embedded migrations.
func setupPostgres(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := database.PostgresConfig{
		Host:         pgHost,
		Port:         pgPort.Port(),
		User:         "test",
		Password:     "test",
		DBName:       "test_booking",
		SSLMode:      "disable",
		MaxOpenConns: 20,
	}

	// Poll until the pool can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(cfg, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(cfg.DatabaseURL(), migrations.FS, ".", logger))

	return &testInfra{
		DB: db,
		Cleanup: func() {
			if err := pgContainer.Terminate(ctx); err != nil {
				t.Logf("failed to terminate PostgreSQL container: %v", err)
			}
		},
	}
}

// setupContainers starts PostgreSQL and Kafka and pre-creates the topics.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	infra := setupPostgres(t)

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, events.TopicBookingEvents, events.TopicProviderEvents)

	pgCleanup := infra.Cleanup
	infra.KafkaBrokers = kafkaBrokers
	infra.Cleanup = func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		pgCleanup()
	}
	return infra
}

// setupBookingStack wires the services against db. With brokers, events go to
// Kafka; otherwise they are dropped.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	fast := retry.Policy{Attempts: 3, Delay: 50 * time.Millisecond}

	var publisher application.EventPublisher = events.NopPublisher{}
	cleanup := func() {}
	if len(brokers) > 0 {
		producer := kafka.NewProducer(brokers, logger)
		publisher = events.NewBookingEventPublisher(producer, events.TopicBookingEvents, logger)
		cleanup = func() { _ = producer.Close() }
	}

	repo := repository.NewBookingRepository(db)
	coupons := repository.NewGormCouponRepository(db)
	verifier := adapter.NewWebhookVerifier(testWebhookSecret, false)

	return &bookingStack{
		Repo:     repo,
		Coupons:  coupons,
		Bookings: application.NewBookingService(repo, coupons, publisher, fast, logger),
		Checkout: application.NewCheckoutService(repo, adapter.NewMockProvider("http://localhost:3000", logger), publisher,
			application.CheckoutConfig{StoreRetry: fast, ProviderRetry: fast, ProviderTimeout: 5 * time.Second}, logger),
		Reconciler: application.NewReconciler(repo, verifier, publisher, fast, logger),
		Verifier:   verifier,
		Cleanup:    cleanup,
	}
}

// createBooking creates a pending booking for the given dates.
func createBooking(t *testing.T, stack *bookingStack, checkIn, checkOut string, amount int64) *application.BookingDTO {
	t.Helper()
	dto, err := stack.Bookings.CreateBooking(context.Background(), bookingRequest(checkIn, checkOut, amount))
	require.NoError(t, err, "failed to create booking")
	return dto
}

func bookingRequest(checkIn, checkOut string, amount int64) application.CreateBookingRequest {
	return application.CreateBookingRequest{
		FirstName:    "Taro",
		LastName:     "Yamada",
		Email:        "taro@example.com",
		Phone:        "090-1234-5678",
		PostalCode:   "150-0001",
		Prefecture:   "Tokyo",
		City:         "Shibuya",
		Street:       "1-2-3 Jingumae",
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
		Guests:       2,
		Amount:       amount,
	}
}

// webhookBody builds a KOMOJU-style event referencing bookingID.
func webhookBody(t *testing.T, eventType string, bookingID uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":   "evt_" + uuid.NewString()[:8],
		"type": eventType,
		"data": map[string]interface{}{
			"id":       "pay_" + uuid.NewString()[:8],
			"metadata": map[string]string{"booking_id": bookingID.String()},
		},
	})
	require.NoError(t, err)
	return body
}

// deliver signs and applies one webhook event.
func deliver(t *testing.T, stack *bookingStack, eventType string, bookingID uuid.UUID) *application.WebhookResult {
	t.Helper()
	body := webhookBody(t, eventType, bookingID)
	res, err := stack.Reconciler.Handle(context.Background(), body, stack.Verifier.Sign(body))
	require.NoError(t, err, "webhook %s rejected", eventType)
	return res
}

// dbStatus reads the stored status of a booking.
func dbStatus(t *testing.T, db *gorm.DB, id uuid.UUID) string {
	t.Helper()
	var model repository.BookingModel
	require.NoError(t, db.Where("id = ?", id).First(&model).Error)
	return model.Status
}

// waitForDBStatus polls the bookings table until the status matches.
func waitForDBStatus(t *testing.T, db *gorm.DB, id uuid.UUID, expectedStatus string, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", id).First(&model).Error; err != nil {
			return false
		}
		return model.Status == expectedStatus
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
}

// publishProviderEvent relays a raw signed webhook body the way the edge gateway does.
func publishProviderEvent(t *testing.T, brokers []string, body []byte, signature string) {
	t.Helper()
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        events.TopicProviderEvents,
		RequiredAcks: kafkago.RequireAll,
	}
	defer func() { _ = w.Close() }()

	err := w.WriteMessages(context.Background(), kafkago.Message{
		Value:   body,
		Headers: []kafkago.Header{{Key: events.SignatureHeader, Value: []byte(signature)}},
	})
	require.NoError(t, err, "failed to publish provider event")
}

// consumeEvents reads CloudEvents of expectedType from topic until match
// accepts one or the timeout elapses.
func consumeEvents(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration, match func(kafka.CloudEvent) bool) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType && match(ce) {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
