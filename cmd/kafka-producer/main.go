package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Submission mirrors the consumer's wire format
type Submission struct {
	UserID string `json:"user_id"`
	Score  int64  `json:"score"`
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "counter-scores", "Kafka topic")
	usersFile := flag.String("users", "", "File with one user UUID per line")
	rate := flag.Int("rate", 50, "Submissions per second")
	maxScore := flag.Int64("max-score", 500, "Upper bound for generated scores")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	userIDs, err := loadUserIDs(*usersFile)
	if err != nil {
		log.Fatalf("Failed to load user ids: %v", err)
	}
	if len(userIDs) == 0 {
		log.Fatal("No user ids provided; pass -users with a file of UUIDs")
	}

	fmt.Printf("Score producer: brokers=%s topic=%s users=%d rate=%d/s\n",
		*brokers, *topic, len(userIDs), *rate)

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(strings.Split(*brokers, ","), config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	shutdown := func() {
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\nDone. Sent: %d, Errors: %d\n",
			atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\nDuration reached, shutting down...")
				shutdown()
				return
			}

			sub := Submission{
				UserID: userIDs[rand.Intn(len(userIDs))],
				Score:  rand.Int63n(*maxScore + 1),
			}
			data, err := json.Marshal(sub)
			if err != nil {
				log.Printf("Failed to marshal message: %v", err)
				continue
			}
			producer.Input() <- &sarama.ProducerMessage{
				Topic: *topic,
				Key:   sarama.StringEncoder(sub.UserID),
				Value: sarama.ByteEncoder(data),
			}

		case <-statsTicker.C:
			fmt.Printf("[%s] Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}

func loadUserIDs(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := uuid.Parse(line); err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", line, err)
		}
		ids = append(ids, line)
	}
	return ids, nil
}
