package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

func main() {
	targetURL := flag.String("url", "http://localhost:8080/api/v1/logs/ingest", "Target URL for ingestion")
	apiKey := flag.String("api-key", "", "API Key for authentication")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 50, "Batches per second limit")
	batchSize := flag.Int("batch", 30, "Records per batch")
	useGzip := flag.Bool("gzip", false, "Gzip request bodies")
	backoff := flag.Duration("backoff", 200*time.Millisecond, "Initial retry backoff, doubled per attempt")
	flag.Parse()

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Batch: %d", *concurrency, *duration, *rps, *batchSize)

	var wg sync.WaitGroup
	var batches, failed, accepted, rejected atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), *concurrency)
	s := &sender{
		client:  &http.Client{Timeout: 5 * time.Second},
		url:     *targetURL,
		apiKey:  *apiKey,
		gzip:    *useGzip,
		backoff: *backoff,
	}

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				res, err := s.send(ctx, buildBatch(workerID, *batchSize, time.Now()))
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					failed.Add(1)
					log.Printf("worker %d: batch failed: %v", workerID, err)
					continue
				}
				batches.Add(1)
				accepted.Add(int64(res.TotalAccepted))
				rejected.Add(int64(res.TotalRejected))
			}
		}(i)
	}

	wg.Wait()

	total := batches.Load() + failed.Load()
	log.Println("Load test finished.")
	log.Printf("Total Batches: %d", total)
	log.Printf("Batches Accepted (202): %d", batches.Load())
	log.Printf("Batches Failed: %d", failed.Load())
	log.Printf("Records Accepted: %d, Rejected: %d", accepted.Load(), rejected.Load())
	log.Printf("Actual Batches/s: %.2f", float64(total)/duration.Seconds())
}
