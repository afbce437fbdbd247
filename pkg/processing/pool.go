// Package processing moves work off the exchange loop: items are queued
// without blocking and handled by a fixed set of workers.
package processing

import (
	"sync"
	"time"

	customlog "github.com/open-teleop/simbridge/pkg/log"
)

// Processor handles one queued item.
type Processor func(item interface{}) error

// ProcessingPool is a bounded queue drained by workers. With a single worker
// items are processed in submission order.
type ProcessingPool struct {
	name        string
	workerCount int
	logger      customlog.Logger
	queue       chan interface{}
	running     bool
	wg          sync.WaitGroup
	mu          sync.Mutex
	processor   Processor
	queueSize   int
	metrics     *PoolMetrics
}

// PoolMetrics tracks metrics for a processing pool
type PoolMetrics struct {
	ProcessedCount    int64
	ErrorCount        int64
	QueuedCount       int64
	DroppedCount      int64
	LastProcessedTime int64
	ProcessingTimeAvg int64 // in microseconds
	ProcessingTimeMax int64 // in microseconds
	mu                sync.Mutex
}

// NewProcessingPool creates a new processing pool
func NewProcessingPool(name string, workerCount, queueSize int, processor Processor, logger customlog.Logger) *ProcessingPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &ProcessingPool{
		name:        name,
		workerCount: workerCount,
		queueSize:   queueSize,
		logger:      logger,
		queue:       make(chan interface{}, queueSize),
		processor:   processor,
		metrics:     &PoolMetrics{},
	}
}

// Submit queues item without blocking. It returns false when the pool is
// stopped or the queue is full; the item is then dropped.
func (p *ProcessingPool) Submit(item interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		p.logger.Warnf("%s pool not running, discarding item", p.name)
		return false
	}

	// Add item to queue (non-blocking if queue is full)
	select {
	case p.queue <- item:
		// Update metrics
		p.metrics.mu.Lock()
		p.metrics.QueuedCount++
		p.metrics.mu.Unlock()
		return true
	default:
		// Queue is full, count and discard
		p.metrics.mu.Lock()
		p.metrics.DroppedCount++
		dropped := p.metrics.DroppedCount
		p.metrics.mu.Unlock()
		// log the first drop and then every hundredth
		if dropped%100 == 1 {
			p.logger.Warnf("%s pool queue is full, %d items dropped so far", p.name, dropped)
		}
		return false
	}
}

// Start starts the processing pool workers
func (p *ProcessingPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.logger.Infof("Starting %s pool with %d workers", p.name, p.workerCount)

	// Start workers
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop drains the queue, waits for the workers and logs final metrics.
func (p *ProcessingPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	// Submit holds mu, so no send can race with close
	close(p.queue)
	p.mu.Unlock()

	p.logger.Infof("Stopping %s pool", p.name)

	// Wait for workers to finish
	p.wg.Wait()
	p.logger.Infof("%s pool stopped", p.name)

	// Log final metrics
	p.logMetrics()
}

// worker processes items from the queue
func (p *ProcessingPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debugf("%s pool worker %d started", p.name, id)

	for item := range p.queue {
		// Track processing time
		startTime := time.Now()

		// Process the item
		err := p.processor(item)

		// Calculate processing time
		processingTime := time.Since(startTime).Microseconds()

		// Update metrics
		p.metrics.mu.Lock()
		p.metrics.ProcessedCount++
		p.metrics.LastProcessedTime = time.Now().UnixNano()

		// Update processing time metrics
		if p.metrics.ProcessingTimeAvg == 0 {
			p.metrics.ProcessingTimeAvg = processingTime
		} else {
			// Simple moving average
			p.metrics.ProcessingTimeAvg = (p.metrics.ProcessingTimeAvg + processingTime) / 2
		}
		if processingTime > p.metrics.ProcessingTimeMax {
			p.metrics.ProcessingTimeMax = processingTime
		}
		if err != nil {
			p.metrics.ErrorCount++
		}
		p.metrics.mu.Unlock()

		if err != nil {
			p.logger.Errorf("Error processing item in %s pool: %v", p.name, err)
		}
	}

	p.logger.Debugf("%s pool worker %d stopped", p.name, id)
}

// GetMetrics returns a copy of the current metrics
func (p *ProcessingPool) GetMetrics() PoolMetrics {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	return PoolMetrics{
		ProcessedCount:    p.metrics.ProcessedCount,
		ErrorCount:        p.metrics.ErrorCount,
		QueuedCount:       p.metrics.QueuedCount,
		DroppedCount:      p.metrics.DroppedCount,
		LastProcessedTime: p.metrics.LastProcessedTime,
		ProcessingTimeAvg: p.metrics.ProcessingTimeAvg,
		ProcessingTimeMax: p.metrics.ProcessingTimeMax,
	}
}

// logMetrics logs the current metrics
func (p *ProcessingPool) logMetrics() {
	metrics := p.GetMetrics()

	p.logger.Infof("%s pool metrics: processed=%d, errors=%d, dropped=%d, avg_time=%dµs, max_time=%dµs",
		p.name, metrics.ProcessedCount, metrics.ErrorCount, metrics.DroppedCount,
		metrics.ProcessingTimeAvg, metrics.ProcessingTimeMax)
}

// GetName returns the pool name
func (p *ProcessingPool) GetName() string {
	return p.name
}

// GetQueueLength returns the current length of the queue
func (p *ProcessingPool) GetQueueLength() int {
	return len(p.queue)
}

// GetQueueCapacity returns the capacity of the queue
func (p *ProcessingPool) GetQueueCapacity() int {
	return p.queueSize
}
