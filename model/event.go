package model

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// EventLogger appends event records to a msgpack stream file from a
// background worker, in batches
type EventLogger struct {
	Filename  string
	BatchSize int
	queue     chan *EventRecord
	stopFlag  chan struct{}
	wg        sync.WaitGroup
	lock      sync.Mutex
	file      *os.File
	written   int
	err       error
}

// NewEventLogger creates a new event logger
func NewEventLogger(filename string, batchSize int) (*EventLogger, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	batchSize = max(batchSize, 1)

	logger := &EventLogger{
		Filename:  filename,
		BatchSize: batchSize,
		queue:     make(chan *EventRecord, batchSize*2),
		stopFlag:  make(chan struct{}),
		file:      file,
	}

	logger.wg.Add(1)
	go logger.worker()

	return logger, nil
}

// LogEvent adds an event to the queue for logging
func (l *EventLogger) LogEvent(event *EventRecord) {
	select {
	case l.queue <- event:
		// queued
	case <-l.stopFlag:
		// stopping, discard
	}
}

// worker processes the event queue
func (l *EventLogger) worker() {
	defer l.wg.Done()

	batch := make([]*EventRecord, 0, l.BatchSize)

	for {
		select {
		case event := <-l.queue:
			batch = append(batch, event)

			if len(batch) >= l.BatchSize {
				l.writeBatch(batch)
				batch = make([]*EventRecord, 0, l.BatchSize)
			}

		case <-l.stopFlag:
			// drain what is still queued
			for {
				select {
				case event := <-l.queue:
					batch = append(batch, event)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				l.writeBatch(batch)
			}
			return
		}
	}
}

// writeBatch writes a batch of events to the file; the first failure is
// kept and reported by Err and Stop
func (l *EventLogger) writeBatch(batch []*EventRecord) {
	l.lock.Lock()
	defer l.lock.Unlock()

	enc := msgpack.NewEncoder(l.file)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			l.err = errors.Join(l.err, fmt.Errorf("event %s at t=%.4fh: %w", event.Type, event.Time, err))
			continue
		}
		l.written++
	}

	if err := l.file.Sync(); err != nil {
		l.err = errors.Join(l.err, err)
	}
}

// Written returns the number of events written so far
func (l *EventLogger) Written() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.written
}

// Err returns the write errors seen so far
func (l *EventLogger) Err() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.err
}

// Stop flushes the queue and closes the file
func (l *EventLogger) Stop() error {
	close(l.stopFlag)
	l.wg.Wait()

	l.lock.Lock()
	defer l.lock.Unlock()
	return errors.Join(l.err, l.file.Close())
}

// ReadMsgpackObjects reads msgpack objects from a file
func ReadMsgpackObjects(filename string) ([]any, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var objects []any
	decoder := msgpack.NewDecoder(file)

	for {
		var obj any
		err := decoder.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return objects, err
		}
		objects = append(objects, obj)
	}

	return objects, nil
}
