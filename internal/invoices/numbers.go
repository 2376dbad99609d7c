package invoices

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	pkgredis "github.com/ledgerline/ledgerline-backend/pkg/redis"
)

// NumberGenerator synthesizes invoice numbers when the caller supplies none.
type NumberGenerator interface {
	Next(ctx context.Context) (string, error)
}

const (
	numberPrefix      = "INV-"
	maxNumberLength   = 64
	suffixMask        = 0xFFFFFF
	sequenceCounterID = "invoice_number"
)

// TimestampNumbers yields INV-<yyyymmddHHMMSSmmm>-<6 hex>. The suffix starts
// at a random offset and advances per call, so one process never repeats a
// number inside the same millisecond. Cross-process collisions are left to the
// unique index.
type TimestampNumbers struct {
	now  func() time.Time
	next atomic.Uint32
}

func NewTimestampNumbers(now func() time.Time) *TimestampNumbers {
	if now == nil {
		now = time.Now
	}
	g := &TimestampNumbers{now: now}
	var seed [4]byte
	if _, err := rand.Read(seed[:]); err == nil {
		g.next.Store(binary.BigEndian.Uint32(seed[:]))
	}
	return g
}

func (g *TimestampNumbers) Next(context.Context) (string, error) {
	t := g.now().UTC()
	suffix := g.next.Add(1) & suffixMask
	return fmt.Sprintf("%s%s%03d-%06x", numberPrefix, t.Format("20060102150405"), t.Nanosecond()/int(time.Millisecond), suffix), nil
}

// SequenceNumbers yields INV-<yyyymmdd>-<seq> from a Redis counter shared by
// every API instance.
type SequenceNumbers struct {
	counter pkgredis.Counter
	now     func() time.Time
}

func NewSequenceNumbers(counter pkgredis.Counter, now func() time.Time) (*SequenceNumbers, error) {
	if counter == nil {
		return nil, fmt.Errorf("redis counter required")
	}
	if now == nil {
		now = time.Now
	}
	return &SequenceNumbers{counter: counter, now: now}, nil
}

func (g *SequenceNumbers) Next(ctx context.Context) (string, error) {
	seq, err := g.counter.Incr(ctx, g.counter.CounterKey(sequenceCounterID))
	if err != nil {
		return "", fmt.Errorf("increment invoice sequence: %w", err)
	}
	return fmt.Sprintf("%s%s-%06d", numberPrefix, g.now().UTC().Format("20060102"), seq), nil
}
