package invoices

import (
	"context"
	"regexp"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	pkgredis "github.com/ledgerline/ledgerline-backend/pkg/redis"
)

var timestampNumberRe = regexp.MustCompile(`^INV-\d{17}-[0-9a-f]{6}$`)

func TestTimestampNumbersFormat(t *testing.T) {
	at := time.Date(2026, 10, 16, 8, 5, 9, 42_000_000, time.UTC)
	gen := NewTimestampNumbers(func() time.Time { return at })

	number, err := gen.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !timestampNumberRe.MatchString(number) {
		t.Fatalf("unexpected format %q", number)
	}
	if number[:21] != "INV-20261016080509042" {
		t.Fatalf("unexpected timestamp part %q", number)
	}
	if len(number) > maxNumberLength {
		t.Fatalf("generated number exceeds max length: %q", number)
	}
}

func TestTimestampNumbersUniqueWithinOneMillisecond(t *testing.T) {
	frozen := time.Date(2026, 10, 16, 8, 5, 9, 0, time.UTC)
	gen := NewTimestampNumbers(func() time.Time { return frozen })

	seen := make(map[string]struct{}, 5000)
	for i := 0; i < 5000; i++ {
		number, err := gen.Next(context.Background())
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if _, dup := seen[number]; dup {
			t.Fatalf("duplicate number %q after %d draws", number, i)
		}
		seen[number] = struct{}{}
	}
}

func TestSequenceNumbers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := pkgredis.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	day := time.Date(2026, 10, 16, 23, 59, 0, 0, time.UTC)
	gen, err := NewSequenceNumbers(client, func() time.Time { return day })
	if err != nil {
		t.Fatalf("new sequence numbers: %v", err)
	}

	first, err := gen.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	second, err := gen.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first != "INV-20261016-000001" || second != "INV-20261016-000002" {
		t.Fatalf("unexpected sequence %q, %q", first, second)
	}
	if got, _ := mr.Get("ll:counter:invoice_number"); got != "2" {
		t.Fatalf("expected counter 2 in redis, got %q", got)
	}
}

func TestSequenceNumbersCounterFailure(t *testing.T) {
	client := pkgredis.NewFromRedis(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}))
	t.Cleanup(func() { _ = client.Close() })
	gen, err := NewSequenceNumbers(client, nil)
	if err != nil {
		t.Fatalf("new sequence numbers: %v", err)
	}

	if _, err := gen.Next(context.Background()); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}

func TestNewSequenceNumbersRequiresCounter(t *testing.T) {
	if _, err := NewSequenceNumbers(nil, nil); err == nil {
		t.Fatal("expected error for nil counter")
	}
}
