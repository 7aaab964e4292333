package counter

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dailyKeyPrefix = "payment:counters:"
	dateLayout     = "2006-01-02"

	// DefaultRetention keeps a little over a month of daily hashes.
	DefaultRetention = 35 * 24 * time.Hour
)

// Event names. Initiation and callback outcomes are appended to the prefix.
const (
	EventInitiatePrefix = "initiate:"
	EventReasonPrefix   = "reason:"
	EventCallbackPrefix = "callback:"
)

// Day holds the counters recorded on one calendar day (UTC).
type Day struct {
	Date   string           `json:"date"`
	Counts map[string]int64 `json:"counts"`
}

// Counter keeps per-day payment event counters in Redis hashes, one hash per
// day and one field per event. A nil *Counter records nothing.
type Counter struct {
	rdb       redis.Cmdable
	retention time.Duration
	now       func() time.Time
}

func New(rdb redis.Cmdable) *Counter {
	return &Counter{rdb: rdb, retention: DefaultRetention, now: time.Now}
}

func dailyKey(t time.Time) string {
	return dailyKeyPrefix + t.UTC().Format(dateLayout)
}

// Add increments event in today's hash and refreshes the hash expiry.
func (c *Counter) Add(ctx context.Context, event string) error {
	if c == nil || c.rdb == nil || event == "" {
		return nil
	}
	key := dailyKey(c.now())
	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, event, 1)
	pipe.Expire(ctx, key, c.retention)
	_, err := pipe.Exec(ctx)
	return err
}

// Daily returns the last n days, newest first. Days without events have an
// empty Counts map.
func (c *Counter) Daily(ctx context.Context, n int) ([]Day, error) {
	if c == nil || c.rdb == nil || n <= 0 {
		return []Day{}, nil
	}
	today := c.now().UTC()
	days := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		d := today.AddDate(0, 0, -i)
		raw, err := c.rdb.HGetAll(ctx, dailyKey(d)).Result()
		if err != nil {
			return nil, err
		}
		counts := make(map[string]int64, len(raw))
		for field, v := range raw {
			n, perr := strconv.ParseInt(v, 10, 64)
			if perr != nil {
				continue
			}
			counts[field] = n
		}
		days = append(days, Day{Date: d.Format(dateLayout), Counts: counts})
	}
	return days, nil
}

// Totals sums the given days per event, with events sorted by name.
func Totals(days []Day) []EventTotal {
	sums := map[string]int64{}
	for _, d := range days {
		for event, n := range d.Counts {
			sums[event] += n
		}
	}
	out := make([]EventTotal, 0, len(sums))
	for event, n := range sums {
		out = append(out, EventTotal{Event: event, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Event < out[j].Event })
	return out
}

type EventTotal struct {
	Event string `json:"event"`
	Count int64  `json:"count"`
}
