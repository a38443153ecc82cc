package counter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/internal/pkg/cache"
	"github.com/hangarlinks/hangarlinks/internal/pkg/database"
)

const (
	listingViewsKey  = "listing:counters:views"
	adImpressionsKey = "ad:counters:impressions"
	adClicksKey      = "ad:counters:clicks"
)

// target is one Redis hash and the column its increments land in.
type target struct {
	key    string
	table  string
	column string
}

var targets = []target{
	{listingViewsKey, "listings", "view_count"},
	{adImpressionsKey, "ads", "impressions"},
	{adClicksKey, "ads", "clicks"},
}

var errNoCache = errors.New("counter: cache not initialized")

func incr(key string, id uint) error {
	rdb := cache.GetClient()
	if rdb == nil {
		return errNoCache
	}
	field := strconv.FormatUint(uint64(id), 10)
	return rdb.HIncrBy(context.Background(), key, field, 1).Err()
}

// AddListingView counts a listing detail view.
func AddListingView(listingID uint) error {
	return incr(listingViewsKey, listingID)
}

// AddAdImpressions counts one impression for each shown ad.
func AddAdImpressions(adIDs ...uint) error {
	if len(adIDs) == 0 {
		return nil
	}
	rdb := cache.GetClient()
	if rdb == nil {
		return errNoCache
	}
	ctx := context.Background()
	pipe := rdb.Pipeline()
	for _, id := range adIDs {
		pipe.HIncrBy(ctx, adImpressionsKey, strconv.FormatUint(uint64(id), 10), 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func AddAdClick(adID uint) error {
	return incr(adClicksKey, adID)
}

// FlushAll drains every counter hash into MySQL.
func FlushAll() error {
	db := database.GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return Flush(cache.GetClient(), db)
}

// Flush drains the counter hashes with the given clients.
func Flush(rdb *redis.Client, db *gorm.DB) error {
	for _, t := range targets {
		if err := flushHashToTable(rdb, db, t); err != nil {
			return fmt.Errorf("flush %s: %w", t.key, err)
		}
	}
	return nil
}

type increment struct {
	id  uint64
	inc int64
}

// flushHashToTable drains a Redis hash atomically and applies batched increments.
// RENAME to a temporary key keeps increments that arrive during the flush.
func flushHashToTable(rdb *redis.Client, db *gorm.DB, t target) error {
	ctx := context.Background()

	tmpKey := fmt.Sprintf("%s:tmp:%d", t.key, time.Now().UnixNano())
	if err := rdb.Rename(ctx, t.key, tmpKey).Err(); err != nil {
		if err == redis.Nil || strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		return err
	}
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}

	pairs := parseIncrements(data)
	if len(pairs) == 0 {
		return nil
	}
	query, args := incrementSQL(t.table, t.column, pairs)
	return db.Exec(query, args...).Error
}

func parseIncrements(data map[string]string) []increment {
	pairs := make([]increment, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, increment{id: id, inc: inc})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })
	return pairs
}

// incrementSQL builds
// UPDATE <table> SET <column> = <column> + CASE id WHEN ? THEN ? ... END WHERE id IN (...)
func incrementSQL(table, column string, pairs []increment) (string, []interface{}) {
	var b strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	b.WriteString("UPDATE ")
	b.WriteString(table)
	b.WriteString(" SET ")
	b.WriteString(column)
	b.WriteString(" = ")
	b.WriteString(column)
	b.WriteString(" + CASE id")
	for _, p := range pairs {
		b.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	b.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
		args = append(args, p.id)
	}
	b.WriteString(")")
	return b.String(), args
}
