// Package alert detects day-over-day price movements in freshly ingested
// records and notifies subscribed users by SMS.
package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agrilink/pricewatch/internal/model"
	"github.com/agrilink/pricewatch/internal/resilience"
)

// DefaultLookbackDays bounds the fallback baseline search when no record
// exists for the previous calendar day.
const DefaultLookbackDays = 180

// Store is the subset of price/subscription persistence the engine reads.
type Store interface {
	LatestPriceOn(ctx context.Context, date, region, cropName, specification string) (*model.PriceRecord, error)
	LatestPriceBetween(ctx context.Context, cropName, specification, since, before string) (*model.PriceRecord, error)
	ListSubscriptions(ctx context.Context) ([]model.AlertSubscription, error)
	UserPhone(ctx context.Context, userID string) (string, error)
}

// Dispatcher delivers one message to one phone number.
type Dispatcher interface {
	Send(ctx context.Context, number, message string) error
}

// Options tunes an Engine.
type Options struct {
	LookbackDays int
}

// Engine compares a run's records against stored baselines and dispatches
// consolidated notifications.
type Engine struct {
	store        Store
	dispatcher   Dispatcher
	lookbackDays int
	retry        resilience.RetryConfig
}

// NewEngine creates an Engine. A nil dispatcher disables delivery; changes
// are still detected and counted.
func NewEngine(store Store, dispatcher Dispatcher, opts Options) *Engine {
	lookback := opts.LookbackDays
	if lookback <= 0 {
		lookback = DefaultLookbackDays
	}
	return &Engine{
		store:        store,
		dispatcher:   dispatcher,
		lookbackDays: lookback,
		retry:        resilience.DefaultRetryConfig(),
	}
}

// Run detects price changes among records and dispatches one consolidated
// message per affected user. It returns the number of fired alert events.
// Per-user dispatch failures are logged and do not abort remaining users.
func (e *Engine) Run(ctx context.Context, records []model.PriceRecord) (int, error) {
	changes := e.detectChanges(ctx, records)
	if len(changes) == 0 {
		zap.L().Info("alert: no price changes detected", zap.Int("records", len(records)))
		return 0, nil
	}

	subs, err := e.store.ListSubscriptions(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "alert: list subscriptions")
	}

	perUser := matchSubscriptions(changes, subs)
	fired := 0
	for _, lines := range perUser {
		fired += len(lines)
	}
	if fired == 0 {
		zap.L().Info("alert: changes matched no subscriptions", zap.Int("changes", len(changes)))
		return 0, nil
	}

	e.dispatch(ctx, perUser)
	return fired, nil
}

// detectChanges finds the baseline for each record and emits a change event
// when current and baseline prices are both present and differ. A record
// with no baseline, or a baseline lookup failure, is skipped.
func (e *Engine) detectChanges(ctx context.Context, records []model.PriceRecord) []model.PriceChange {
	var changes []model.PriceChange
	for _, rec := range records {
		if rec.Price == nil {
			continue
		}

		baseline, err := e.baselineFor(ctx, rec)
		if err != nil {
			zap.L().Warn("alert: baseline lookup failed",
				zap.String("crop", rec.CropName), zap.Error(err))
			continue
		}
		if baseline == nil || baseline.Price == nil {
			continue
		}
		if *baseline.Price == *rec.Price {
			continue
		}

		changes = append(changes, model.PriceChange{
			Record:    rec,
			OldPrice:  *baseline.Price,
			NewPrice:  *rec.Price,
			Increased: *rec.Price > *baseline.Price,
		})
	}
	return changes
}

// baselineFor resolves the comparison record: the previous calendar day for
// the same key first, then the most recent region-agnostic record for the
// same (crop, specification) within the lookback window, excluding the
// record's own date.
func (e *Engine) baselineFor(ctx context.Context, rec model.PriceRecord) (*model.PriceRecord, error) {
	if prev := rec.PrevDate(); prev != "" {
		baseline, err := e.store.LatestPriceOn(ctx, prev, rec.Region, rec.CropName, rec.Specification)
		if err != nil {
			return nil, err
		}
		if baseline != nil {
			return baseline, nil
		}
	}

	day, err := time.Parse(model.DateLayout, rec.Date)
	if err != nil {
		return nil, nil
	}
	since := day.AddDate(0, 0, -e.lookbackDays).Format(model.DateLayout)
	return e.store.LatestPriceBetween(ctx, rec.CropName, rec.Specification, since, rec.Date)
}

// matchSubscriptions evaluates every subscription against every change and
// groups the resulting alert lines by user.
func matchSubscriptions(changes []model.PriceChange, subs []model.AlertSubscription) map[string][]string {
	perUser := make(map[string][]string)
	for _, change := range changes {
		for _, sub := range subs {
			if !subscriptionMatches(sub, change) {
				continue
			}
			perUser[sub.UserID] = append(perUser[sub.UserID], alertLine(change))
		}
	}
	return perUser
}

// subscriptionMatches applies key matching and trigger semantics. Crop and
// specification match on case-insensitive prefix, mirroring the store's
// lookup behavior; an empty region or specification matches anything.
func subscriptionMatches(sub model.AlertSubscription, change model.PriceChange) bool {
	rec := change.Record
	if !strings.HasPrefix(strings.ToLower(rec.CropName), strings.ToLower(sub.CropName)) {
		return false
	}
	if sub.Region != "" && !strings.EqualFold(sub.Region, rec.Region) {
		return false
	}
	if sub.Specification != "" &&
		!strings.HasPrefix(strings.ToLower(rec.Specification), strings.ToLower(sub.Specification)) {
		return false
	}

	switch sub.Trigger {
	case model.TriggerAbove:
		return change.Increased && change.NewPrice >= sub.Threshold
	case model.TriggerBelow:
		return !change.Increased && change.NewPrice <= sub.Threshold
	case model.TriggerChanged:
		return true
	default:
		return false
	}
}

func alertLine(change model.PriceChange) string {
	name := change.Record.CropName
	if change.Record.Specification != "" {
		name += " (" + change.Record.Specification + ")"
	}
	direction := "down"
	if change.Increased {
		direction = "up"
	}
	return fmt.Sprintf("%s %s: %.2f -> %.2f %s",
		name, direction, change.OldPrice, change.NewPrice, change.Record.Unit)
}

// dispatch sends one consolidated message per user. Users are processed in
// a stable order; a missing phone number or send failure skips that user.
func (e *Engine) dispatch(ctx context.Context, perUser map[string][]string) {
	if e.dispatcher == nil {
		zap.L().Warn("alert: no dispatcher configured, skipping delivery",
			zap.Int("users", len(perUser)))
		return
	}

	users := make([]string, 0, len(perUser))
	for user := range perUser {
		users = append(users, user)
	}
	sort.Strings(users)

	for _, user := range users {
		phone, err := e.store.UserPhone(ctx, user)
		if err != nil {
			zap.L().Warn("alert: phone lookup failed", zap.String("user", user), zap.Error(err))
			continue
		}
		if phone == "" {
			zap.L().Warn("alert: user has no phone on file", zap.String("user", user))
			continue
		}

		message := "Price alerts:\n" + strings.Join(perUser[user], "\n")
		err = resilience.Do(ctx, e.retry, func(ctx context.Context) error {
			return e.dispatcher.Send(ctx, phone, message)
		})
		if err != nil {
			zap.L().Warn("alert: dispatch failed", zap.String("user", user), zap.Error(err))
			continue
		}
		zap.L().Info("alert: dispatched",
			zap.String("user", user), zap.Int("alerts", len(perUser[user])))
	}
}
