package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/internal/repository"
	"golang-scheduled-task/internal/schedule"
	"golang-scheduled-task/pkg/logger"
	"golang-scheduled-task/pkg/utils"
)

// MakeupPolicy decides when a holiday-deferred occurrence is made up.
type MakeupPolicy int

const (
	// MakeupNextBusinessDay fires the makeup on the first business day after
	// the holiday, whatever the recurrence rule says about that day.
	MakeupNextBusinessDay MakeupPolicy = iota
	// MakeupWithinLookahead fires the makeup only if the base rule would match a
	// day within the look-ahead window starting at the makeup date. Otherwise
	// the makeup is dropped.
	MakeupWithinLookahead
)

func ParseMakeupPolicy(raw string) (MakeupPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "next_business_day":
		return MakeupNextBusinessDay, nil
	case "lookahead":
		return MakeupWithinLookahead, nil
	default:
		return MakeupNextBusinessDay, fmt.Errorf("unknown makeup policy %q", raw)
	}
}

func (p MakeupPolicy) String() string {
	if p == MakeupWithinLookahead {
		return "lookahead"
	}
	return "next_business_day"
}

// Resolution is the resolver's verdict for one template on one date.
// Reason is one of the execution notes, or empty when nothing is due.
type Resolution struct {
	Fire          bool
	EffectiveDate time.Time
	Reason        string
	// MakeupFor is the holiday whose occurrence is being made up or dropped.
	MakeupFor *time.Time
}

// NotDue reports a date on which the template has nothing to do.
func (r Resolution) NotDue() bool {
	return !r.Fire && r.Reason == ""
}

// MakeupLedger exposes the pending makeup state kept in the execution log.
type MakeupLedger interface {
	PendingMakeup(ctx context.Context, scheduledTaskID uint, before time.Time, opts ...utils.DBOption) (*model.ScheduledTaskExecution, error)
}

type BusinessDayResolver interface {
	Resolve(ctx context.Context, tpl *model.ScheduledTask, date time.Time, ruleDue bool) (Resolution, error)
}

type businessDayResolver struct {
	log           *logger.Logger
	calendar      repository.HolidayCalendar
	ledger        MakeupLedger
	evaluator     schedule.Evaluator
	policy        MakeupPolicy
	lookaheadDays int
}

func NewBusinessDayResolver(
	log *logger.Logger,
	calendar repository.HolidayCalendar,
	ledger MakeupLedger,
	evaluator schedule.Evaluator,
	policy MakeupPolicy,
	lookaheadDays int,
) BusinessDayResolver {
	if lookaheadDays <= 0 {
		lookaheadDays = 1
	}
	return &businessDayResolver{
		log:           log,
		calendar:      calendar,
		ledger:        ledger,
		evaluator:     evaluator,
		policy:        policy,
		lookaheadDays: lookaheadDays,
	}
}

// Resolve applies holiday handling to the raw rule verdict for date.
func (r *businessDayResolver) Resolve(ctx context.Context, tpl *model.ScheduledTask, date time.Time, ruleDue bool) (Resolution, error) {
	if !tpl.SkipHolidays {
		if ruleDue {
			return Resolution{Fire: true, EffectiveDate: date, Reason: model.NoteScheduled}, nil
		}
		return Resolution{}, nil
	}
	if !ruleDue && !tpl.ExecuteOnNextBusinessDay {
		return Resolution{}, nil
	}

	holiday, err := r.calendar.IsHoliday(ctx, date)
	if err != nil {
		return Resolution{}, fmt.Errorf("holiday lookup for %s: %w", date.Format(time.DateOnly), err)
	}

	if holiday {
		// A non-matching holiday leaves any pending makeup pending.
		if !ruleDue {
			return Resolution{}, nil
		}
		if tpl.ExecuteOnNextBusinessDay {
			return Resolution{EffectiveDate: date, Reason: model.NoteHolidayMakeupPending}, nil
		}
		return Resolution{EffectiveDate: date, Reason: model.NoteHolidaySkipped}, nil
	}

	if tpl.ExecuteOnNextBusinessDay {
		pending, err := r.ledger.PendingMakeup(ctx, tpl.ID, date)
		if err != nil {
			return Resolution{}, fmt.Errorf("pending makeup for %s: %w", date.Format(time.DateOnly), err)
		}
		if pending != nil {
			holidayDate := pending.ExecutionDate
			if r.policy == MakeupWithinLookahead && !ruleDue {
				if _, ok := r.evaluator.NextMatch(tpl.Rules, date, r.lookaheadDays); !ok {
					r.log.FromContext(ctx).DebugContext(ctx, "Makeup dropped, no rule match within look-ahead",
						logger.UintField("scheduled_task_id", tpl.ID),
						logger.DateField("holiday", holidayDate),
						logger.IntField("lookahead_days", r.lookaheadDays),
					)
					return Resolution{EffectiveDate: date, Reason: model.NoteMakeupDropped, MakeupFor: &holidayDate}, nil
				}
			}
			// A makeup coinciding with a regular occurrence produces one task.
			return Resolution{Fire: true, EffectiveDate: date, Reason: model.NoteMakeup, MakeupFor: &holidayDate}, nil
		}
	}

	if ruleDue {
		return Resolution{Fire: true, EffectiveDate: date, Reason: model.NoteScheduled}, nil
	}
	return Resolution{}, nil
}
