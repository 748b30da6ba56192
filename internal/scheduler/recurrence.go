package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Skip reasons reported by the propagator.
const (
	SkipComplete = "complete"
	SkipHoliday  = "holiday"
	SkipExists   = "exists"
	SkipConflict = "conflict"
)

// PropagationSkip records a member session that was not copied forward.
type PropagationSkip struct {
	SourceID string `json:"source_id"`
	ClassID  string `json:"class_id"`
	Reason   string `json:"reason"`
}

// PropagationResult is the outcome of copying one week forward.
type PropagationResult struct {
	Created  []models.Session            `json:"created"`
	Warnings []models.PropagationWarning `json:"warnings"`
	Skipped  []PropagationSkip           `json:"skipped"`

	sources map[string]string
}

// SourceOf returns the id of the week session a created copy was cloned from.
func (r PropagationResult) SourceOf(copyID string) string {
	if source, ok := r.sources[copyID]; ok {
		return source
	}
	return copyID
}

// Summary renders the caller-facing report: the created count when there are no
// warnings, otherwise the warning messages.
func (r PropagationResult) Summary() string {
	if len(r.Warnings) == 0 {
		return fmt.Sprintf("%d sessions created", len(r.Created))
	}
	messages := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		messages = append(messages, w.Message)
	}
	return strings.Join(messages, "\n")
}

// Propagator projects a week's class sessions forward.
type Propagator struct {
	policy        SharedPolicy
	catalog       Catalog
	checker       *ConflictChecker
	offsetDays    int
	nearThreshold int
	newID         func() string
}

// PropagatorOption customises a Propagator.
type PropagatorOption func(*Propagator)

// WithIDGenerator overrides the id generator used for new sessions.
func WithIDGenerator(fn func() string) PropagatorOption {
	return func(p *Propagator) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// WithOffsetDays changes how far forward sessions are copied.
func WithOffsetDays(days int) PropagatorOption {
	return func(p *Propagator) {
		if days > 0 {
			p.offsetDays = days
		}
	}
}

// WithNearCompletionThreshold changes the remaining-period count that triggers a warning.
func WithNearCompletionThreshold(periods int) PropagatorOption {
	return func(p *Propagator) {
		if periods > 0 {
			p.nearThreshold = periods
		}
	}
}

// NewPropagator builds a propagator; defaults are a 7 day offset and a threshold of 4.
func NewPropagator(policy SharedPolicy, catalog Catalog, opts ...PropagatorOption) *Propagator {
	p := &Propagator{
		policy:        policy,
		catalog:       catalog,
		checker:       NewConflictChecker(policy, catalog),
		offsetDays:    7,
		nearThreshold: 4,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type warningKey struct {
	kind      models.WarningKind
	classID   string
	subjectID string
	group     string
}

// Propagate copies every non-exam session in week forward by the configured offset.
// Joint groups are processed once; each member is copied independently, capped by its
// remaining periods and skipped on holidays, existing bookings or conflicts.
func (p *Propagator) Propagate(week, all []models.Session, holidays HolidayCalendar) PropagationResult {
	sources := make([]models.Session, 0, len(week))
	for _, s := range week {
		if s.Kind != models.SessionKindExam {
			sources = append(sources, s)
		}
	}
	sort.SliceStable(sources, func(i, j int) bool {
		di, dj := models.DateOnly(sources[i].Date), models.DateOnly(sources[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return sources[i].StartPeriod < sources[j].StartPeriod
	})

	lookup := mergeByID(all, week)
	working := make([]models.Session, len(lookup))
	copy(working, lookup)

	result := PropagationResult{sources: make(map[string]string)}
	ledger := Ledger{}
	processed := make(map[string]struct{})
	warned := make(map[warningKey]struct{})

	warn := func(w models.PropagationWarning) {
		key := warningKey{kind: w.Kind, classID: w.ClassID, subjectID: w.SubjectID, group: w.Group}
		if _, seen := warned[key]; seen {
			return
		}
		warned[key] = struct{}{}
		result.Warnings = append(result.Warnings, w)
	}
	skip := func(member models.Session, reason string) {
		result.Skipped = append(result.Skipped, PropagationSkip{SourceID: member.ID, ClassID: member.ClassID, Reason: reason})
	}

	for _, source := range sources {
		dedupe := fmt.Sprintf("%s|%d|%s|%s", models.DateOnly(source.Date).Format(time.DateOnly), source.StartPeriod, source.TeacherID, source.SubjectID)
		if _, done := processed[dedupe]; done {
			continue
		}
		processed[dedupe] = struct{}{}

		target := models.DateOnly(source.Date).AddDate(0, 0, p.offsetDays)
		var holiday models.Holiday
		blocked := false
		if holidays != nil {
			holiday, blocked = holidays.HolidayFor(target)
		}

		for _, member := range p.policy.Siblings(source, lookup, p.catalog) {
			if member.Kind == models.SessionKindExam {
				continue
			}
			key := ProgressKeyOf(member)
			total := 0
			if subject, ok := p.catalog.Subject(member.SubjectID); ok {
				total = subject.TotalPeriods
			}
			baseline := ProgressOf(member.SubjectID, member.ClassID, total, lookup, member.Group).Remaining
			remaining := baseline - ledger.Scheduled(key)
			if remaining <= 0 {
				skip(member, SkipComplete)
				continue
			}

			if blocked {
				skip(member, SkipHoliday)
				warn(models.PropagationWarning{
					Kind:      models.WarningHolidaySkipped,
					ClassID:   member.ClassID,
					SubjectID: member.SubjectID,
					Group:     member.GroupLabel(),
					Message: fmt.Sprintf("%s: %s on %s falls on holiday %q and was not copied",
						p.catalog.ClassName(member.ClassID), p.catalog.SubjectName(member.SubjectID), target.Format(time.DateOnly), holiday.Name),
				})
				continue
			}

			if slotTaken(working, member.ClassID, target, member.StartPeriod) {
				skip(member, SkipExists)
			} else {
				clone := member
				clone.ID = p.newID()
				clone.Date = target
				clone.PeriodCount, _ = FitPeriodCount(member.PeriodCount, remaining)
				clone.Status = models.SessionStatusPending
				clone.CreatedAt = time.Time{}
				clone.UpdatedAt = time.Time{}
				if err := p.checker.Check(clone, working); err != nil {
					skip(member, SkipConflict)
				} else {
					working = append(working, clone)
					result.Created = append(result.Created, clone)
					result.sources[clone.ID] = member.ID
					ledger.Add(key, clone.PeriodCount)
				}
			}

			left := baseline - ledger.Scheduled(key)
			if left > 0 && left <= p.nearThreshold {
				warn(p.nearCompletionWarning(member, left))
			}
		}
	}
	return result
}

// NearCompletion warns, once per subject, class and group of members, when the periods
// remaining over sessions are within the near-completion threshold.
func (p *Propagator) NearCompletion(members, sessions []models.Session) []models.PropagationWarning {
	var warnings []models.PropagationWarning
	seen := make(map[ProgressKey]struct{})
	for _, member := range members {
		if member.Kind == models.SessionKindExam {
			continue
		}
		key := ProgressKeyOf(member)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		total := 0
		if subject, ok := p.catalog.Subject(member.SubjectID); ok {
			total = subject.TotalPeriods
		}
		left := ProgressOf(member.SubjectID, member.ClassID, total, sessions, member.Group).Remaining
		if left > 0 && left <= p.nearThreshold {
			warnings = append(warnings, p.nearCompletionWarning(member, left))
		}
	}
	return warnings
}

func (p *Propagator) nearCompletionWarning(member models.Session, left int) models.PropagationWarning {
	return models.PropagationWarning{
		Kind:      models.WarningNearCompletion,
		ClassID:   member.ClassID,
		SubjectID: member.SubjectID,
		Group:     member.GroupLabel(),
		Message: fmt.Sprintf("%s%s: %s has only %d periods remaining",
			p.catalog.ClassName(member.ClassID), groupSuffix(member), p.catalog.SubjectName(member.SubjectID), left),
	}
}

func slotTaken(sessions []models.Session, classID string, date time.Time, startPeriod int) bool {
	for _, s := range sessions {
		if s.ClassID == classID && s.StartPeriod == startPeriod && models.DateOnly(s.Date).Equal(date) {
			return true
		}
	}
	return false
}

func groupSuffix(s models.Session) string {
	if label := s.GroupLabel(); label != "" {
		return " (" + label + ")"
	}
	return ""
}

func mergeByID(base, extra []models.Session) []models.Session {
	merged := make([]models.Session, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base))
	for _, s := range base {
		if s.ID != "" {
			seen[s.ID] = struct{}{}
		}
		merged = append(merged, s)
	}
	for _, s := range extra {
		if _, ok := seen[s.ID]; ok && s.ID != "" {
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
