// Package matching scores brand/event compatibility and keeps the stored
// match records in step with brand and event profiles.
package matching

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/plugcu/backend/config"
	"github.com/plugcu/backend/internal/models"
)

var (
	// ErrInvalidInput is returned for malformed profile data (negative or inverted ranges).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable wraps record store failures during a batch run.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Weights are the relative contributions of each component to the final score.
type Weights struct {
	Tag         float64
	Budget      float64
	Demographic float64
	Attendance  float64
	Recency     float64
}

func (w Weights) sum() float64 {
	return w.Tag + w.Budget + w.Demographic + w.Attendance + w.Recency
}

// ScorerConfig configures the scoring algorithm.
type ScorerConfig struct {
	Weights             Weights
	StrongThreshold     float64 // components at or above are reported as strong
	WeakThreshold       float64 // components below are reported as weak
	AttendanceReference float64 // attendance that scores 0.5
	RecencyHalfLife     time.Duration
}

// DefaultScorerConfig returns the production weights and thresholds.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Weights:             Weights{Tag: 0.35, Budget: 0.25, Demographic: 0.20, Attendance: 0.15, Recency: 0.05},
		StrongThreshold:     0.7,
		WeakThreshold:       0.3,
		AttendanceReference: 200,
		RecencyHalfLife:     14 * 24 * time.Hour,
	}
}

// ScorerConfigFrom builds a ScorerConfig from application configuration.
func ScorerConfigFrom(c config.MatchingConfig) ScorerConfig {
	return ScorerConfig{
		Weights: Weights{
			Tag:         c.WeightTag,
			Budget:      c.WeightBudget,
			Demographic: c.WeightDemographic,
			Attendance:  c.WeightAttendance,
			Recency:     c.WeightRecency,
		},
		StrongThreshold:     c.StrongThreshold,
		WeakThreshold:       c.WeakThreshold,
		AttendanceReference: c.AttendanceReference,
		RecencyHalfLife:     c.RecencyHalfLife,
	}
}

// Result is the outcome of scoring one brand/event pair.
type Result struct {
	Score     float64
	Breakdown models.ScoreBreakdown
}

// Scorer computes match scores. It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg ScorerConfig) (*Scorer, error) {
	w := cfg.Weights
	if w.Tag < 0 || w.Budget < 0 || w.Demographic < 0 || w.Attendance < 0 || w.Recency < 0 {
		return nil, fmt.Errorf("%w: weights must not be negative", ErrInvalidInput)
	}
	if w.sum() <= 0 {
		return nil, fmt.Errorf("%w: weights must sum to a positive value", ErrInvalidInput)
	}
	if cfg.AttendanceReference <= 0 {
		return nil, fmt.Errorf("%w: attendance reference must be positive", ErrInvalidInput)
	}
	if cfg.RecencyHalfLife <= 0 {
		return nil, fmt.Errorf("%w: recency half-life must be positive", ErrInvalidInput)
	}
	if cfg.WeakThreshold > cfg.StrongThreshold {
		return nil, fmt.Errorf("%w: weak threshold above strong threshold", ErrInvalidInput)
	}
	return &Scorer{cfg: cfg}, nil
}

// Score computes the compatibility of brand with event (owned by org) as of asOf.
// The same inputs always yield the same result.
func (s *Scorer) Score(brand *models.Brand, event *models.Event, org *models.Organization, asOf time.Time) (Result, error) {
	if brand == nil || event == nil || org == nil {
		return Result{}, fmt.Errorf("%w: brand, event and organization are required", ErrInvalidInput)
	}
	if err := validateBrand(brand); err != nil {
		return Result{}, err
	}
	if err := validateEvent(event); err != nil {
		return Result{}, err
	}

	tag, matched := tagOverlap(brand, event)
	budget, budgetFit := budgetAlignment(brand.BudgetRangeMin, brand.BudgetRangeMax, event.SponsorshipMinAmount, event.SponsorshipMaxAmount)
	attendance, category := s.attendance(event.ExpectedAttendance)
	recency := s.recency(event.CreatedAt, asOf)
	demographic := demographicMatch(brand, org)

	w := s.cfg.Weights
	total := (w.Tag*tag + w.Budget*budget + w.Demographic*demographic + w.Attendance*attendance + w.Recency*recency) / w.sum()

	b := models.ScoreBreakdown{
		TagOverlapScore:       tag,
		BudgetAlignmentScore:  budget,
		AttendanceScore:       attendance,
		RecencyScore:          recency,
		DemographicMatchScore: demographic,
		MatchedTags:           matched,
		BudgetFit:             budgetFit,
		AttendanceCategory:    category,
	}
	b.Explanation = s.explain(b)
	return Result{Score: clamp01(total), Breakdown: b}, nil
}

// ContentKey identifies the inputs of a score. Two pairs with the same key produce the same
// result, so a stored match with an equal key does not need rewriting.
func (s *Scorer) ContentKey(brand *models.Brand, event *models.EventWithOrg, asOf time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%d|%s|%+v",
		brand.ID, event.ID,
		brand.UpdatedAt.UnixNano(), event.UpdatedAt.UnixNano(), event.Org.UpdatedAt.UnixNano(),
		asOf.UTC().Format(time.DateOnly), s.cfg)
	return hex.EncodeToString(h.Sum(nil))
}

func validateBrand(b *models.Brand) error {
	if err := validateRange("budget_range", b.BudgetRangeMin, b.BudgetRangeMax); err != nil {
		return fmt.Errorf("brand %s: %w", b.ID, err)
	}
	return nil
}

func validateEvent(e *models.Event) error {
	if err := validateRange("sponsorship", e.SponsorshipMinAmount, e.SponsorshipMaxAmount); err != nil {
		return fmt.Errorf("event %s: %w", e.ID, err)
	}
	if e.ExpectedAttendance != nil && *e.ExpectedAttendance < 0 {
		return fmt.Errorf("event %s: %w: negative expected attendance", e.ID, ErrInvalidInput)
	}
	return nil
}

func validateRange(name string, lo, hi *int64) error {
	if lo != nil && *lo < 0 {
		return fmt.Errorf("%w: negative %s min", ErrInvalidInput, name)
	}
	if hi != nil && *hi < 0 {
		return fmt.Errorf("%w: negative %s max", ErrInvalidInput, name)
	}
	if lo != nil && hi != nil && *lo > *hi {
		return fmt.Errorf("%w: %s min %d above max %d", ErrInvalidInput, name, *lo, *hi)
	}
	return nil
}

// tagOverlap credits the brand's preferred event types matching the event type and its
// target demographics matching the event tags, relative to everything the brand asked for.
func tagOverlap(b *models.Brand, e *models.Event) (float64, []string) {
	preferred := normalizeSet(b.PreferredEventTypes)
	demographics := normalizeSet(b.TargetDemographics)
	interest := len(union(preferred, demographics))
	if interest == 0 {
		return 0, []string{}
	}
	matched := make(map[string]struct{})
	if t := normalize(e.EventType); t != "" {
		if _, ok := preferred[t]; ok {
			matched[t] = struct{}{}
		}
	}
	for tag := range normalizeSet(e.Tags) {
		if _, ok := demographics[tag]; ok {
			matched[tag] = struct{}{}
		}
	}
	return float64(len(matched)) / float64(interest), sortedKeys(matched)
}

// budgetAlignment is neutral when either side states no bounds, full on overlap, and decays
// linearly with the gap relative to the brand's budget otherwise.
func budgetAlignment(brandMin, brandMax, eventMin, eventMax *int64) (float64, string) {
	if (brandMin == nil && brandMax == nil) || (eventMin == nil && eventMax == nil) {
		return 0.5, "Budget information incomplete"
	}
	bLo, bHi := bounds(brandMin, brandMax)
	eLo, eHi := bounds(eventMin, eventMax)

	if bLo <= eHi && eLo <= bHi {
		return 1, fmt.Sprintf("Budget overlaps sponsorship range: %s", formatRange(math.Max(bLo, eLo), math.Min(bHi, eHi)))
	}

	var gap float64
	var fit string
	if bHi < eLo {
		gap = eLo - bHi
		fit = fmt.Sprintf("Brand budget (%s) below event minimum (%s)", formatAmount(bHi), formatAmount(eLo))
	} else {
		gap = bLo - eHi
		fit = fmt.Sprintf("Brand budget (%s) above event maximum (%s)", formatAmount(bLo), formatAmount(eHi))
	}
	reference := bHi
	if math.IsInf(reference, 1) {
		reference = bLo
	}
	if reference <= 0 {
		return 0, fit
	}
	return math.Max(0, 1-gap/reference), fit
}

func bounds(lo, hi *int64) (float64, float64) {
	l, h := 0.0, math.Inf(1)
	if lo != nil {
		l = float64(*lo)
	}
	if hi != nil {
		h = float64(*hi)
	}
	return l, h
}

func (s *Scorer) attendance(expected *int) (float64, string) {
	if expected == nil {
		return 0.5, "Attendance not specified"
	}
	a := float64(*expected)
	score := a / (a + s.cfg.AttendanceReference)
	switch {
	case *expected < 50:
		return score, "Small intimate event"
	case *expected < 200:
		return score, "Medium-sized event"
	case *expected < 500:
		return score, "Large event"
	default:
		return score, "Major event"
	}
}

func (s *Scorer) recency(createdAt, asOf time.Time) float64 {
	if createdAt.IsZero() {
		return 0.5
	}
	age := asOf.Sub(createdAt)
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(s.cfg.RecencyHalfLife))
}

// demographicMatch is the share of the brand's target demographics the organization
// names among its tags or category.
func demographicMatch(b *models.Brand, org *models.Organization) float64 {
	targets := normalizeSet(b.TargetDemographics)
	if len(targets) == 0 {
		return 0
	}
	reach := normalizeSet(org.Tags)
	if c := normalize(org.Category); c != "" {
		reach[c] = struct{}{}
	}
	n := 0
	for t := range targets {
		if _, ok := reach[t]; ok {
			n++
		}
	}
	return float64(n) / float64(len(targets))
}

type component struct {
	name  string
	score float64
}

func (s *Scorer) explain(b models.ScoreBreakdown) string {
	components := []component{
		{"interest alignment", b.TagOverlapScore},
		{"budget fit", b.BudgetAlignmentScore},
		{"audience demographics", b.DemographicMatchScore},
		{"event size", b.AttendanceScore},
		{"recency", b.RecencyScore},
	}
	var strong, weak []string
	for _, c := range components {
		switch {
		case c.score >= s.cfg.StrongThreshold:
			strong = append(strong, c.name)
		case c.score < s.cfg.WeakThreshold:
			weak = append(weak, c.name)
		}
	}

	var parts []string
	if len(strong) > 0 {
		parts = append(parts, "Strong "+strings.Join(strong, ", "))
	}
	if len(weak) > 0 {
		parts = append(parts, "weak "+strings.Join(weak, ", "))
	}
	if len(parts) == 0 {
		parts = append(parts, "Moderate fit on every factor")
	}
	out := strings.Join(parts, "; ")
	if n := len(b.MatchedTags); n > 0 {
		out += fmt.Sprintf(" (%d matching %s: %s)", n, plural(n, "tag", "tags"), strings.Join(b.MatchedTags, ", "))
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if n := normalize(v); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatRange(lo, hi float64) string {
	if math.IsInf(hi, 1) {
		return formatAmount(lo) + "+"
	}
	return formatAmount(lo) + " - " + formatAmount(hi)
}

// formatAmount renders whole dollars with thousands separators, e.g. $25,000.
func formatAmount(v float64) string {
	digits := strconv.FormatInt(int64(v), 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return "$" + b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
