package relationship

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"
)

// ErrUnknownCharacter is returned by reads of a character that was never registered.
var ErrUnknownCharacter = errors.New("unknown character")

const (
	DefaultMaxScore  = 100
	DefaultLevelStep = 10
)

// Config holds the scoring rules of a ledger.
type Config struct {
	MaxScore             int         // Upper score bound, default 100
	LevelStep            int         // Points per level, default 10
	Thresholds           []Threshold // Named boundaries
	MaxDailyInteractions int         // Positive deltas per character per day, 0 disables
}

// LedgerEvent is the result of one ApplyDelta call.
type LedgerEvent struct {
	Character      string             `json:"character"`
	Amount         int                `json:"amount"`
	PreviousScore  int                `json:"previous_score"`
	Score          int                `json:"score"`
	PreviousLevel  int                `json:"previous_level"`
	Level          int                `json:"level"`
	PreviousStatus Status             `json:"previous_status"`
	Status         Status             `json:"status"`
	Crossed        []ThresholdCrossed `json:"crossed,omitempty"`
	ReachedMax     bool               `json:"reached_max,omitempty"`
	Limited        bool               `json:"limited,omitempty"` // Rejected by the daily interaction limit
}

// LevelUp reports whether the delta raised the character's level.
func (e LedgerEvent) LevelUp() bool {
	return e.Level > e.PreviousLevel
}

// Ledger owns all per-character relationship state. It is not safe for
// concurrent use; callers serialize access.
type Ledger struct {
	cfg     Config
	records map[string]*Record
	logger  *slog.Logger
	now     func() time.Time
}

// NewLedger creates a ledger. Thresholds are evaluated in ascending score order.
func NewLedger(cfg Config, logger *slog.Logger) *Ledger {
	if cfg.MaxScore <= 0 {
		cfg.MaxScore = DefaultMaxScore
	}
	if cfg.LevelStep <= 0 {
		cfg.LevelStep = DefaultLevelStep
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg.Thresholds = slices.Clone(cfg.Thresholds)
	slices.SortStableFunc(cfg.Thresholds, func(a, b Threshold) int {
		if c := cmp.Compare(a.Score, b.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return &Ledger{
		cfg:     cfg,
		records: make(map[string]*Record),
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for history timestamps.
// Returns the Ledger for method chaining
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Config returns the scoring rules.
func (l *Ledger) Config() Config {
	return l.cfg
}

// Register adds a character at score 0. Registering twice is a no-op.
func (l *Ledger) Register(characterID string) {
	l.ensure(characterID)
}

func (l *Ledger) ensure(characterID string) *Record {
	rec, ok := l.records[characterID]
	if !ok {
		rec = newRecord(characterID)
		l.records[characterID] = rec
		l.logger.Debug("Registered character", "character", characterID)
	}
	return rec
}

// ApplyDelta changes a character's score, clamped to [0, MaxScore], and fires
// each threshold the new score reaches for the first time. Unknown characters
// are registered at 0 first.
func (l *Ledger) ApplyDelta(characterID string, amount int, reason string) LedgerEvent {
	if characterID == "" {
		l.logger.Warn("Ignoring affection delta without character", "amount", amount, "reason", reason)
		return LedgerEvent{Amount: amount}
	}

	rec := l.ensure(characterID)
	prev := rec.Score

	event := LedgerEvent{
		Character:      characterID,
		Amount:         amount,
		PreviousScore:  prev,
		Score:          prev,
		PreviousLevel:  l.levelFor(prev),
		Level:          l.levelFor(prev),
		PreviousStatus: StatusFor(prev),
		Status:         StatusFor(prev),
	}

	if amount > 0 && l.cfg.MaxDailyInteractions > 0 && rec.DailyInteractions >= l.cfg.MaxDailyInteractions {
		l.logger.Info("Daily interaction limit reached",
			"character", characterID,
			"limit", l.cfg.MaxDailyInteractions)
		event.Limited = true
		return event
	}

	next := min(max(prev+amount, 0), l.cfg.MaxScore)
	rec.Score = next
	rec.History = append(rec.History, DeltaEntry{
		Amount:  amount,
		Applied: next - prev,
		Reason:  reason,
		At:      l.now(),
	})
	if amount > 0 {
		rec.DailyInteractions++
	}

	event.Score = next
	event.Level = l.levelFor(next)
	event.Status = StatusFor(next)
	event.ReachedMax = next == l.cfg.MaxScore && prev < l.cfg.MaxScore

	for _, th := range l.cfg.Thresholds {
		if th.Character != "" && th.Character != characterID {
			continue
		}
		if th.Score <= prev || th.Score > next || rec.Crossed[th.ID] {
			continue
		}
		rec.Crossed[th.ID] = true
		event.Crossed = append(event.Crossed, ThresholdCrossed{Character: characterID, Threshold: th})
	}

	l.logger.Debug("Applied affection delta",
		"character", characterID,
		"amount", amount,
		"score", next,
		"reason", reason,
		"crossed", len(event.Crossed))

	return event
}

func (l *Ledger) levelFor(score int) int {
	return score / l.cfg.LevelStep
}

func (l *Ledger) lookup(characterID string) (*Record, error) {
	rec, ok := l.records[characterID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharacter, characterID)
	}
	return rec, nil
}

// Score returns a character's current score.
func (l *Ledger) Score(characterID string) (int, error) {
	rec, err := l.lookup(characterID)
	if err != nil {
		return 0, err
	}
	return rec.Score, nil
}

// ScoreOrZero returns the score, treating unknown characters as 0.
func (l *Ledger) ScoreOrZero(characterID string) int {
	score, _ := l.Score(characterID)
	return score
}

// Level returns floor(score / LevelStep).
func (l *Ledger) Level(characterID string) (int, error) {
	rec, err := l.lookup(characterID)
	if err != nil {
		return 0, err
	}
	return l.levelFor(rec.Score), nil
}

// Status returns the relationship tier for the current score.
func (l *Ledger) Status(characterID string) (Status, error) {
	rec, err := l.lookup(characterID)
	if err != nil {
		return Stranger, err
	}
	return StatusFor(rec.Score), nil
}

// Record returns a copy of a character's record.
func (l *Ledger) Record(characterID string) (Record, error) {
	rec, err := l.lookup(characterID)
	if err != nil {
		return Record{}, err
	}
	return rec.clone(), nil
}

// Characters returns every registered character ID in sorted order.
func (l *Ledger) Characters() []string {
	return slices.Sorted(maps.Keys(l.records))
}

// Top returns the character with the highest score. Ties go to the
// lexically first ID. ok is false when no character is registered.
func (l *Ledger) Top() (characterID string, score int, ok bool) {
	for _, id := range l.Characters() {
		s := l.records[id].Score
		if !ok || s > score {
			characterID, score, ok = id, s, true
		}
	}
	return characterID, score, ok
}

// CanInteract reports whether a positive delta would be accepted today.
func (l *Ledger) CanInteract(characterID string) bool {
	if l.cfg.MaxDailyInteractions <= 0 {
		return true
	}
	rec, ok := l.records[characterID]
	if !ok {
		return true
	}
	return rec.DailyInteractions < l.cfg.MaxDailyInteractions
}

// ResetDaily clears every character's daily interaction counter.
func (l *Ledger) ResetDaily() {
	for _, rec := range l.records {
		rec.DailyInteractions = 0
	}
}

// Export returns a deep copy of all records for persistence.
func (l *Ledger) Export() map[string]Record {
	out := make(map[string]Record, len(l.records))
	for id, rec := range l.records {
		out[id] = rec.clone()
	}
	return out
}

// Restore replaces all records. Scores outside [0, MaxScore] are rejected
// and leave the ledger untouched.
func (l *Ledger) Restore(records map[string]Record) error {
	restored := make(map[string]*Record, len(records))
	for id, rec := range records {
		if rec.Score < 0 || rec.Score > l.cfg.MaxScore {
			return fmt.Errorf("restore %s: score %d outside [0, %d]", id, rec.Score, l.cfg.MaxScore)
		}
		c := rec.clone()
		c.Character = id
		restored[id] = &c
	}
	l.records = restored
	return nil
}

// Reset removes every record.
func (l *Ledger) Reset() {
	l.records = make(map[string]*Record)
}
