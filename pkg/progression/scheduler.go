package progression

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/jwebster45206/heartline/pkg/conditionals"
	"github.com/jwebster45206/heartline/pkg/relationship"
	"github.com/jwebster45206/heartline/pkg/state"
)

// ErrInvalidTick is returned for negative or non-finite time deltas.
var ErrInvalidTick = errors.New("invalid tick")

// ScenarioStarter is the part of the dialogue interpreter the scheduler drives.
type ScenarioStarter interface {
	Busy() bool
	Start(scenarioID string) error
}

// Scheduler owns simulated time. It fires story events, picks the next
// scenario and decides the ending. It is not safe for concurrent use.
type Scheduler struct {
	cfg     Config
	ledger  *relationship.Ledger
	flags   *state.FlagSet
	starter ScenarioStarter
	logger  *slog.Logger

	progress state.Progress
}

// NewScheduler creates a scheduler at the start of the first chapter.
func NewScheduler(cfg Config, ledger *relationship.Ledger, flags *state.FlagSet, starter ScenarioStarter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	cfg.Chapters = slices.Clone(cfg.Chapters)
	slices.SortStableFunc(cfg.Chapters, func(a, b Chapter) int {
		return cmp.Compare(a.Number, b.Number)
	})
	cfg.Endings = slices.Clone(cfg.Endings)
	slices.SortStableFunc(cfg.Endings, func(a, b EndingCondition) int {
		return cmp.Compare(a.Priority, b.Priority)
	})

	s := &Scheduler{
		cfg:     cfg,
		ledger:  ledger,
		flags:   flags,
		starter: starter,
		logger:  logger,
	}
	s.Reset()
	return s
}

// Reset returns to the first chapter with no events occurred.
func (s *Scheduler) Reset() {
	first := 1
	if len(s.cfg.Chapters) > 0 {
		first = s.cfg.Chapters[0].Number
	}
	s.progress = state.Progress{
		Chapter:  first,
		Calendar: state.NewCalendar(),
		Occurred: make(map[string]bool),
	}
}

// Config returns the progression content.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Progress returns a copy of the scheduler state for a snapshot.
func (s *Scheduler) Progress() state.Progress {
	p := s.progress
	p.Occurred = make(map[string]bool, len(s.progress.Occurred))
	for id, v := range s.progress.Occurred {
		p.Occurred[id] = v
	}
	p.Completed = slices.Clone(s.progress.Completed)
	p.Pending = slices.Clone(s.progress.Pending)
	return p
}

// Restore replaces the scheduler state after validating it.
func (s *Scheduler) Restore(p state.Progress) error {
	if len(s.cfg.Chapters) > 0 && s.chapterIndex(p.Chapter) < 0 {
		return fmt.Errorf("restore progress: unknown chapter %d", p.Chapter)
	}
	if p.ChapterProgress < 0 || p.TotalPlaytime < 0 {
		return fmt.Errorf("restore progress: negative playtime")
	}
	if p.Calendar.Day <= 0 || !p.Calendar.Phase.Valid() {
		return fmt.Errorf("restore progress: invalid calendar %s", p.Calendar)
	}

	restored := p
	restored.Occurred = make(map[string]bool, len(p.Occurred))
	for id, v := range p.Occurred {
		if v {
			restored.Occurred[id] = true
		}
	}
	restored.Completed = slices.Clone(p.Completed)
	restored.Pending = slices.Clone(p.Pending)
	s.progress = restored
	return nil
}

// Chapter returns the current chapter. ok is false when no chapters are defined.
func (s *Scheduler) Chapter() (Chapter, bool) {
	i := s.chapterIndex(s.progress.Chapter)
	if i < 0 {
		return Chapter{}, false
	}
	return s.cfg.Chapters[i], true
}

// Calendar returns the current in-game day and phase.
func (s *Scheduler) Calendar() state.Calendar {
	return s.progress.Calendar
}

// Ending returns the recorded ending, or "" while the story continues.
func (s *Scheduler) Ending() string {
	return s.progress.Ending
}

// Occurred reports whether a story event has fired.
func (s *Scheduler) Occurred(eventID string) bool {
	return s.progress.Occurred[eventID]
}

// Pending returns the queued scenario IDs.
func (s *Scheduler) Pending() []string {
	return slices.Clone(s.progress.Pending)
}

func (s *Scheduler) chapterIndex(number int) int {
	for i, ch := range s.cfg.Chapters {
		if ch.Number == number {
			return i
		}
	}
	return -1
}

// Tick advances playtime by delta hours. Story events whose trigger time is
// reached and whose gate holds fire once. Completing the last chapter
// records the ending; after that Tick has no effect.
func (s *Scheduler) Tick(delta float64) (TickResult, error) {
	var result TickResult
	if delta < 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return result, fmt.Errorf("%w: %v hours", ErrInvalidTick, delta)
	}
	if s.progress.Ending != "" {
		return result, nil
	}

	s.progress.TotalPlaytime += delta
	remaining := delta

	for {
		i := s.chapterIndex(s.progress.Chapter)
		if i < 0 {
			return result, nil
		}
		ch := s.cfg.Chapters[i]

		room := max(ch.Duration-s.progress.ChapterProgress, 0)
		if remaining >= room {
			remaining -= room
			s.progress.ChapterProgress = max(ch.Duration, s.progress.ChapterProgress)
		} else {
			s.progress.ChapterProgress += remaining
			remaining = 0
		}

		result.Fired = append(result.Fired, s.fireDue(ch)...)

		if s.progress.ChapterProgress < ch.Duration {
			return result, nil
		}

		s.progress.Completed = append(s.progress.Completed, ch.Number)
		result.ChapterCompleted = append(result.ChapterCompleted, ch.Number)
		s.logger.Info("Chapter completed", "chapter", ch.Number, "title", ch.Title)

		if i+1 >= len(s.cfg.Chapters) {
			s.progress.Ending = s.EvaluateEndings()
			result.Ending = s.progress.Ending
			s.logger.Info("Ending reached", "ending", s.progress.Ending)
			return result, nil
		}

		s.progress.Chapter = s.cfg.Chapters[i+1].Number
		s.progress.ChapterProgress = 0
		if remaining <= 0 {
			// Events due at the very start of the next chapter
			next := s.cfg.Chapters[i+1]
			result.Fired = append(result.Fired, s.fireDue(next)...)
			return result, nil
		}
	}
}

func (s *Scheduler) fireDue(ch Chapter) []EventFired {
	fraction := 1.0
	if ch.Duration > 0 {
		fraction = s.progress.ChapterProgress / ch.Duration
	}

	var fired []EventFired
	for _, ev := range ch.Events {
		if s.progress.Occurred[ev.ID] || ev.TriggerTime > fraction {
			continue
		}
		if !s.gateMet(ev) {
			continue
		}
		s.progress.Occurred[ev.ID] = true

		record := EventFired{
			EventID:   ev.ID,
			Name:      ev.Name,
			Type:      ev.Type,
			Chapter:   ch.Number,
			Character: ev.Character,
			Playtime:  s.progress.TotalPlaytime,
		}
		if ev.Scenario != "" {
			record.Scenario = s.resolveScenario(ev.Scenario, ev.Character)
			record.Started = s.startOrQueue(record.Scenario)
		}

		s.logger.Info("Story event fired",
			"event", ev.ID,
			"chapter", ch.Number,
			"scenario", record.Scenario,
			"started", record.Started)
		fired = append(fired, record)
	}
	return fired
}

// gateMet checks an event's relationship gate. Unknown characters never meet it.
func (s *Scheduler) gateMet(ev StoryEvent) bool {
	if ev.Character != "" {
		score, err := s.ledger.Score(ev.Character)
		if err != nil {
			s.logger.Debug("Story event gated on unknown character", "event", ev.ID, "character", ev.Character)
			return false
		}
		return score >= ev.MinScore
	}
	if ev.MinScore > 0 {
		_, score, ok := s.ledger.Top()
		return ok && score >= ev.MinScore
	}
	return true
}

func (s *Scheduler) resolveScenario(scenario, characterID string) string {
	if characterID == "" {
		characterID, _, _ = s.ledger.Top()
	}
	return expandCharacter(scenario, characterID)
}

func (s *Scheduler) startOrQueue(scenarioID string) bool {
	if s.starter != nil && !s.starter.Busy() {
		if err := s.starter.Start(scenarioID); err != nil {
			s.logger.Warn("Failed to start event scenario", "scenario", scenarioID, "error", err)
			return false
		}
		return true
	}
	s.enqueue(scenarioID)
	return false
}

func (s *Scheduler) enqueue(scenarioID string) {
	if slices.Contains(s.progress.Pending, scenarioID) {
		return
	}
	s.progress.Pending = append(s.progress.Pending, scenarioID)
}

// NotifyCrossed queues the scenarios unlocked by threshold crossings.
func (s *Scheduler) NotifyCrossed(crossed []relationship.ThresholdCrossed) {
	for _, c := range crossed {
		if c.Threshold.Scenario == "" {
			continue
		}
		scenarioID := expandCharacter(c.Threshold.Scenario, c.Character)
		s.logger.Info("Threshold unlocked scenario",
			"character", c.Character,
			"threshold", c.Threshold.ID,
			"scenario", scenarioID)
		s.enqueue(scenarioID)
	}
}

// EvaluateEndings returns the first ending in priority order whose conditions
// hold, or the default ending. It does not change any state.
func (s *Scheduler) EvaluateEndings() string {
	for _, e := range s.cfg.Endings {
		if s.endingMet(e) {
			return e.ID
		}
	}
	return s.cfg.DefaultEnding
}

func (s *Scheduler) endingMet(e EndingCondition) bool {
	for _, id := range e.RequiredEvents {
		if !s.progress.Occurred[id] {
			return false
		}
	}

	if e.Character != "" {
		// Unknown characters read as 0
		return s.ledger.ScoreOrZero(e.Character) >= e.MinScore
	}
	if e.MinScore <= 0 {
		return true
	}

	characters := s.ledger.Characters()
	if len(characters) == 0 {
		return false
	}
	for _, id := range characters {
		if s.ledger.ScoreOrZero(id) < e.MinScore {
			return false
		}
	}
	return true
}

// NextScenario picks the scenario to start after a graph is exhausted.
// Queued event scenarios come first and do not advance time. Otherwise the
// calendar moves to the next phase and the scenario rules are evaluated in
// order. "" means nothing is left to play.
func (s *Scheduler) NextScenario() string {
	if len(s.progress.Pending) > 0 {
		next := s.progress.Pending[0]
		s.progress.Pending = s.progress.Pending[1:]
		return next
	}
	if s.progress.Ending != "" {
		return ""
	}

	if s.progress.Calendar.Advance() {
		s.ledger.ResetDaily()
		s.logger.Info("New day", "day", s.progress.Calendar.Day)
	}

	for _, rule := range s.cfg.Rules {
		if rule.When != nil && !rule.When.IsEmpty() && !conditionals.EvaluateWhen(*rule.When, s) {
			continue
		}
		scenario := rule.Scenario
		if scenario == "" {
			continue
		}
		if hasCharacterTemplate(scenario) {
			top, _, ok := s.ledger.Top()
			if !ok {
				continue
			}
			scenario = expandCharacter(scenario, top)
		}
		return scenario
	}
	return s.cfg.DefaultScenario
}

// GetDay implements conditionals.GameStateView.
func (s *Scheduler) GetDay() int { return s.progress.Calendar.Day }

// GetPhase implements conditionals.GameStateView.
func (s *Scheduler) GetPhase() string { return string(s.progress.Calendar.Phase) }

// GetChapter implements conditionals.GameStateView.
func (s *Scheduler) GetChapter() int { return s.progress.Chapter }

// HasFlag implements conditionals.GameStateView.
func (s *Scheduler) HasFlag(name string) bool { return s.flags.Has(name) }

// HasOccurred implements conditionals.GameStateView.
func (s *Scheduler) HasOccurred(eventID string) bool { return s.progress.Occurred[eventID] }

// GetScore implements conditionals.GameStateView.
func (s *Scheduler) GetScore(characterID string) (int, bool) {
	score, err := s.ledger.Score(characterID)
	return score, err == nil
}

// GetTopScore implements conditionals.GameStateView.
func (s *Scheduler) GetTopScore() (string, int, bool) {
	return s.ledger.Top()
}
