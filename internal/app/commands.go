package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/belay/internal/adapters/mq/queue"
	"github.com/okian/belay/internal/adapters/roster"
	"github.com/okian/belay/internal/domain/clock"
	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/internal/domain/scoring"
	"github.com/okian/belay/pkg/logger"
	"github.com/okian/belay/pkg/metrics"
)

// SetupRequest describes a contest to set up. Zero Routes and PauseMinutes
// take the service defaults. Without Competitors the roster file is
// reloaded and merged into the current list.
type SetupRequest struct {
	Type         string          `json:"type"`
	Routes       int             `json:"routes"`
	PauseMinutes int             `json:"pause_minutes"`
	Competitors  []model.Entrant `json:"competitors"`
}

// ScoreRequest is a judge entry. SubmissionID, when set, makes retries of
// the same entry idempotent.
type ScoreRequest struct {
	SubmissionID string `json:"submission_id"`
	Competitor   string `json:"competitor"`
	Route        string `json:"route"`
	Top          string `json:"top"`
	Zone         string `json:"zone"`
}

// ScoreOutcome is the result of RecordScore. Duplicate submissions carry no
// result.
type ScoreOutcome struct {
	scoring.Result
	Duplicate bool
}

type startAt struct{ at time.Time }

func (s *Service) handlers() map[queue.Kind]handlerFunc {
	return map[queue.Kind]handlerFunc{
		queue.KindTick:        s.handleTick,
		queue.KindSetup:       s.handleSetup,
		queue.KindStart:       s.handleStart,
		queue.KindStartAt:     s.handleStartAt,
		queue.KindPause:       s.handlePause,
		queue.KindResume:      s.handleResume,
		queue.KindAdjust:      s.handleAdjust,
		queue.KindManualTime:  s.handleManualTime,
		queue.KindReset:       s.handleReset,
		queue.KindRecordScore: s.handleRecordScore,
	}
}

func payload[T any](c queue.Command) (T, error) {
	v, ok := c.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s payload is %T", model.ErrInvalidInput, c.Kind, c.Payload)
	}
	return v, nil
}

// Setup replaces the current contest.
func (s *Service) Setup(ctx context.Context, req SetupRequest) (string, error) {
	if _, err := model.ParseContestType(req.Type); err != nil {
		return "", err
	}
	v, err := s.submit(ctx, queue.KindSetup, req)
	if err != nil {
		return "", err
	}
	id, _ := v.(string)
	return id, nil
}

// StartContest starts the configured contest now.
func (s *Service) StartContest(ctx context.Context) error {
	_, err := s.submit(ctx, queue.KindStart, nil)
	return err
}

// StartAt arms the contest start for hh:mm:ss today.
func (s *Service) StartAt(ctx context.Context, hhmmss string) error {
	at, err := clock.NextAt(s.clk.Now(), hhmmss)
	if err != nil {
		return err
	}
	_, err = s.submit(ctx, queue.KindStartAt, startAt{at: at})
	return err
}

// Pause freezes the clock.
func (s *Service) Pause(ctx context.Context) error {
	_, err := s.submit(ctx, queue.KindPause, nil)
	return err
}

// Resume continues a paused clock.
func (s *Service) Resume(ctx context.Context) error {
	_, err := s.submit(ctx, queue.KindResume, nil)
	return err
}

// Adjust sets the remaining seconds of the current phase.
func (s *Service) Adjust(ctx context.Context, seconds int) error {
	_, err := s.submit(ctx, queue.KindAdjust, seconds)
	return err
}

// SetManualTime sets the countdown of a CRB contest from MM:SS.
func (s *Service) SetManualTime(ctx context.Context, mmss string) error {
	seconds, err := clock.ParseDuration(mmss)
	if err != nil {
		return err
	}
	_, err = s.submit(ctx, queue.KindManualTime, seconds)
	return err
}

// Reset returns the contest to its set up state and drops its scores once
// password is accepted.
func (s *Service) Reset(ctx context.Context, password string) error {
	s.mu.RLock()
	gate := s.gate
	s.mu.RUnlock()
	if gate == nil {
		return ErrStopped
	}
	return gate.Authorize(ctx, password, func(ctx context.Context) error {
		_, err := s.submit(ctx, queue.KindReset, nil)
		return err
	})
}

// RecordScore scores a judge entry. A submission id seen before returns a
// duplicate outcome without touching the contest.
func (s *Service) RecordScore(ctx context.Context, req ScoreRequest) (ScoreOutcome, error) {
	id := strings.TrimSpace(req.SubmissionID)
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	if d == nil {
		return ScoreOutcome{}, ErrStopped
	}
	if id != "" && d.SeenAndRecord(ctx, id) {
		metrics.RecordDuplicateSubmission()
		s.logger.Debug(ctx, "duplicate score submission", logger.String("submission", id))
		return ScoreOutcome{Duplicate: true}, nil
	}

	v, err := s.submit(ctx, queue.KindRecordScore, scoring.Input{
		Competitor: req.Competitor,
		Route:      req.Route,
		Top:        req.Top,
		Zone:       req.Zone,
	})
	if err != nil {
		if id != "" {
			d.Unrecord(ctx, id)
		}
		reason := "failed"
		if isRejection(err) {
			reason = "rejected"
		}
		metrics.RecordScoreRejected(reason)
		return ScoreOutcome{}, err
	}
	res, _ := v.(scoring.Result)
	metrics.RecordScoreRecorded()
	return ScoreOutcome{Result: res}, nil
}

func (s *Service) handleTick(ctx context.Context, c queue.Command) (any, error) {
	s.orch.Fire(ctx, c.Token)
	return nil, nil
}

func (s *Service) handleSetup(ctx context.Context, c queue.Command) (any, error) {
	req, err := payload[SetupRequest](c)
	if err != nil {
		return nil, err
	}
	t, err := model.ParseContestType(req.Type)
	if err != nil {
		return nil, err
	}
	if req.Routes == 0 {
		req.Routes = s.defaultRoutes
	}
	if req.PauseMinutes == 0 {
		req.PauseMinutes = s.defaultPause
	}

	explicit := len(req.Competitors) > 0
	entrants := req.Competitors
	if !explicit {
		entrants, err = s.reloadRoster(ctx)
		if err != nil {
			return nil, err
		}
	}

	sess, err := s.orch.Setup(ctx, model.Settings{
		Type:         t,
		Routes:       req.Routes,
		PauseMinutes: req.PauseMinutes,
		Entrants:     entrants,
	})
	if err != nil {
		return nil, err
	}
	s.entrants = entrants
	s.deduper.Reset(ctx)
	if explicit && s.roster != nil {
		if err := s.roster.Save(ctx, entrants); err != nil {
			metrics.RecordErrorByComponent("roster", "save")
			s.logger.Warn(ctx, "saving roster failed", logger.Error(err))
		}
	}
	return sess.ID, nil
}

func (s *Service) reloadRoster(ctx context.Context) ([]model.Entrant, error) {
	if s.roster == nil {
		return s.entrants, nil
	}
	loaded, err := s.roster.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return roster.Merge(s.entrants, loaded), nil
}

func (s *Service) handleStart(ctx context.Context, _ queue.Command) (any, error) {
	return nil, s.orch.Start(ctx)
}

func (s *Service) handleStartAt(ctx context.Context, c queue.Command) (any, error) {
	p, err := payload[startAt](c)
	if err != nil {
		return nil, err
	}
	return nil, s.orch.StartAt(ctx, p.at)
}

func (s *Service) handlePause(ctx context.Context, _ queue.Command) (any, error) {
	return nil, s.orch.Pause(ctx)
}

func (s *Service) handleResume(ctx context.Context, _ queue.Command) (any, error) {
	return nil, s.orch.Resume(ctx)
}

func (s *Service) handleAdjust(ctx context.Context, c queue.Command) (any, error) {
	seconds, err := payload[int](c)
	if err != nil {
		return nil, err
	}
	return nil, s.orch.Adjust(ctx, seconds)
}

func (s *Service) handleManualTime(ctx context.Context, c queue.Command) (any, error) {
	seconds, err := payload[int](c)
	if err != nil {
		return nil, err
	}
	return nil, s.orch.SetManualTime(ctx, seconds)
}

func (s *Service) handleReset(ctx context.Context, _ queue.Command) (any, error) {
	if err := s.orch.Reset(ctx); err != nil {
		return nil, err
	}
	s.deduper.Reset(ctx)
	return nil, nil
}

func (s *Service) handleRecordScore(ctx context.Context, c queue.Command) (any, error) {
	in, err := payload[scoring.Input](c)
	if err != nil {
		return nil, err
	}
	res, err := s.orch.RecordScore(ctx, in)
	if err != nil {
		if !isRejection(err) && !errors.Is(err, context.Canceled) {
			metrics.RecordErrorByComponent("service", "record_score")
		}
		return nil, err
	}
	s.logger.Info(ctx, "score recorded",
		logger.String("competitor", res.Competitor),
		logger.String("route", res.Route),
		logger.Float64("score", res.Score),
	)
	return res, nil
}
