package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/belay/internal/adapters/export"
	"github.com/okian/belay/internal/adapters/mq/queue"
	"github.com/okian/belay/internal/domain/clock"
	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/internal/domain/ranking"
	"github.com/okian/belay/internal/domain/types"
	"github.com/okian/belay/pkg/logger"
	"github.com/okian/belay/pkg/metrics"
)

// callZonePreview is how many waiting competitors a group view lists.
const callZonePreview = 3

// Snapshot returns the latest published view. The caller must not modify it.
func (s *Service) Snapshot() *types.View {
	return s.view.Load()
}

// Ranking returns at most limit ranking entries; limit <= 0 returns all.
func (s *Service) Ranking(limit int) []types.Entry {
	return ranking.Top(s.view.Load().Ranking, limit)
}

// ExportCSV writes the ranking with per-route scores.
func (s *Service) ExportCSV(w io.Writer) error {
	v := s.view.Load()
	if !v.Configured {
		return fmt.Errorf("%w: contest not set up", model.ErrConfiguration)
	}
	scores := make(map[string]map[string]float64, len(v.Competitors))
	for _, c := range v.Competitors {
		scores[c.Name] = c.Scores
	}
	return export.WriteCSV(w, v.Ranking, scores, v.Routes)
}

// OnTick implements contest.Observer.
func (s *Service) OnTick(context.Context, clock.State) {
	s.dirty = true
}

// OnAlert implements contest.Observer. The alert is published off the loop.
func (s *Service) OnAlert(ctx context.Context, d time.Duration, st clock.State) {
	msg := types.Message{Type: types.MessageAlert, Data: types.Alert{
		DurationMS: d.Milliseconds(),
		Remaining:  st.Remaining,
		Phase:      st.Phase.String(),
		At:         s.clk.Now(),
	}}
	ctx = context.WithoutCancel(ctx)
	s.alerts.Add(1)
	go func() {
		defer s.alerts.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.RecordErrorByComponent("service", "alert_panic")
				s.logger.Error(ctx, "alert panicked", logger.Any("panic", r))
			}
		}()
		s.publish(ctx, msg)
	}()
}

// afterCommand publishes a fresh snapshot. Ticks that changed nothing, such
// as stale tokens, publish nothing.
func (s *Service) afterCommand(ctx context.Context, c queue.Command) {
	if c.Kind == queue.KindTick && !s.dirty {
		return
	}
	s.dirty = false
	v := s.buildView(ctx)
	s.view.Store(v)
	s.publish(ctx, types.Message{Type: types.MessageState, Data: v})
}

func (s *Service) publish(ctx context.Context, msg types.Message) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Debug(ctx, "feed publish failed", logger.String("type", msg.Type), logger.Error(err))
	}
}

func (s *Service) buildView(ctx context.Context) *types.View {
	s.version++
	v := &types.View{
		Version:   s.version,
		UpdatedAt: s.clk.Now(),
		Clock:     clockView(s.orch.ClockState()),
	}
	sess := s.orch.Session()
	if sess == nil {
		return v
	}

	v.Configured = true
	v.Session = sess.ID
	v.Type = string(sess.Type)
	v.Round = sess.Round
	v.Rotation = sess.Rotation
	v.Finished = sess.Finished
	v.Routes = append([]string(nil), sess.Routes...)

	entries, sheet, err := s.orch.Standings(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("service", "standings")
		s.logger.Warn(ctx, "standings unavailable", logger.Error(err))
		if prev := s.view.Load(); prev.Session == sess.ID {
			entries = prev.Ranking
		}
	}
	v.Ranking = entries

	totals := make(map[string]float64, len(entries))
	for _, e := range entries {
		totals[e.Competitor] = e.Total
	}
	v.Competitors = make([]types.CompetitorView, 0, len(sess.Competitors))
	for _, c := range sess.Competitors {
		scores := make(map[string]float64, len(sheet[c.Name]))
		for route, score := range sheet[c.Name] {
			scores[route] = score
		}
		v.Competitors = append(v.Competitors, types.CompetitorView{
			Name:    c.Name,
			Club:    c.Club,
			Group:   c.Group,
			State:   c.State.String(),
			Transit: c.Transit,
			Scores:  scores,
			Total:   totals[c.Name],
		})
	}

	v.Groups = make([]types.GroupView, 0, len(sess.Groups))
	for _, g := range sess.Groups {
		gv := types.GroupView{
			Name:        g.Name,
			Routes:      append([]string(nil), g.Routes...),
			Competitors: make([]string, 0, len(g.Competitors)),
			Next:        []string{},
		}
		for _, c := range g.Competitors {
			gv.Competitors = append(gv.Competitors, c.Name)
			if c.State.Kind == model.CallZone && len(gv.Next) < callZonePreview {
				gv.Next = append(gv.Next, c.Name)
			}
		}
		v.Groups = append(v.Groups, gv)
	}

	metrics.UpdateCompetitorsByState(sess.CountByState())
	return v
}

func clockView(st clock.State) types.ClockView {
	return types.ClockView{
		Remaining:        st.Remaining,
		Display:          st.Display(),
		Phase:            st.Phase.String(),
		Running:          st.Running,
		ManuallyAdjusted: st.ManuallyAdjusted,
	}
}
