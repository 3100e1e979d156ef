package runner

import (
	"math"
	"time"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/config"
)

// patternPlan is a compiled rate schedule: piecewise-linear segments laid
// end to end. The pattern controller samples it every 100ms.
type patternPlan struct {
	segments []patternSegment
	duration time.Duration
	maxRate  float64
}

type patternSegment struct {
	start    time.Duration
	duration time.Duration
	fromRate float64
	toRate   float64
}

func compilePatternPlan(patterns []config.LoadPattern) *patternPlan {
	if len(patterns) == 0 {
		return nil
	}

	plan := &patternPlan{}
	var offset time.Duration
	for _, pattern := range patterns {
		if pattern.Duration <= 0 {
			continue
		}
		switch pattern.Type {
		case config.LoadPatternTypeContinuous:
			plan.appendFlat(offset, pattern.Duration, float64(pattern.RPS))
			offset += pattern.Duration
		case config.LoadPatternTypeRamp:
			plan.appendSegment(patternSegment{
				start:    offset,
				duration: pattern.Duration,
				fromRate: float64(pattern.FromRPS),
				toRate:   float64(pattern.ToRPS),
			})
			offset += pattern.Duration
		case config.LoadPatternTypeBurst:
			offset = plan.appendBurst(offset, pattern)
		case config.LoadPatternTypeSpike:
			offset = plan.appendSpike(offset, pattern)
		}
	}

	if len(plan.segments) == 0 {
		return nil
	}
	plan.duration = offset
	return plan
}

// appendBurst alternates high and low plateaus: RPS for duty×period, then
// LowRPS for the remainder of each period, repeated across the pattern's
// duration. The final plateau is truncated at the pattern boundary.
func (p *patternPlan) appendBurst(offset time.Duration, pattern config.LoadPattern) time.Duration {
	end := offset + pattern.Duration
	high := time.Duration(float64(pattern.Period) * pattern.Duty)
	low := pattern.Period - high

	at := offset
	for at < end {
		p.appendFlat(at, minDuration(high, end-at), float64(pattern.RPS))
		at += high
		if at >= end {
			break
		}
		p.appendFlat(at, minDuration(low, end-at), float64(pattern.LowRPS))
		at += low
	}
	return end
}

// appendSpike holds a baseline rate and overlays surges of
// RPS×multiplier lasting width, one per interval.
func (p *patternPlan) appendSpike(offset time.Duration, pattern config.LoadPattern) time.Duration {
	end := offset + pattern.Duration
	baseline := float64(pattern.RPS)
	surge := baseline * pattern.Multiplier

	at := offset
	next := offset + pattern.Interval
	for at < end {
		if next >= end || next < at {
			p.appendFlat(at, end-at, baseline)
			break
		}
		if next > at {
			p.appendFlat(at, next-at, baseline)
		}
		width := minDuration(pattern.Width, end-next)
		p.appendFlat(next, width, surge)
		at = next + width
		next += pattern.Interval
	}
	return end
}

func (p *patternPlan) appendFlat(start, duration time.Duration, rate float64) {
	if duration <= 0 {
		return
	}
	p.appendSegment(patternSegment{
		start:    start,
		duration: duration,
		fromRate: rate,
		toRate:   rate,
	})
}

func (p *patternPlan) appendSegment(seg patternSegment) {
	p.segments = append(p.segments, seg)
	p.maxRate = math.Max(p.maxRate, math.Max(seg.fromRate, seg.toRate))
}

// rateAt returns the scheduled rate at elapsed, interpolating linearly
// within a segment. ok is false once the plan is exhausted.
func (p *patternPlan) rateAt(elapsed time.Duration) (float64, bool) {
	if p == nil || len(p.segments) == 0 {
		return 0, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	for _, seg := range p.segments {
		if elapsed < seg.start {
			continue
		}
		end := seg.start + seg.duration
		if elapsed >= end {
			continue
		}
		if seg.fromRate == seg.toRate {
			return seg.fromRate, true
		}
		progress := float64(elapsed-seg.start) / float64(seg.duration)
		if progress < 0 {
			progress = 0
		} else if progress > 1 {
			progress = 1
		}
		return seg.fromRate + (seg.toRate-seg.fromRate)*progress, true
	}
	return 0, false
}

func (p *patternPlan) totalDuration() time.Duration {
	if p == nil {
		return 0
	}
	return p.duration
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
