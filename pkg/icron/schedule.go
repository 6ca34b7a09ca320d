package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts standard five-field expressions and descriptors such as
// "@hourly" or "@every 15m".
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type TriggerInfo struct {
	Next       time.Time
	Last       time.Time
	Expression string

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	nextTime := schedule.Next(refTime)

	// step back an hour at a time until a trigger falls before refTime, then
	// walk forward to the latest one
	var prevTime time.Time
	for i := 1; i <= 366*24; i++ {
		candidate := schedule.Next(refTime.Add(-time.Duration(i) * time.Hour))
		if candidate.IsZero() || candidate.After(refTime) {
			continue
		}
		for {
			n := schedule.Next(candidate)
			if n.IsZero() || n.After(refTime) {
				break
			}
			candidate = n
		}
		prevTime = candidate
		break
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       nextTime,
		Last:       prevTime,
	}

	if !prevTime.IsZero() {
		info.TimeSinceLast = refTime.Sub(prevTime)
	}

	info.TimeUntilNext = nextTime.Sub(refTime)

	return info, nil
}
