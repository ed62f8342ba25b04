package roster

import (
	"errors"
	"fmt"
	"strings"
	"time"

	appLog "rostercal/internal/log"
	"rostercal/internal/model"
)

// rawDuty is one roster row as extracted from the portal DOM. Times are
// timezone-less civil strings exactly as the portal displays them.
type rawDuty struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// dutyTimeLayout matches the portal's "YYYY-MM-DD HH:MM" cell format.
const dutyTimeLayout = "2006-01-02 15:04"

// parseDuties converts raw rows into duty records, interpreting the
// portal's naive timestamps as civil time in loc. Rows that fail to
// parse are logged and dropped; an overnight duty whose end sorts before
// its start (portal omits the date rollover on some layouts) is bumped
// by one day.
func parseDuties(rows []rawDuty, loc *time.Location) []model.DutyRecord {
	if loc == nil {
		loc = time.Local
	}

	duties := make([]model.DutyRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := parseDuty(row, loc)
		if err != nil {
			appLog.Warn("dropping unparsable roster row",
				"name", row.Name, "start", row.Start, "end", row.End, "reason", err)
			continue
		}
		duties = append(duties, rec)
	}
	return duties
}

func parseDuty(row rawDuty, loc *time.Location) (model.DutyRecord, error) {
	name := strings.TrimSpace(row.Name)
	if name == "" {
		return model.DutyRecord{}, errors.New("empty duty name")
	}

	start, err := time.ParseInLocation(dutyTimeLayout, strings.TrimSpace(row.Start), loc)
	if err != nil {
		return model.DutyRecord{}, fmt.Errorf("start: %w", err)
	}
	end, err := time.ParseInLocation(dutyTimeLayout, strings.TrimSpace(row.End), loc)
	if err != nil {
		return model.DutyRecord{}, fmt.Errorf("end: %w", err)
	}

	// Overnight duty with the end date left off by the portal.
	if !start.Before(end) && end.Sub(start) > -24*time.Hour {
		end = end.AddDate(0, 0, 1)
	}

	return model.DutyRecord{Name: name, Start: start, End: end}, nil
}
