package approval

import "time"

// Dashboard aggregates approval counters for the overview screen.
type Dashboard struct {
	PendingCount             int                  `json:"pending_count"`
	ApprovedToday            int                  `json:"approved_today"`
	RejectedToday            int                  `json:"rejected_today"`
	AverageResolutionMinutes float64              `json:"average_resolution_minutes"`
	PendingByApproverType    map[ApproverType]int `json:"pending_by_approver_type"`
}

// BuildDashboard computes counters over requests. "Today" is the calendar day of now
// in now's location and is judged by resolution instant, not creation instant.
func BuildDashboard(requests []Request, now time.Time) Dashboard {
	d := Dashboard{PendingByApproverType: make(map[ApproverType]int)}

	y, m, day := now.Date()
	startOfDay := time.Date(y, m, day, 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	var totalMinutes float64
	var resolved int

	for i := range requests {
		r := &requests[i]
		switch r.Status {
		case StatusPending:
			d.PendingCount++
			d.PendingByApproverType[r.ApproverType]++
			continue
		case StatusApproved, StatusRejected:
		default:
			continue
		}
		if r.Response == nil {
			continue
		}

		at := r.Response.ResolvedAt
		if !at.Before(startOfDay) && at.Before(endOfDay) {
			if r.Status == StatusApproved {
				d.ApprovedToday++
			} else {
				d.RejectedToday++
			}
		}
		totalMinutes += at.Sub(r.CreatedAt).Minutes()
		resolved++
	}

	if resolved > 0 {
		d.AverageResolutionMinutes = totalMinutes / float64(resolved)
	}
	return d
}
