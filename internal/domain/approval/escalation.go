package approval

// escalationChain maps each approver role to the next higher authority.
var escalationChain = map[ApproverType]ApproverType{
	ApproverHumanReviewer:   ApproverTechLead,
	ApproverTechLead:        ApproverEngineeringManager,
	ApproverBusinessAnalyst: ApproverProjectManager,
	ApproverProjectManager:  ApproverSeniorStakeholder,
}

// tier ranks roles within their escalation chain; higher is more senior.
var tier = map[ApproverType]int{
	ApproverHumanReviewer:      0,
	ApproverTechLead:           1,
	ApproverEngineeringManager: 2,
	ApproverBusinessAnalyst:    0,
	ApproverProjectManager:     1,
	ApproverSeniorStakeholder:  2,
}

// NextTier returns the role a request escalates to from t.
func NextTier(t ApproverType) (ApproverType, bool) {
	next, ok := escalationChain[t]
	return next, ok
}

// Tier returns the seniority rank of t, or -1 for roles outside the hierarchy.
func Tier(t ApproverType) int {
	if r, ok := tier[t]; ok {
		return r
	}
	return -1
}
