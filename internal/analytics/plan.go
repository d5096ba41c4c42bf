package analytics

import "freelance/internal/core"

// FreeClientLimit is the single authoritative client cap for the Free plan.
const FreeClientLimit = 3

const unlimited = -1

var clientLimits = map[core.PlanType]int{
	core.PlanFree: FreeClientLimit,
	core.PlanPro:  unlimited,
}

// ClientLimit is the client cap for plan: -1 for unlimited plans and 0 for
// plans outside the known tiers.
func ClientLimit(plan core.PlanType) int {
	return clientLimits[plan]
}

// PlanLimits answers whether another client may be created.
type PlanLimits struct {
	Plan           core.PlanType `json:"plan"`
	CanAddClient   bool          `json:"can_add_client"`
	Unlimited      bool          `json:"unlimited"`
	ClientLimit    int           `json:"client_limit,omitempty"`
	CurrentClients int           `json:"current_clients"`
	Remaining      int           `json:"remaining,omitempty"`
}

// CheckPlanLimits never fails. Plans outside the known tiers may not add
// clients.
func CheckPlanLimits(plan core.PlanType, currentClients int) PlanLimits {
	res := PlanLimits{Plan: plan, CurrentClients: currentClients}
	limit, ok := clientLimits[plan]
	if !ok {
		return res
	}
	if limit == unlimited {
		res.Unlimited = true
		res.CanAddClient = true
		return res
	}
	res.ClientLimit = limit
	res.CanAddClient = currentClients < limit
	if currentClients < limit {
		res.Remaining = limit - currentClients
	}
	return res
}
