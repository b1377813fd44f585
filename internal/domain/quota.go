package domain

// QuotaCheck is the quota gate's answer to "may this tenant send N more
// emails this month". Consulted synchronously at campaign creation;
// advisory only once a campaign has been accepted.
type QuotaCheck struct {
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Reason    string `json:"reason,omitempty"`
}
