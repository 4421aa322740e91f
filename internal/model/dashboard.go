package model

// DashboardStats aggregates counts across every managed resource.
type DashboardStats struct {
	Stories      StatusCounts `json:"stories"`
	Waitlist     StatusCounts `json:"waitlist"`
	Contacts     StatusCounts `json:"contacts"`
	ActiveAdmins int64        `json:"active_admins"`
}

// StatusCounts holds a total plus a per-status breakdown.
type StatusCounts struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// DailyCount is the number of records created on a single UTC day.
type DailyCount struct {
	Day   string `json:"day" db:"day"` // YYYY-MM-DD
	Count int64  `json:"count" db:"count"`
}

// Analytics is the time-series view of the dashboard.
type Analytics struct {
	Days            int                 `json:"days"`
	WaitlistSignups []DailyCount        `json:"waitlist_signups"`
	ContactMessages []DailyCount        `json:"contact_messages"`
	RecentWaitlist  []WaitlistEntry     `json:"recent_waitlist"`
	RecentContacts  []ContactSubmission `json:"recent_contacts"`
}
