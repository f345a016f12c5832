package domain

import "time"

// HomeFeed is the assembled landing page payload.
type HomeFeed struct {
	Contracts       []Contract `json:"contracts"`
	HotContracts    []Contract `json:"hotContracts"`
	RecentComments  []Comment  `json:"recentComments"`
	GeneratedAt     time.Time  `json:"generatedAt"`
	RevalidateAfter int        `json:"revalidate"`
}

// ServiceStatus is a summary of the running service.
type ServiceStatus struct {
	Mode           string `json:"mode"`
	Environment    string `json:"environment"`
	UptimeSeconds  int64  `json:"uptimeSeconds"`
	OpenSessions   int    `json:"openSessions"`
	WSClients      int    `json:"wsClients"`
	ArchiveEnabled bool   `json:"archiveEnabled"`
}
