package application

import (
	"github.com/JonMunkholm/gridconsole/internal/store"
	"github.com/JonMunkholm/gridconsole/internal/store/memory"
)

// SeedDemo fills m with a few rows per built-in table.
func SeedDemo(m *memory.Store) {
	m.Seed("users", "user_id",
		store.Row{"user_id": "u-1001", "tenant_id": "t-1", "name": "Ana Souza", "email": "ana@example.com", "role": "admin", "is_online": true, "is_tracking_active": true},
		store.Row{"user_id": "u-1002", "tenant_id": "t-1", "name": "Ben Carter", "email": "ben@example.com", "role": "field", "is_online": false, "is_tracking_active": true},
		store.Row{"user_id": "u-1003", "tenant_id": "t-1", "name": "Chen Li", "email": "chen@example.com", "role": "field", "is_online": false, "is_tracking_active": false},
	)
	m.Seed("followups", "id",
		store.Row{"id": 1, "user_id": "u-1002", "tenant_id": "t-1", "client_id": 42, "subject": "Quote follow-up", "status": "open", "followup_date": "2026-11-02"},
		store.Row{"id": 2, "user_id": "u-1003", "tenant_id": "t-1", "client_id": 17, "subject": "Contract renewal", "status": "done", "followup_date": "2026-10-12", "notes": nil},
	)
	m.Seed("daily_activity", "id",
		store.Row{"id": 1, "user_id": "u-1002", "tenant_id": "t-1", "name": "Site visit", "type": "visit", "activity_date": "2026-10-18", "location": "Porto", "latitude": 41.1579, "longitude": -8.6291},
		store.Row{"id": 2, "user_id": "u-1003", "tenant_id": "t-1", "name": "Call", "type": "call", "activity_date": "2026-10-19", "location": "Remote"},
	)
}
