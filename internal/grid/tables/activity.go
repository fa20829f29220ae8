package tables

import "github.com/JonMunkholm/gridconsole/internal/grid"

// Field activity tables share the tenant-scoped protected set.
var tenantScoped = []string{"id", "user_id", "tenant_id", "created_at", "updated_at"}

func init() {
	register(grid.TableSecuritySchema{
		Name:      "followups",
		Display:   []string{"id", "subject", "status", "followup_date"},
		Writable:  []string{"client_id", "subject", "notes", "followup_date", "status"},
		Protected: tenantScoped,
	})

	register(grid.TableSecuritySchema{
		Name:    "daily_activity",
		Display: []string{"id", "name", "type", "activity_date", "location"},
		Writable: []string{
			"activity_date", "type", "location", "latitude", "longitude",
			"description", "details", "name",
		},
		Protected: tenantScoped,
	})
}
