package tables

import "github.com/JonMunkholm/gridconsole/internal/grid"

func init() {
	register(grid.TableSecuritySchema{
		Name:     "users",
		Display:  []string{"user_id", "name", "email", "role", "is_online", "is_tracking_active"},
		Writable: []string{"name", "email", "role", "photo_url", "is_online", "is_tracking_active"},
		Protected: []string{
			"user_id", "tenant_id", "password", "last_sync", "created_at", "updated_at",
		},
	})
}
