package database

import (
	"fmt"

	"gorm.io/gorm"
)

// tenantGuardExpr is the policy expression read by every RLS policy. The
// second argument to current_setting makes an unset GUC return NULL instead
// of erroring; COALESCE then pins it to -1, a value no real tenant has, so
// an unbound session matches zero rows.
const tenantGuardExpr = "COALESCE(current_setting('" + ScopeSetting + "', true), '-1')::int"

// EnableRowLevelSecurity enables row-level security on a table and installs
// the tenant isolation policy keyed on the given column. This is the
// database-side half of the dual enforcement: it holds even when an
// application route forgets the tenant guard.
//
// The table owner stays exempt unless ForceRowLevelSecurity is also applied.
// The users service relies on that for identity bootstrap: login has to find
// a user by email, and registration has to insert a tenant, before any
// tenant scope can exist. Business services connect as a non-owner role and
// are fully subject to the policy.
func EnableRowLevelSecurity(db *gorm.DB, table, tenantColumn string) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	statements := []string{
		fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", table),
		fmt.Sprintf("DROP POLICY IF EXISTS %s_isolation ON %s", table, table),
		fmt.Sprintf(
			"CREATE POLICY %s_isolation ON %s USING (%s = %s) WITH CHECK (%s = %s)",
			table, table, tenantColumn, tenantGuardExpr, tenantColumn, tenantGuardExpr,
		),
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("rls setup for %s: %w", table, err)
		}
	}
	return nil
}

// ForceRowLevelSecurity makes the policy apply to the table owner as well.
// Intended for tenant-scoped business tables, where no code path ever needs
// to see rows outside the bound tenant.
func ForceRowLevelSecurity(db *gorm.DB, table string) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec(fmt.Sprintf("ALTER TABLE %s FORCE ROW LEVEL SECURITY", table)).Error; err != nil {
		return fmt.Errorf("rls force for %s: %w", table, err)
	}
	return nil
}

// TenantGuardExpr exposes the policy expression for migrations maintained
// outside this package.
func TenantGuardExpr() string {
	return tenantGuardExpr
}
