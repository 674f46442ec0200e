package config

import (
	"context"
	"errors"
	"strings"

	"github.com/montron/pm_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTenantScopeMissing is raised when a model-bound statement on a tenant-owned
// table carries no company_id condition.
var ErrTenantScopeMissing = errors.New("tenant guard: query on tenant table without company_id condition")

// TenantGuardPlugin enforces multi-tenant isolation. Tenancy is explicit: every
// query/update/delete against a table with a company_id column must filter on it.
// The plugin never injects a tenant; it rejects the statement instead.
//
// NOTE:
// - Raw SQL is not inspected. It must include company_id manually.
// - Cross-tenant internal loops opt out via appctx.ContextKeySkipTenantScope.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

// SkipTenantScope marks ctx for cross-tenant maintenance work.
func SkipTenantScope(ctx context.Context) context.Context {
	return appctx.Set(ctx, appctx.ContextKeySkipTenantScope, true)
}

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Error != nil {
		return
	}
	if db.Statement.SQL.Len() > 0 {
		return
	}
	if ctx := db.Statement.Context; ctx != nil && shouldBypassTenantScope(ctx) {
		return
	}
	if db.Statement.Schema == nil {
		return
	}
	if db.Statement.Schema.LookUpField("company_id") == nil {
		return
	}
	if whereHasCompanyID(db.Statement.Clauses["WHERE"]) {
		return
	}
	_ = db.AddError(ErrTenantScopeMissing)
}

func shouldBypassTenantScope(ctx context.Context) bool {
	v, ok := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope)
	return ok && v
}

func whereHasCompanyID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasCompanyID(e) {
			return true
		}
	}
	return false
}

func exprHasCompanyID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsCompanyID(v.Column)
	case clause.IN:
		return colIsCompanyID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasCompanyID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		return strings.Contains(strings.ToLower(v.SQL), "company_id")
	case clause.NamedExpr:
		return strings.Contains(strings.ToLower(v.SQL), "company_id")
	default:
		return false
	}
}

func colIsCompanyID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "company_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "company_id")
	default:
		return false
	}
}
