package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/bankstream/auth-core/internal/core/domain"
)

func runRBAC(t *testing.T, role any, allowed ...domain.Role) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != nil {
		c.Set("role", role)
	}

	reached := false
	err := RequireRoles(allowed...)(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})(c)
	if err != nil {
		t.Fatalf("middleware: %v", err)
	}
	return rec, reached
}

func TestRequireRoles_AllowsListedRole(t *testing.T) {
	rec, reached := runRBAC(t, "branch_manager", domain.RoleBranchManager)
	if !reached || rec.Code != http.StatusOK {
		t.Fatalf("branch manager should pass, got %d", rec.Code)
	}
}

func TestRequireRoles_RejectsOtherRole(t *testing.T) {
	rec, reached := runRBAC(t, "customer", domain.RoleBranchManager)
	if reached {
		t.Fatalf("customer must not reach admin handlers")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireRoles_RejectsUnknownRole(t *testing.T) {
	rec, reached := runRBAC(t, "superuser", domain.RoleBranchManager)
	if reached || rec.Code != http.StatusForbidden {
		t.Fatalf("unknown role value must be rejected, got %d", rec.Code)
	}
}

func TestRequireRoles_RejectsMissingRole(t *testing.T) {
	rec, reached := runRBAC(t, nil, domain.RoleBranchManager)
	if reached || rec.Code != http.StatusForbidden {
		t.Fatalf("missing role claim must be rejected, got %d", rec.Code)
	}
}

func TestRequireRoles_MultipleAllowed(t *testing.T) {
	rec, reached := runRBAC(t, "teller", domain.RoleTeller, domain.RoleBranchManager)
	if !reached || rec.Code != http.StatusOK {
		t.Fatalf("teller should pass a teller-or-manager gate, got %d", rec.Code)
	}
}
