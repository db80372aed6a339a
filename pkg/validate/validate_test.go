package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harveywai/leasedesk/pkg/database"
)

var today = time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC)

func validationErrors(t *testing.T, err error) Errors {
	t.Helper()
	require.Error(t, err)
	var errs Errors
	require.ErrorAs(t, err, &errs)
	return errs
}

func TestClientInput(t *testing.T) {
	in := ClientInput{
		Name:        "  Acme  ",
		Contact:     "+1 (555) 123-4567",
		Email:       "ops@acme.test",
		CompanyName: "Acme Ltd",
		Address:     "1 Road",
	}
	c, err := in.Client()
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.Name)

	_, err = ClientInput{Name: "A", Contact: "abc", Email: "nope"}.Client()
	errs := validationErrors(t, err)
	assert.Equal(t, Errors{
		"name":         "Name must be at least 2 characters",
		"contact":      "Enter a valid contact number",
		"email":        "Enter a valid email address",
		"company_name": "Company name is required",
		"address":      "Address is required",
	}, errs)

	_, err = ClientInput{}.Client()
	errs = validationErrors(t, err)
	assert.Equal(t, "Name is required", errs["name"])
	assert.Equal(t, "Contact number is required", errs["contact"])
	assert.Equal(t, "Email is required", errs["email"])
}

func TestValidDomainName(t *testing.T) {
	assert.True(t, ValidDomainName("example.com"))
	assert.True(t, ValidDomainName("shop.example.co.uk"))
	assert.False(t, ValidDomainName("www.example.com"))
	assert.False(t, ValidDomainName("https://example.com"))
	assert.False(t, ValidDomainName("example"))
	assert.False(t, ValidDomainName("exa mple.com"))
}

func TestParseActive(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{nil, true},
		{true, true},
		{false, false},
		{"active", true},
		{"Inactive", false},
		{"TRUE", true},
		{" false ", false},
	}
	for _, tc := range cases {
		got, err := ParseActive(tc.in)
		require.NoError(t, err, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}

	_, err := ParseActive("yes")
	assert.Error(t, err)
	_, err = ParseActive(1.0)
	assert.Error(t, err)
}

func validDomainInput() DomainInput {
	return DomainInput{
		ClientID:     "c-1",
		DomainName:   "Example.com",
		Registrar:    "GoDaddy",
		Active:       "active",
		PurchaseDate: "2024-01-10",
		ExpiryDate:   "2025-01-10",
	}
}

func TestDomainInput(t *testing.T) {
	in := validDomainInput()
	in.SSHName = "ssh-basic"
	in.SSHPurchaseDate = "2024-02-01"
	in.SSHExpiryDate = "2025-02-01T00:00:00Z"

	d, err := in.Domain(today)
	require.NoError(t, err)
	assert.Equal(t, "example.com", d.DomainName)
	assert.True(t, d.Active)
	assert.Equal(t, "2025-01-10", d.ExpiryDate)
	assert.Equal(t, "ssh-basic", d.SSHName)
	assert.Equal(t, "2025-02-01", d.SSHExpiryDate)
	assert.Empty(t, d.HostingProvider)
}

func TestDomainInputErrors(t *testing.T) {
	_, err := DomainInput{}.Domain(today)
	errs := validationErrors(t, err)
	assert.Equal(t, "Client is required.", errs["client_id"])
	assert.Equal(t, "Domain name is required.", errs["domain_name"])
	assert.Equal(t, "Registrar is required.", errs["registrar"])
	assert.Equal(t, "Purchase date is required.", errs["purchase_date"])
	assert.Equal(t, "Expiry date is required.", errs["expiry_date"])

	in := validDomainInput()
	in.DomainName = "www.example.com"
	in.ExpiryDate = "2024-01-10"
	in.Active = "maybe"
	_, err = in.Domain(today)
	errs = validationErrors(t, err)
	assert.Equal(t, "Enter a valid domain (example: example.com).", errs["domain_name"])
	assert.Equal(t, "Domain expiry date must be after purchase date.", errs["expiry_date"])
	assert.Contains(t, errs, "active")

	in = validDomainInput()
	in.PurchaseDate = "2025-01-11"
	in.ExpiryDate = "2026-01-11"
	_, err = in.Domain(today)
	errs = validationErrors(t, err)
	assert.Equal(t, "Domain purchase date must be between 2000-01-01 and today.", errs["purchase_date"])

	in = validDomainInput()
	in.PurchaseDate = "10/01/2024"
	_, err = in.Domain(today)
	errs = validationErrors(t, err)
	assert.Equal(t, "Enter a valid date (YYYY-MM-DD).", errs["purchase_date"])
}

func TestDomainInputPlanDatesRequiredWhenNamed(t *testing.T) {
	in := validDomainInput()
	in.SSHName = "ssh-basic"
	in.HostingProvider = "Hetzner"
	in.HostingPurchaseDate = "2024-05-01"
	in.HostingExpiryDate = "2024-04-01"

	_, err := in.Domain(today)
	errs := validationErrors(t, err)
	assert.Equal(t, Errors{
		"ssh_purchase_date":   "SSH purchase date is required.",
		"ssh_expiry_date":     "SSH expiry date is required.",
		"hosting_expiry_date": "Hosting expiry date must be after purchase date.",
	}, errs)
}

func TestDomainInfoInputApply(t *testing.T) {
	d := database.Domain{DomainName: "old.com", Registrar: "GoDaddy", Active: true}
	err := DomainInfoInput{ClientID: "c-2", DomainName: "new.com", Registrar: "Namecheap", Active: false}.Apply(&d)
	require.NoError(t, err)
	assert.Equal(t, "new.com", d.DomainName)
	assert.False(t, d.Active)

	before := d
	errs := validationErrors(t, DomainInfoInput{DomainName: "bad"}.Apply(&d))
	assert.Contains(t, errs, "client_id")
	assert.Equal(t, before, d)
}

func TestRenewInputApply(t *testing.T) {
	d := database.Domain{DomainName: "example.com", SSHName: "ssh-basic"}

	scope, err := RenewInput{Scope: "SSH", PurchaseDate: "2025-01-01", ExpiryDate: "2026-01-01"}.Apply(&d, today)
	require.NoError(t, err)
	assert.Equal(t, database.ScopeSSH, scope)
	assert.Equal(t, "ssh-basic", d.SSHName)
	assert.Equal(t, "2026-01-01", d.SSHExpiryDate)

	_, err = RenewInput{Scope: "hosting", PurchaseDate: "2025-01-01", ExpiryDate: "2026-01-01"}.Apply(&d, today)
	errs := validationErrors(t, err)
	assert.Contains(t, errs, "name")

	_, err = RenewInput{Scope: "email", PurchaseDate: "2025-01-01", ExpiryDate: "2024-01-01"}.Apply(&d, today)
	errs = validationErrors(t, err)
	assert.Equal(t, "Scope must be one of domain, ssh or hosting.", errs["scope"])
	assert.Equal(t, "Plan expiry date must be after purchase date.", errs["expiry_date"])
}

func TestErrorsMessageIsSorted(t *testing.T) {
	err := Errors{"b": "second", "a": "first"}
	assert.Equal(t, "validation failed: a: first; b: second", err.Error())
}
