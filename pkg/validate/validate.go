// Package validate checks client and domain form input and reports failures as a
// field -> message mapping suitable for a 400 response body.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/expiry"
)

// Errors maps a JSON field name to a human-readable message.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e Errors) add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

func (e Errors) err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// MinPurchaseDate is the earliest purchase date the forms accept.
var MinPurchaseDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	contactRe = regexp.MustCompile(`^[0-9+\-\s()]{7,20}$`)
	domainRe  = regexp.MustCompile(`^[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)*\.[a-zA-Z]{2,}$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("contact", func(fl validator.FieldLevel) bool {
		return contactRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("lease_domain", func(fl validator.FieldLevel) bool {
		return ValidDomainName(fl.Field().String())
	})
	return v
}

// ValidDomainName accepts a bare registrable host name such as "example.com".
// URLs and names starting with "www." are rejected.
func ValidDomainName(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "www.") {
		return false
	}
	if !domainRe.MatchString(name) {
		return false
	}
	_, err := publicsuffix.Domain(lower)
	return err == nil
}

// run executes struct tag validation and translates failures using messages,
// keyed by "<json field>.<tag>" or just "<json field>".
func run(in any, messages map[string]string) Errors {
	errs := Errors{}
	err := validate.Struct(in)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.add("non_field_errors", err.Error())
		return errs
	}
	for _, fe := range verrs {
		field := fe.Field()
		msg, ok := messages[field+"."+fe.Tag()]
		if !ok {
			msg, ok = messages[field]
		}
		if !ok {
			msg = fmt.Sprintf("%s is invalid", field)
		}
		errs.add(field, msg)
	}
	return errs
}

// ClientInput is the body of the client add and update endpoints.
type ClientInput struct {
	Name        string `json:"name" validate:"required,min=2"`
	Contact     string `json:"contact" validate:"required,contact"`
	Email       string `json:"email" validate:"required,email"`
	CompanyName string `json:"company_name" validate:"required"`
	Address     string `json:"address" validate:"required"`
}

var clientMessages = map[string]string{
	"name.required":         "Name is required",
	"name.min":              "Name must be at least 2 characters",
	"contact.required":      "Contact number is required",
	"contact.contact":       "Enter a valid contact number",
	"email.required":        "Email is required",
	"email.email":           "Enter a valid email address",
	"company_name.required": "Company name is required",
	"address.required":      "Address is required",
}

func (in *ClientInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Contact = strings.TrimSpace(in.Contact)
	in.Email = strings.TrimSpace(in.Email)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Address = strings.TrimSpace(in.Address)
}

// Client validates the input and returns the client it describes.
func (in ClientInput) Client() (database.Client, error) {
	in.normalize()
	if err := run(in, clientMessages).err(); err != nil {
		return database.Client{}, err
	}
	return database.Client{
		Name:        in.Name,
		Contact:     in.Contact,
		Email:       in.Email,
		CompanyName: in.CompanyName,
		Address:     in.Address,
	}, nil
}

// ParseActive reads the domain "active" flag. It accepts a JSON boolean or the
// strings "active", "inactive", "true" and "false" in any case. A missing value
// means active.
func ParseActive(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return true, nil
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "active", "true":
			return true, nil
		case "inactive", "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("unrecognized active value %v", v)
}

const activeMessage = `Active must be true, false, "active" or "inactive".`

// DomainInput is the body of the domain add endpoint.
type DomainInput struct {
	ClientID            string `json:"client_id" validate:"required"`
	DomainName          string `json:"domain_name" validate:"required,lease_domain"`
	Registrar           string `json:"registrar" validate:"required"`
	Active              any    `json:"active"`
	PurchaseDate        string `json:"purchase_date" validate:"required"`
	ExpiryDate          string `json:"expiry_date" validate:"required"`
	SSHName             string `json:"ssh_name"`
	SSHPurchaseDate     string `json:"ssh_purchase_date"`
	SSHExpiryDate       string `json:"ssh_expiry_date"`
	HostingProvider     string `json:"hosting_provider"`
	HostingPurchaseDate string `json:"hosting_purchase_date"`
	HostingExpiryDate   string `json:"hosting_expiry_date"`
}

var domainMessages = map[string]string{
	"client_id.required":       "Client is required.",
	"domain_name.required":     "Domain name is required.",
	"domain_name.lease_domain": "Enter a valid domain (example: example.com).",
	"registrar.required":       "Registrar is required.",
	"purchase_date.required":   "Purchase date is required.",
	"expiry_date.required":     "Expiry date is required.",
}

// Domain validates the input against today's date and returns the domain it
// describes. ClientName is left for the caller to fill from the client row.
func (in DomainInput) Domain(today time.Time) (database.Domain, error) {
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.DomainName = strings.ToLower(strings.TrimSpace(in.DomainName))
	in.Registrar = strings.TrimSpace(in.Registrar)
	in.SSHName = strings.TrimSpace(in.SSHName)
	in.HostingProvider = strings.TrimSpace(in.HostingProvider)

	errs := run(in, domainMessages)

	active, err := ParseActive(in.Active)
	if err != nil {
		errs.add("active", activeMessage)
	}

	d := database.Domain{
		ClientID:   in.ClientID,
		DomainName: in.DomainName,
		Registrar:  in.Registrar,
		Active:     active,
	}

	purchase, exp := checkPlan(errs, today, database.ScopeDomain, true, in.PurchaseDate, in.ExpiryDate)
	d.SetPlan(database.ScopeDomain, "", purchase, exp)

	if in.SSHName != "" {
		purchase, exp = checkPlan(errs, today, database.ScopeSSH, true, in.SSHPurchaseDate, in.SSHExpiryDate)
		d.SetPlan(database.ScopeSSH, in.SSHName, purchase, exp)
	}
	if in.HostingProvider != "" {
		purchase, exp = checkPlan(errs, today, database.ScopeHosting, true, in.HostingPurchaseDate, in.HostingExpiryDate)
		d.SetPlan(database.ScopeHosting, in.HostingProvider, purchase, exp)
	}

	if err := errs.err(); err != nil {
		return database.Domain{}, err
	}
	return d, nil
}

// DomainInfoInput is the body of the domain info update endpoint.
type DomainInfoInput struct {
	ClientID   string `json:"client_id" validate:"required"`
	DomainName string `json:"domain_name" validate:"required,lease_domain"`
	Registrar  string `json:"registrar" validate:"required"`
	Active     any    `json:"active"`
}

// Apply validates the input and copies it onto d.
func (in DomainInfoInput) Apply(d *database.Domain) error {
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.DomainName = strings.ToLower(strings.TrimSpace(in.DomainName))
	in.Registrar = strings.TrimSpace(in.Registrar)

	errs := run(in, domainMessages)
	active, err := ParseActive(in.Active)
	if err != nil {
		errs.add("active", activeMessage)
	}
	if err := errs.err(); err != nil {
		return err
	}

	d.ClientID = in.ClientID
	d.DomainName = in.DomainName
	d.Registrar = in.Registrar
	d.Active = active
	return nil
}

// RenewInput is the body of the plan renewal endpoint. Name is the SSH plan name
// or hosting provider and is ignored for the domain scope.
type RenewInput struct {
	Scope        string `json:"scope" validate:"required,oneof=domain ssh hosting"`
	Name         string `json:"name"`
	PurchaseDate string `json:"purchase_date" validate:"required"`
	ExpiryDate   string `json:"expiry_date" validate:"required"`
}

var renewMessages = map[string]string{
	"scope":                  "Scope must be one of domain, ssh or hosting.",
	"purchase_date.required": "Purchase date is required.",
	"expiry_date.required":   "Expiry date is required.",
}

// Apply validates the renewal and replaces the plan on d. It returns the renewed scope.
func (in RenewInput) Apply(d *database.Domain, today time.Time) (database.Scope, error) {
	in.Scope = strings.ToLower(strings.TrimSpace(in.Scope))
	in.Name = strings.TrimSpace(in.Name)

	errs := run(in, renewMessages)
	scope, _ := database.ParseScope(in.Scope)

	name := in.Name
	if scope != "" && scope != database.ScopeDomain && name == "" {
		name, _, _ = d.Plan(scope)
		if name == "" {
			errs.add("name", fmt.Sprintf("A plan name is required to renew the %s plan.", scope))
		}
	}

	purchase, exp := checkPlan(errs, today, scope, false, in.PurchaseDate, in.ExpiryDate)
	if err := errs.err(); err != nil {
		return "", err
	}
	d.SetPlan(scope, name, purchase, exp)
	return scope, nil
}

// checkPlan validates a purchase/expiry pair and returns both normalized to YYYY-MM-DD.
// Field names follow the scope prefix; renewals (prefixed=false) use the bare names.
func checkPlan(errs Errors, today time.Time, scope database.Scope, prefixed bool, purchaseIn, expiryIn string) (string, string) {
	purchaseField, expiryField := "purchase_date", "expiry_date"
	label := "Domain"
	switch scope {
	case database.ScopeSSH:
		label = "SSH"
	case database.ScopeHosting:
		label = "Hosting"
	}
	if prefixed && scope != database.ScopeDomain {
		purchaseField = string(scope) + "_" + purchaseField
		expiryField = string(scope) + "_" + expiryField
	}
	if !prefixed {
		label = "Plan"
	}

	purchase, err := expiry.ParseDate(purchaseIn)
	switch {
	case err != nil:
		errs.add(purchaseField, "Enter a valid date (YYYY-MM-DD).")
	case purchase == nil:
		errs.add(purchaseField, fmt.Sprintf("%s purchase date is required.", label))
	case expiry.Day(*purchase).Before(MinPurchaseDate) || expiry.Day(*purchase).After(expiry.Day(today)):
		errs.add(purchaseField, fmt.Sprintf("%s purchase date must be between %s and today.", label, MinPurchaseDate.Format(time.DateOnly)))
	}

	exp, err := expiry.ParseDate(expiryIn)
	switch {
	case err != nil:
		errs.add(expiryField, "Enter a valid date (YYYY-MM-DD).")
	case exp == nil:
		errs.add(expiryField, fmt.Sprintf("%s expiry date is required.", label))
	case purchase != nil && !expiry.Day(*exp).After(expiry.Day(*purchase)):
		errs.add(expiryField, fmt.Sprintf("%s expiry date must be after purchase date.", label))
	}

	return dateString(purchase), dateString(exp)
}

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
