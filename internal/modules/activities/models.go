// Package activities implements the activity taxonomy: the read-only catalog of
// work activity types classified along three independent axes.
package activities

import (
	"fmt"
	"strings"
)

// Availability says whether time spent on an activity counts as available work.
type Availability string

const (
	Available   Availability = "AVAILABLE"
	Unavailable Availability = "UNAVAILABLE"
)

// IncomeGeneration says whether an activity produces a billable opportunity.
type IncomeGeneration string

const (
	Income   IncomeGeneration = "INCOME"
	NoIncome IncomeGeneration = "NO_INCOME"
)

// BillingCategory says whether the resulting work is actually invoiced.
type BillingCategory string

const (
	Billable    BillingCategory = "BILLABLE"
	NonBillable BillingCategory = "NON_BILLABLE"
)

// ParseAvailability parses an availability axis value. Unknown values are an
// error so a typo in the catalog can never silently fall out of every metric.
func ParseAvailability(s string) (Availability, error) {
	switch a := Availability(strings.ToUpper(strings.TrimSpace(s))); a {
	case Available, Unavailable:
		return a, nil
	default:
		return "", fmt.Errorf("unknown availability %q", s)
	}
}

// ParseIncomeGeneration parses an income axis value.
func ParseIncomeGeneration(s string) (IncomeGeneration, error) {
	switch g := IncomeGeneration(strings.ToUpper(strings.TrimSpace(s))); g {
	case Income, NoIncome:
		return g, nil
	default:
		return "", fmt.Errorf("unknown income generation %q", s)
	}
}

// ParseBillingCategory parses a billing axis value.
func ParseBillingCategory(s string) (BillingCategory, error) {
	switch b := BillingCategory(strings.ToUpper(strings.TrimSpace(s))); b {
	case Billable, NonBillable:
		return b, nil
	default:
		return "", fmt.Errorf("unknown billing category %q", s)
	}
}

// ActivityType is an immutable catalog entry.
type ActivityType struct {
	ID                       int64            `json:"id"`
	Name                     string           `json:"name"`
	Description              string           `json:"description,omitempty"`
	Availability             Availability     `json:"availability"`
	GeneratesIncome          IncomeGeneration `json:"generates_income"`
	BillingCategory          BillingCategory  `json:"billing_category"`
	RequiresServiceReference bool             `json:"requires_service_reference"`
}

// NewActivityType builds a catalog entry. RequiresServiceReference is derived:
// it holds exactly when the activity is available and income generating.
func NewActivityType(id int64, name, description string, a Availability, g IncomeGeneration, b BillingCategory) ActivityType {
	t := ActivityType{
		ID:              id,
		Name:            name,
		Description:     description,
		Availability:    a,
		GeneratesIncome: g,
		BillingCategory: b,
	}
	t.RequiresServiceReference = IncomeProducing(t)
	return t
}

// Validate checks that every axis holds a known value.
func (t ActivityType) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("activity type %d has no name", t.ID)
	}
	if _, err := ParseAvailability(string(t.Availability)); err != nil {
		return fmt.Errorf("activity type %q: %w", t.Name, err)
	}
	if _, err := ParseIncomeGeneration(string(t.GeneratesIncome)); err != nil {
		return fmt.Errorf("activity type %q: %w", t.Name, err)
	}
	if _, err := ParseBillingCategory(string(t.BillingCategory)); err != nil {
		return fmt.Errorf("activity type %q: %w", t.Name, err)
	}
	return nil
}
