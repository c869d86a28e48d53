package utils

import (
	"fmt"
	"math"
	"sort"
	"time"

	"iotkit-lending-backend/internal/domain"
)

// DefaultFineDueDays is the grace period between issuing a fine and its due date.
const DefaultFineDueDays = 7

// FineBreakdown is the result of evaluating an inspection.
type FineBreakdown struct {
	Total int64
	Items []domain.BreakdownItem
}

// EvaluateFine computes the total fine for an inspection and its itemized lines.
// Only damaged components contribute, each with its stored value; every
// selected policy contributes its flat amount exactly once. Items are ordered
// by component name, then by policy selection order, so two evaluations of the
// same inputs are identical.
func EvaluateFine(assessment domain.DamageAssessment, policies []domain.PenaltyPolicy) FineBreakdown {
	var result FineBreakdown

	names := make([]string, 0, len(assessment))
	for name := range assessment {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		damage := assessment[name]
		if !damage.Damaged {
			continue
		}
		result.Items = append(result.Items, domain.BreakdownItem{
			Label:    name,
			Amount:   damage.Value,
			Kind:     domain.DetailKindDamage,
			ImageURL: damage.EvidenceImageURL,
		})
		result.Total += damage.Value
	}

	seen := make(map[int32]bool, len(policies))
	for _, p := range policies {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		id := p.ID
		result.Items = append(result.Items, domain.BreakdownItem{
			Label:    p.PolicyName,
			Amount:   p.Amount,
			Kind:     domain.DetailKindPolicy,
			PolicyID: &id,
		})
		result.Total += p.Amount
	}

	return result
}

// SumDetails adds up the amounts of a penalty's detail lines.
func SumDetails(details []domain.PenaltyDetail) int64 {
	var total int64
	for _, d := range details {
		total += d.Amount
	}
	return total
}

// IsLate reports whether the actual return happened strictly after the expected
// return date. A request without an expected date is never late.
func IsLate(actualReturn time.Time, expectReturn *time.Time) bool {
	if expectReturn == nil {
		return false
	}
	return actualReturn.After(*expectReturn)
}

// DaysLate returns the number of started days past the expected return date.
func DaysLate(actualReturn time.Time, expectReturn *time.Time) int {
	if !IsLate(actualReturn, expectReturn) {
		return 0
	}
	return int(math.Ceil(actualReturn.Sub(*expectReturn).Hours() / 24))
}

// FineDueDate returns the date a fine created at createdAt must be paid by.
func FineDueDate(createdAt time.Time, dueDays int) time.Time {
	if dueDays <= 0 {
		dueDays = DefaultFineDueDays
	}
	return createdAt.AddDate(0, 0, dueDays)
}

// FormatVND renders an amount with thousands separators, e.g. 150.000 VND.
func FormatVND(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digits[i])
	}
	return sign + string(out) + " VND"
}
