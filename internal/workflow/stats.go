package workflow

import (
	"math"
	"time"

	"github.com/muzukuru/jobcard-service/internal/models"
)

// DepartmentAll is the sentinel meaning "no department filter".
const DepartmentAll = "all"

// CountByStatus tallies cards per exact status string.
func CountByStatus(cards []models.JobCard) map[string]int {
	counts := make(map[string]int)
	for _, card := range cards {
		counts[card.Status]++
	}
	return counts
}

// DoneCount counts cards whose status means finished: completed and closed
// are synonyms.
func DoneCount(cards []models.JobCard) int {
	count := 0
	for _, card := range cards {
		if card.Status == models.StatusCompleted || card.Status == models.StatusClosed {
			count++
		}
	}
	return count
}

// CompletionRate is done/total as a rounded integer percentage; an empty set
// is 0 percent, never a division error.
func CompletionRate(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

// FilterDepartment keeps cards of one department; DepartmentAll disables
// the filter. Input order is preserved.
func FilterDepartment(cards []models.JobCard, department string) []models.JobCard {
	if department == DepartmentAll || department == "" {
		return cards
	}
	var filtered []models.JobCard
	for _, card := range cards {
		if card.Department == department {
			filtered = append(filtered, card)
		}
	}
	return filtered
}

// PersonalHistory keeps the cards submitted by one user, in fetch order.
func PersonalHistory(cards []models.JobCard, username string) []models.JobCard {
	var filtered []models.JobCard
	for _, card := range cards {
		if card.RequestedBy == username {
			filtered = append(filtered, card)
		}
	}
	return filtered
}

// SubmittedThisWeek counts cards submitted since the start of the current
// calendar week. Weeks start on Sunday.
func SubmittedThisWeek(cards []models.JobCard, now time.Time) int {
	start := startOfWeek(now)
	count := 0
	for _, card := range cards {
		submitted, ok := submittedTime(card)
		if !ok {
			continue
		}
		if !submitted.Before(start) && !submitted.After(now) {
			count++
		}
	}
	return count
}

// SubmittedThisMonth counts cards submitted in the current calendar month.
func SubmittedThisMonth(cards []models.JobCard, now time.Time) int {
	count := 0
	for _, card := range cards {
		submitted, ok := submittedTime(card)
		if !ok {
			continue
		}
		if submitted.Year() == now.Year() && submitted.Month() == now.Month() {
			count++
		}
	}
	return count
}

// SubmittedThisYear counts cards submitted in the current calendar year.
func SubmittedThisYear(cards []models.JobCard, now time.Time) int {
	count := 0
	for _, card := range cards {
		submitted, ok := submittedTime(card)
		if !ok {
			continue
		}
		if submitted.Year() == now.Year() {
			count++
		}
	}
	return count
}

// ApprovedToday counts cards whose approval landed on today's calendar date.
func ApprovedToday(cards []models.JobCard, now time.Time) int {
	count := 0
	for _, card := range cards {
		if card.Status != models.StatusApproved || card.DateApproved == "" {
			continue
		}
		approved, ok := parseCardTime(card.DateApproved)
		if !ok {
			continue
		}
		if sameDay(approved, now) {
			count++
		}
	}
	return count
}

// PendingDisbursements counts approved cards awaiting the accounts role.
func PendingDisbursements(cards []models.JobCard) int {
	count := 0
	for _, card := range cards {
		if card.Status == models.StatusApproved && !card.Disbursed {
			count++
		}
	}
	return count
}

// TotalAmount sums the costing totals across the set.
func TotalAmount(cards []models.JobCard) float64 {
	total := 0.0
	for _, card := range cards {
		total += card.TotalAmount
	}
	return total
}

// AmountThisWeek sums totals of cards submitted since the week start.
func AmountThisWeek(cards []models.JobCard, now time.Time) float64 {
	start := startOfWeek(now)
	total := 0.0
	for _, card := range cards {
		submitted, ok := submittedTime(card)
		if !ok {
			continue
		}
		if !submitted.Before(start) && !submitted.After(now) {
			total += card.TotalAmount
		}
	}
	return total
}

// ItemsTotal recomputes the expected totalAmount from the costing lines.
// The store never enforces agreement between the two; this is the check a
// client runs before surfacing a discrepancy.
func ItemsTotal(card models.JobCard) float64 {
	total := 0.0
	for _, item := range card.Items {
		total += item.Quantity * item.EstimatedCost
	}
	return total
}

// submittedTime resolves a card's submission instant: dateSubmitted first,
// falling back to the older date field.
func submittedTime(card models.JobCard) (time.Time, bool) {
	if card.DateSubmitted != "" {
		return parseCardTime(card.DateSubmitted)
	}
	if card.Date != "" {
		return parseCardTime(card.Date)
	}
	return time.Time{}, false
}

// parseCardTime accepts the two formats found in the collection: RFC3339
// timestamps and bare YYYY-MM-DD dates.
func parseCardTime(value string) (time.Time, bool) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse("2006-01-02", value); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}

func startOfWeek(now time.Time) time.Time {
	year, month, day := now.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -int(now.Weekday()))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
