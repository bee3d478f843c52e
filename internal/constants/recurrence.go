package constants

type RecurrenceKind string

const (
	RecurWeekly    RecurrenceKind = "weekly"
	RecurMonthly   RecurrenceKind = "monthly"
	RecurQuarterly RecurrenceKind = "quarterly"
)

func (k RecurrenceKind) Valid() bool {
	switch k {
	case RecurWeekly, RecurMonthly, RecurQuarterly:
		return true
	}
	return false
}

// AssigneeTeam is the sentinel assignee value meaning "every current member
// of the owning group". It is expanded when an occurrence is materialized,
// not when the template is created.
const AssigneeTeam = "team"
