package enums

// BusinessStatus is the stored review state of a listing. "no_business" and
// "error" are view states and never persisted.
type BusinessStatus string

const (
	BusinessStatusPending  BusinessStatus = "pending"
	BusinessStatusActive   BusinessStatus = "active"
	BusinessStatusRejected BusinessStatus = "rejected"
)

var businessStatuses = set[BusinessStatus]{BusinessStatusPending, BusinessStatusActive, BusinessStatusRejected}

func (s BusinessStatus) String() string { return string(s) }

func (s BusinessStatus) IsValid() bool { return businessStatuses.has(s) }

// IsReviewed reports whether an administrator has already decided on the listing.
func (s BusinessStatus) IsReviewed() bool {
	return s == BusinessStatusActive || s == BusinessStatusRejected
}

func ParseBusinessStatus(value string) (BusinessStatus, error) {
	return businessStatuses.parse("business status", value)
}
