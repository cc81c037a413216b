package enums

// OutboxEventType names the domain events recorded for asynchronous
// publication.
type OutboxEventType string

const (
	OutboxEventEnrollmentCreated OutboxEventType = "enrollment.created"
	OutboxEventCourseCompleted   OutboxEventType = "course.completed"
	OutboxEventCertificateIssued OutboxEventType = "certificate.issued"
	OutboxEventCoursePublished   OutboxEventType = "course.published"
)

// String implements fmt.Stringer.
func (t OutboxEventType) String() string {
	return string(t)
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregateEnrollment  OutboxAggregateType = "enrollment"
	OutboxAggregateCourse      OutboxAggregateType = "course"
	OutboxAggregateCertificate OutboxAggregateType = "certificate"
)

// String implements fmt.Stringer.
func (t OutboxAggregateType) String() string {
	return string(t)
}
