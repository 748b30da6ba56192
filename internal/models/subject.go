package models

import "time"

// Subject represents a curriculum subject with a fixed number of periods.
type Subject struct {
	ID                  string    `db:"id" json:"id"`
	Code                string    `db:"code" json:"code"`
	Name                string    `db:"name" json:"name"`
	TotalPeriods        int       `db:"total_periods" json:"total_periods"`
	MajorID             string    `db:"major_id" json:"major_id"`
	IsShared            bool      `db:"is_shared" json:"is_shared"`
	ResponsibleTeacher1 *string   `db:"responsible_teacher_1" json:"responsible_teacher_1,omitempty"`
	ResponsibleTeacher2 *string   `db:"responsible_teacher_2" json:"responsible_teacher_2,omitempty"`
	ResponsibleTeacher3 *string   `db:"responsible_teacher_3" json:"responsible_teacher_3,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// ResponsibleTeacherIDs returns the non-empty responsible teacher ids in order.
func (s Subject) ResponsibleTeacherIDs() []string {
	var ids []string
	for _, ref := range []*string{s.ResponsibleTeacher1, s.ResponsibleTeacher2, s.ResponsibleTeacher3} {
		if ref != nil && *ref != "" {
			ids = append(ids, *ref)
		}
	}
	return ids
}
