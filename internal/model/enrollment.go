package model

// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	UserID   uint    `gorm:"uniqueIndex:idx_enrollment_user_course;type:bigint unsigned;not null" json:"userId"`
	CourseID uint    `gorm:"uniqueIndex:idx_enrollment_user_course;type:bigint unsigned;not null" json:"courseId"`
	User     *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Course   *Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
