package model

// swagger:model Course
type Course struct {
	BaseModel
	CourseKey              string `gorm:"size:255;uniqueIndex;not null" json:"courseKey"`
	Org                    string `gorm:"size:100;not null" json:"org"`
	Number                 string `gorm:"size:100;not null" json:"number"`
	Run                    string `gorm:"size:100;not null" json:"run"`
	DisplayName            string `gorm:"size:255" json:"displayName"`
	EnableSubsectionGating bool   `json:"enableSubsectionGating"`
}

func (Course) TableName() string {
	return "courses"
}

func (c *Course) Key() CourseKey {
	return CourseKey{Org: c.Org, Number: c.Number, Run: c.Run}
}

// Location 课程根节点位置，直接挂在课程下的 block 以它为父节点
func (c *Course) Location() string {
	return c.Key().RootLocation().String()
}
