package model

const (
	CategoryCourse     = "course"
	CategoryChapter    = "chapter"
	CategorySequential = "sequential"
	CategoryVertical   = "vertical"
	CategoryProblem    = "problem"
)

// ContentBlock 课程内容树中的一个节点（章 / 小节 / 单元 / 题目）
// swagger:model ContentBlock
type ContentBlock struct {
	BaseModel
	CourseKey      string  `gorm:"size:255;index;not null" json:"courseKey"`
	Location       string  `gorm:"size:255;uniqueIndex;not null" json:"location"`
	Category       string  `gorm:"size:50;index;not null" json:"category"`
	ParentLocation string  `gorm:"size:255;index" json:"parentLocation"`
	DisplayName    string  `gorm:"size:255" json:"displayName"`
	Position       int     `gorm:"default:0" json:"position"`
	Graded         bool    `json:"graded"`
	MaxScore       float64 `json:"maxScore"` // 仅题目使用，未作答时计入满分
}

func (ContentBlock) TableName() string {
	return "content_blocks"
}

func (b *ContentBlock) IsSubsection() bool {
	return b.Category == CategorySequential
}
