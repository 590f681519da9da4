package database

// Score is one developer's value for one feature. Rows are produced by the
// external scoring job; the service only reads them.
type Score struct {
	ID     int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	ULogin string  `json:"ulogin" gorm:"column:ulogin;size:255;not null;index"`
	DID    int64   `json:"did" gorm:"column:did;not null"`
	FName  string  `json:"fname" gorm:"column:fname;size:255;not null;index"`
	Score  float64 `json:"score" gorm:"column:score;not null"`
}

// TableName pins the table name used by the scoring job
func (Score) TableName() string {
	return "scores"
}

// Feature is a named ranking dimension with a default weight
type Feature struct {
	ID            int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name          string  `json:"name" gorm:"size:255;not null;uniqueIndex"`
	DefaultWeight float64 `json:"default_weight" gorm:"column:default_weight;not null;default:1"`
}

// TableName pins the table name used by the scoring job
func (Feature) TableName() string {
	return "features"
}
