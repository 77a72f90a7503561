package seed

// Config is one seed file: a user's property and the content items to
// register for tracking at startup. Registration is idempotent; items
// already registered are left untouched.
type Config struct {
	UserID      string `yaml:"user_id"`
	PropertyURI string `yaml:"property_uri"`
	Items       []Item `yaml:"items"`
}

// Item declares one content item's evaluation schedule.
type Item struct {
	ContentItemID      string `yaml:"content_item_id"`
	BaseEvaluationDate string `yaml:"base_evaluation_date"`
	CycleDays          int    `yaml:"cycle_days"`
	EvaluationHour     int    `yaml:"evaluation_hour"`
}
