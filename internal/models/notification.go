package models

// Field is one key/value line of a notification
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Notification is a human-readable report: a title plus ordered fields.
type Notification struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}
