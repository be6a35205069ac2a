package models

// User is a workspace member as recorded by the directory store.
type User struct {
	ID          string `json:"id"`
	UserName    string `json:"user_name"`
	RealName    string `json:"real_name"`
	DisplayName string `json:"display_name"`
}

// Channel is a workspace channel as recorded by the directory store.
type Channel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	Purpose     string `json:"purpose"`
	IsArchived  bool   `json:"is_archived"`
	MemberCount int    `json:"member_count"`
}
