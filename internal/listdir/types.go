package listdir

// ErrorResponse is the error body returned by the REST API.
type ErrorResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// List is a mailing list resource, GET /lists/{list}.
type List struct {
	ListID       string `json:"list_id"`
	FQDNListname string `json:"fqdn_listname"`
	DisplayName  string `json:"display_name"`
	Description  string `json:"description"`
	MailHost     string `json:"mail_host"`
	ListName     string `json:"list_name"`
	MemberCount  int    `json:"member_count"`
}

// ListConfig holds the list settings, GET /lists/{list}/config.
type ListConfig struct {
	SubjectPrefix string `json:"subject_prefix"`
	ArchivePolicy string `json:"archive_policy"`
	CreatedAt     string `json:"created_at"`
	Description   string `json:"description"`
	DisplayName   string `json:"display_name"`
}

// ListPage is one page of GET /lists.
type ListPage struct {
	Start     int    `json:"start"`
	TotalSize int    `json:"total_size"`
	Entries   []List `json:"entries"`
}

// User is a directory user, GET /users/{address}.
type User struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}
