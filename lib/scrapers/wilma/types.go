package wilma

import "time"

// all of these are plain value objects built fresh per request, the
// client never caches or mutates them after construction.

type Lesson struct {
	// start/end are zero-padded HH:MM strings, lexicographic order
	// matches chronological order
	StartTime string
	EndTime   string
	Subject   string
	Teacher   string
	Room      string
	Groups    []string
	Notes     string
}

type DaySchedule struct {
	Date    time.Time
	Lessons []Lesson
}

type Folder string

const (
	FolderInbox   Folder = "inbox"
	FolderSent    Folder = "sent"
	FolderArchive Folder = "archive"
)

type MessageSummary struct {
	Id        string
	Subject   string
	Sender    string
	Timestamp time.Time
	IsRead    bool
	Folder    Folder
}

type Message struct {
	Id          string
	Subject     string
	Sender      string
	Timestamp   time.Time
	Content     string
	Recipients  []string
	Attachments []string
	// fetching a message implies viewing it
	IsRead    bool
	Folder    Folder
	ReplyToId string
}

type Recipient struct {
	// opaque id, used as the send target
	Id   string
	Name string
	Role string
	// school/organization label, when the portal provides one
	School string
}
