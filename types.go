package gallerypress

import "fmt"

// Submission is one incoming mosaic-design payload from the frontend.
// It lives only for the duration of a single request; persistence is
// delegated to the external content platform.
type Submission struct {
	Nickname    string         `json:"nickname"`
	Category    string         `json:"category"`
	GridSize    string         `json:"gridSize"`
	Baseplate   string         `json:"baseplate"`
	TotalPieces int            `json:"totalPieces"`
	ColorCounts map[string]int `json:"colorCounts"`
	Timestamp   string         `json:"timestamp"`
	CleanImage  string         `json:"cleanImage"` // base64, optional data-URI prefix
	LogoImage   string         `json:"logoImage"`
	Email       string         `json:"email"` // optional contact address
}

// ArticleRecord identifies an article created on the platform.
type ArticleRecord struct {
	ID         int64
	Handle     string
	BlogHandle string
}

// CanonicalURL derives the public article URL from the store domain and the
// two handles. It returns "" when either handle is absent, rather than
// constructing a broken link.
func (a ArticleRecord) CanonicalURL(shopDomain string) string {
	if a.Handle == "" || a.BlogHandle == "" {
		return ""
	}
	return fmt.Sprintf("https://%s/blogs/%s/%s", shopDomain, a.BlogHandle, a.Handle)
}

// Attachment is a single binary email attachment.
type Attachment struct {
	Content  []byte
	Filename string
	MIMEType string
}

// EmailJob describes one fire-and-forget transactional email.
type EmailJob struct {
	To         string
	Subject    string
	TextBody   string
	HTMLBody   string
	Attachment Attachment
}

type submissionFiles struct {
	CleanURL string `json:"cleanUrl"`
	LogoURL  string `json:"logoUrl"`
}

type submissionResponse struct {
	OK         bool            `json:"ok"`
	ArticleID  int64           `json:"articleId"`
	ArticleURL string          `json:"articleUrl"`
	Files      submissionFiles `json:"files"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// errorResponse is the uniform outward error envelope. Callers branch on
// the ok boolean alone; detail carries upstream diagnostics when present.
type errorResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
