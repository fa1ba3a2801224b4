package db

// Post is a single forum submission as fetched from the source.
type Post struct {
	ID          string `json:"id"`
	Subreddit   string `json:"subreddit"`
	Title       string `json:"title"`
	Body        string `json:"selftext"`
	Permalink   string `json:"permalink"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	CreatedUTC  int64  `json:"created_utc"`
	NumComments int    `json:"num_comments"`
	Upvotes     int    `json:"upvotes"`
	IsSelf      bool   `json:"is_self"`
}

// Idea is a scored post that passed the relevance threshold. It shares its
// identifier with the Post it was derived from.
type Idea struct {
	PostID         string   `json:"post_id"`
	Subreddit      string   `json:"subreddit"`
	Title          string   `json:"title"`
	ProblemSummary string   `json:"problem_summary"`
	SolutionHint   string   `json:"solution_hint"`
	RelevanceScore float64  `json:"relevance_score"`
	ReasonTags     []string `json:"reason_tags"`
	CreatedUTC     int64    `json:"created_utc"`
	Permalink      string   `json:"permalink"`
	URL            string   `json:"url"`
	Author         string   `json:"author"`
	NumComments    int      `json:"num_comments"`
	Upvotes        int      `json:"upvotes"`
	LLMProfitScore *float64 `json:"llm_profit_score,omitempty"`
	LLMConfidence  *float64 `json:"llm_confidence,omitempty"`
}

// HasTag reports whether the idea carries the given reason tag.
func (i Idea) HasTag(tag string) bool {
	for _, t := range i.ReasonTags {
		if t == tag {
			return true
		}
	}
	return false
}

type RunStatus string

const (
	RunStarted        RunStatus = "started"
	RunSuccess        RunStatus = "success"
	RunFailed         RunStatus = "failed"
	RunSkippedSameDay RunStatus = "skipped_same_day"
)

// RunLog is the ledger row for one scan invocation.
type RunLog struct {
	ID             int64     `json:"id"`
	Period         string    `json:"period"`
	RunDay         string    `json:"run_day_utc"`
	StartedUTC     int64     `json:"run_started_utc"`
	FinishedUTC    *int64    `json:"run_finished_utc,omitempty"`
	Status         RunStatus `json:"status"`
	FetchedPosts   int       `json:"fetched_posts"`
	ExtractedIdeas int       `json:"extracted_ideas"`
	WindowIdeas    int       `json:"window_ideas"`
	Notified       bool      `json:"notified"`
	Message        string    `json:"message"`
}

// RunFinish carries the terminal values written by FinishRun.
type RunFinish struct {
	Status         RunStatus
	FinishedUTC    int64
	FetchedPosts   int
	ExtractedIdeas int
	WindowIdeas    int
	Notified       bool
	Message        string
}
