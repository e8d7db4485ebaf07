package intent

import "regexp"

// Intent labels produced by the rule-based classifier. The affinity table in
// the handoff package routes on these.
const (
	Schedule      = "schedule"
	TaskCreate    = "task_create"
	TaskQuery     = "task_query"
	CalendarQuery = "calendar_query"
	EmailProcess  = "email_process"
	Planning      = "planning"
)

type pattern struct {
	label string
	re    *regexp.Regexp
}

var patterns = []pattern{
	{Schedule, regexp.MustCompile(`(?i)(schedule|book|plan|set up)\s+(?:a\s+)?(?:meeting|appointment|call)`)},
	{Schedule, regexp.MustCompile(`(?i)(?:when|what time).*(?:free|available)`)},
	{Schedule, regexp.MustCompile(`(?i)(?:add|create).*(?:calendar|schedule)`)},
	{TaskCreate, regexp.MustCompile(`(?i)(?:add|create|make)\s+(?:a\s+)?(?:task|todo|reminder)`)},
	{TaskCreate, regexp.MustCompile(`(?i)(?:remind me to|don't forget to)`)},
	{TaskCreate, regexp.MustCompile(`(?i)(?:need to|have to|must|should)\s+`)},
	{TaskQuery, regexp.MustCompile(`(?i)(?:what|which|show me).*(?:tasks|todos|things to do)`)},
	{TaskQuery, regexp.MustCompile(`(?i)(?:my|current|pending)\s+(?:tasks|todos|work)`)},
	{CalendarQuery, regexp.MustCompile(`(?i)(?:what's|what is).*(?:on my calendar|scheduled)`)},
	{CalendarQuery, regexp.MustCompile(`(?i)(?:show me|check)\s+(?:my\s+)?(?:calendar|schedule|agenda)`)},
	{CalendarQuery, regexp.MustCompile(`(?i)(?:do i have|am i).*(?:meeting|appointment|busy)`)},
	{EmailProcess, regexp.MustCompile(`(?i)(?:check|read|process|go through)\s+(?:my\s+)?(?:email|inbox|mail)`)},
	{EmailProcess, regexp.MustCompile(`(?i)(?:any|new|unread)\s+(?:emails|messages)`)},
	{EmailProcess, regexp.MustCompile(`(?i)(?:extract|find).*(?:action items|tasks).*(?:email|mail)`)},
	{Planning, regexp.MustCompile(`(?i)(?:plan|organize|optimize|balance)\s+(?:my\s+)?(?:day|week|schedule|time)`)},
	{Planning, regexp.MustCompile(`(?i)(?:help me|can you).*(?:organize|plan|schedule)`)},
}

// Classifier labels turn text with a domain intent and a heuristic
// confidence. It is stateless and safe for concurrent use.
type Classifier struct{}

// NewClassifier constructs the rule-based classifier.
func NewClassifier() *Classifier { return &Classifier{} }

// Classify returns the best matching intent label and a confidence in [0,1].
// An empty label means no pattern matched. Scoring favors longer matches and
// matches early in the utterance.
func (c *Classifier) Classify(text string) (string, float64) {
	if text == "" {
		return "", 0
	}
	var bestLabel string
	var bestScore float64
	for _, p := range patterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		score := float64(loc[1]-loc[0]) / float64(len(text)) * 0.7
		if loc[0] < len(text)*3/10 {
			score += 0.2
		}
		if score > bestScore {
			bestScore = score
			bestLabel = p.label
		}
	}
	if bestScore > 1 {
		bestScore = 1
	}
	return bestLabel, bestScore
}
