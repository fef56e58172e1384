package outcome

// Signal names the detector rule that produced a verdict.
type Signal int

const (
	SignalNone Signal = iota
	SignalRejected
	SignalSuccessBanner
	SignalAccountCreated
	SignalWelcomeTitle
	SignalAccountSummary
	SignalLeftSubmissionPage
	SignalPageText
)

var signalNames = map[Signal]string{
	SignalNone:               "none",
	SignalRejected:           "rejected",
	SignalSuccessBanner:      "success_banner",
	SignalAccountCreated:     "account_created",
	SignalWelcomeTitle:       "welcome_title",
	SignalAccountSummary:     "account_summary",
	SignalLeftSubmissionPage: "left_submission_page",
	SignalPageText:           "page_text",
}

func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return "unknown"
}

// Result is the verdict of one evaluation and the evidence behind it.
type Result struct {
	Success bool
	Signal  Signal
}
