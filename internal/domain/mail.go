package domain

const (
	MailTypeRunSucceeded = "run_succeeded"
	MailTypeRunFailed    = "run_failed"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type RunFinishedMailData struct {
	RunID           int64   `json:"runID"`
	RunName         string  `json:"runName"`
	BestFitness     float64 `json:"bestFitness"`
	GenerationsRun  int     `json:"generationsRun"`
	TotalViolations int     `json:"totalViolations"`
	ReportURL       string  `json:"reportURL"`
	ErrorMessage    string  `json:"errorMessage"`
}
