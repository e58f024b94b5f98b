package eval

// #region band
// StressBand names how close the persona is to burnout.
type StressBand string

const (
	BandFocused    StressBand = "Focused"
	BandStrained   StressBand = "Strained"
	BandOverloaded StressBand = "Overloaded"
)

// Band is what the dashboard renders for the current persona.
type Band struct {
	StressBand   StressBand `json:"stressBand"`
	BurnoutValue int        `json:"burnoutValue"`
	Avatar       string     `json:"avatar"`
}

// Band thresholds on the burnout value.
const (
	StrainedFrom   = 40
	OverloadedFrom = 70
)

var avatars = map[StressBand]string{
	BandFocused:    "/avatar-happy.png",
	BandStrained:   "/avatar-mildly-stressed.png",
	BandOverloaded: "/avatar-stressed.png",
}

// #endregion band

// #region eval-config
// EvalConfig holds thresholds for post-commit validation.
type EvalConfig struct {
	MaxDrop    int // warn if any channel falls more than this in one commit
	MinChannel int // warn if any channel ends below this
	MaxBurnout int // warn if the burnout value ends above this
}

// DefaultEvalConfig returns the thresholds the twin runs with.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxDrop:    40,
		MinChannel: 10,
		MaxBurnout: 85,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Pass  bool   `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-commit validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Band    Band         `json:"band"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason,omitempty"`
}

// #endregion eval-result
