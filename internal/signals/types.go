package signals

// #region damage
// Damage is the local heuristic's verdict over one batch of commits.
type Damage struct {
	Damage  int      `json:"damage"`
	Signals []string `json:"signals"`
	Count   int      `json:"count"`
}

// #endregion damage

// #region rules
// Rules holds the penalties loaded from heuristics.yaml.
type Rules struct {
	MaxDamage    int              `yaml:"max_damage"`
	OffHours     offHoursRule     `yaml:"off_hours"`
	ShortMessage shortMessageRule `yaml:"short_message"`
	Despair      despairRule      `yaml:"despair"`
}

type offHoursRule struct {
	Penalty   int    `yaml:"penalty"`
	FirstHour int    `yaml:"first_hour"`
	LastHour  int    `yaml:"last_hour"`
	Signal    string `yaml:"signal"`
}

type shortMessageRule struct {
	Penalty   int    `yaml:"penalty"`
	MinLength int    `yaml:"min_length"`
	MaxLength int    `yaml:"max_length"`
	Signal    string `yaml:"signal"`
}

// despairRule.Signal is a format string taking the matched keyword.
type despairRule struct {
	Penalty  int      `yaml:"penalty"`
	Signal   string   `yaml:"signal"`
	Keywords []string `yaml:"keywords"`
}

// #endregion rules
