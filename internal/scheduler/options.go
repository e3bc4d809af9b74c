package scheduler

// FillMode selects between the fully validated pipeline and the degraded
// systematic fill.
type FillMode string

const (
	FillValidated  FillMode = "validated"
	FillSystematic FillMode = "systematic"
)

// Options toggles Validator checks. The same record drives generation,
// simulation and scenario runs.
type Options struct {
	EnforceExpertise            bool     `json:"enforceExpertise" yaml:"enforceExpertise"`
	EnforceElectiveGroupNoClash bool     `json:"enforceElectiveGroupNoClash" yaml:"enforceElectiveGroupNoClash"`
	EnforceWorkload             bool     `json:"enforceWorkload" yaml:"enforceWorkload"`
	MaxWeeklyLoadOverride       *int     `json:"maxWeeklyLoadOverride" yaml:"maxWeeklyLoadOverride"`
	MaxDailyLoadOverride        *int     `json:"maxDailyLoadOverride" yaml:"maxDailyLoadOverride"`
	Mode                        FillMode `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=validated systematic"`
}

// DefaultOptions enables elective-group and workload checks.
func DefaultOptions() Options {
	return Options{
		EnforceElectiveGroupNoClash: true,
		EnforceWorkload:             true,
		Mode:                        FillValidated,
	}
}

func (o Options) mode() FillMode {
	if o.Mode == FillSystematic {
		return FillSystematic
	}
	return FillValidated
}

// stripped disables every optional check; systematic fill runs with it.
func (o Options) stripped() Options {
	o.EnforceExpertise = false
	o.EnforceElectiveGroupNoClash = false
	o.EnforceWorkload = false
	o.MaxWeeklyLoadOverride = nil
	o.MaxDailyLoadOverride = nil
	o.Mode = FillSystematic
	return o
}

func (o Options) weeklyLimit(instructor *Instructor) int {
	if o.MaxWeeklyLoadOverride != nil {
		return *o.MaxWeeklyLoadOverride
	}
	if instructor == nil {
		return 0
	}
	return instructor.MaxWeeklyLoad
}

func (o Options) dailyLimit(instructor *Instructor) int {
	if o.MaxDailyLoadOverride != nil {
		return *o.MaxDailyLoadOverride
	}
	if instructor == nil {
		return 0
	}
	return instructor.MaxDailyLoad
}
