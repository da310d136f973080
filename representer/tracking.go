package representer

import "github.com/GoCodeAlone/pipelineapi/config"

var mingleRenames = map[string]string{
	"baseUrl":               "base_url",
	"projectIdentifier":     "project_identifier",
	"mqlGroupingConditions": "mql_grouping_conditions",
}

var trackingToolVariants = func() *VariantTable[config.TrackingTool] {
	t := NewVariantTable(
		func(tool config.TrackingTool) string { return tool.ToolType() },
		func(tag string) string {
			return "Invalid tracking tool type: " + tag + ". It can be one of '{external, mingle}'"
		},
		true)
	AddVariant(t, config.TrackingExternal, func() *config.ExternalTracker { return &config.ExternalTracker{} },
		New(
			String("link",
				func(e *config.ExternalTracker) string { return e.Link },
				func(e *config.ExternalTracker, s string) { e.Link = s }),
			String("regex",
				func(e *config.ExternalTracker) string { return e.Regex },
				func(e *config.ExternalTracker, s string) { e.Regex = s }),
		), nil)
	AddVariant(t, config.TrackingMingle, func() *config.MingleConfig { return &config.MingleConfig{} },
		New(
			String("base_url",
				func(m *config.MingleConfig) string { return m.BaseURL },
				func(m *config.MingleConfig, s string) { m.BaseURL = s }),
			String("project_identifier",
				func(m *config.MingleConfig) string { return m.ProjectIdentifier },
				func(m *config.MingleConfig, s string) { m.ProjectIdentifier = s }),
			String("mql_grouping_conditions",
				func(m *config.MingleConfig) string { return m.MQLGroupingConditions },
				func(m *config.MingleConfig, s string) { m.MQLGroupingConditions = s }),
		), mingleRenames)
	return t
}()

var timerRepresenter = New(
	String("spec",
		func(t *config.TimerConfig) string { return t.Spec },
		func(t *config.TimerConfig, s string) { t.Spec = s }),
	Bool("only_on_changes",
		func(t *config.TimerConfig) bool { return t.OnlyOnChanges },
		func(t *config.TimerConfig, b bool) { t.OnlyOnChanges = b }),
	ErrorsField[*config.TimerConfig](nil).OmitEmpty(),
)
