package representer

import "github.com/GoCodeAlone/pipelineapi/config"

var pipelineRepresenter = New(
	Computed("_links", func(p *config.PipelineConfig, env *Env) (any, error) {
		if env == nil || env.Links == nil {
			return nil, nil
		}
		return Links(
			"self", env.Links.PipelineURL(p.Name.String()),
			"doc", PipelineConfigDoc,
			"find", env.Links.PipelineFindURL(),
		), nil
	}).OmitEmpty(),
	String("label_template",
		func(p *config.PipelineConfig) string { return p.LabelTemplate },
		func(p *config.PipelineConfig, s string) { p.LabelTemplate = s }),
	Bool("enable_pipeline_locking",
		func(p *config.PipelineConfig) bool { return p.LockEnabled },
		func(p *config.PipelineConfig, b bool) { p.LockEnabled = b }),
	Name("name",
		func(p *config.PipelineConfig) config.CaseInsensitiveString { return p.Name },
		func(p *config.PipelineConfig, n config.CaseInsensitiveString) { p.Name = n }),
	Name("template_name",
		func(p *config.PipelineConfig) config.CaseInsensitiveString { return p.TemplateName },
		func(p *config.PipelineConfig, n config.CaseInsensitiveString) { p.TemplateName = n }).OmitEmpty(),
	Collection("params",
		func(p *config.PipelineConfig) []*config.Param { return p.Params },
		func(p *config.PipelineConfig, v []*config.Param) { p.Params = v },
		newParam, paramRepresenter).OmitEmpty(),
	variablesField(
		func(p *config.PipelineConfig) []*config.EnvironmentVariable { return p.Variables },
		func(p *config.PipelineConfig, v []*config.EnvironmentVariable) { p.Variables = v }).OmitEmpty(),
	Variants("materials",
		func(p *config.PipelineConfig) []config.Material { return p.Materials },
		func(p *config.PipelineConfig, m []config.Material) { p.Materials = m },
		materialVariants),
	Collection("stages",
		func(p *config.PipelineConfig) []*config.StageConfig { return p.Stages },
		func(p *config.PipelineConfig, s []*config.StageConfig) { p.Stages = s },
		newStage, stageRepresenter),
	Variant("tracking_tool",
		func(p *config.PipelineConfig) (config.TrackingTool, bool) { return p.TrackingTool, p.TrackingTool != nil },
		func(p *config.PipelineConfig, t config.TrackingTool) { p.TrackingTool = t },
		trackingToolVariants).OmitEmpty(),
	Object("timer",
		func(p *config.PipelineConfig) (*config.TimerConfig, bool) { return p.Timer, p.Timer != nil },
		func(p *config.PipelineConfig, t *config.TimerConfig) { p.Timer = t },
		func() *config.TimerConfig { return &config.TimerConfig{} },
		timerRepresenter).OmitEmpty(),
	ErrorsField[*config.PipelineConfig](nil),
)

func newPipeline() *config.PipelineConfig { return config.NewPipelineConfig("") }

var groupRepresenter = New(
	Computed("_links", func(g *config.PipelineGroup, env *Env) (any, error) {
		if env == nil || env.Links == nil {
			return nil, nil
		}
		return Links("doc", PipelineGroupsDoc), nil
	}).OmitEmpty(),
	String("name", func(g *config.PipelineGroup) string { return g.Name }, nil),
	Computed("_embedded", func(g *config.PipelineGroup, env *Env) (any, error) {
		pipelines := []any{}
		for _, p := range g.Pipelines {
			d, err := pipelineRepresenter.Encode(p, env)
			if err != nil {
				return nil, err
			}
			pipelines = append(pipelines, d)
		}
		return NewDocument().Set("pipelines", pipelines), nil
	}),
)
