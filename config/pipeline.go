package config

// DefaultLabelTemplate is the label template a new pipeline starts with.
const DefaultLabelTemplate = "${COUNT}"

// PipelineConfig is the root of a pipeline's configuration tree.
type PipelineConfig struct {
	errorHolder
	Name          CaseInsensitiveString
	LabelTemplate string
	LockEnabled   bool
	// TemplateName is empty when the pipeline defines its own stages.
	TemplateName CaseInsensitiveString
	Params       []*Param
	Variables    []*EnvironmentVariable
	Materials    []Material
	Stages       []*StageConfig
	TrackingTool TrackingTool
	Timer        *TimerConfig
}

// NewPipelineConfig returns an empty pipeline with default settings.
func NewPipelineConfig(name string) *PipelineConfig {
	return &PipelineConfig{
		Name:          CaseInsensitiveString(name),
		LabelTemplate: DefaultLabelTemplate,
	}
}

// HasTemplate reports whether stages come from a template.
func (p *PipelineConfig) HasTemplate() bool { return !p.TemplateName.IsBlank() }

// Stage returns the stage called name, or nil.
func (p *PipelineConfig) Stage(name CaseInsensitiveString) *StageConfig {
	for _, s := range p.Stages {
		if s.Name.Equal(name) {
			return s
		}
	}
	return nil
}

// Material returns the material whose name is name, or nil.
func (p *PipelineConfig) Material(name CaseInsensitiveString) Material {
	for _, m := range p.Materials {
		if m.MaterialName().Equal(name) {
			return m
		}
	}
	return nil
}

// Upstreams returns the pipelines this pipeline depends on through
// dependency materials.
func (p *PipelineConfig) Upstreams() []CaseInsensitiveString {
	var out []CaseInsensitiveString
	for _, m := range p.Materials {
		if d, ok := m.(*DependencyMaterial); ok {
			out = append(out, d.PipelineName)
		}
	}
	return out
}

// Walk visits every node of the tree that can carry errors.
func (p *PipelineConfig) Walk(visit func(Validatable)) {
	visit(p)
	for _, v := range p.Params {
		visit(v)
	}
	for _, v := range p.Variables {
		visit(v)
	}
	for _, m := range p.Materials {
		visit(m)
		if pm, ok := m.(*PluggableSCMMaterial); ok && pm.SCM != nil {
			visit(pm.SCM)
		}
	}
	for _, s := range p.Stages {
		s.walk(visit)
	}
	if p.TrackingTool != nil {
		visit(p.TrackingTool)
	}
	if p.Timer != nil {
		visit(p.Timer)
	}
}

// AllErrors collects every message in the tree.
func (p *PipelineConfig) AllErrors() []string {
	var out []string
	p.Walk(func(v Validatable) { out = append(out, v.Errors().All()...) })
	return out
}

// ClearErrors removes messages from every node in the tree.
func (p *PipelineConfig) ClearErrors() {
	p.Walk(func(v Validatable) { v.Errors().Clear() })
}

// TimerConfig schedules a pipeline with a cron expression.
type TimerConfig struct {
	errorHolder
	Spec          string
	OnlyOnChanges bool
}

// PipelineGroup is a named set of pipelines.
type PipelineGroup struct {
	Name      string
	Pipelines []*PipelineConfig
}
